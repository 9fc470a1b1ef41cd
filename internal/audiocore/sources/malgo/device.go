package malgo

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/errors"
)

// DefaultDeviceName selects the system default capture device.
const DefaultDeviceName = "default"

// Device describes one capture device.
type Device struct {
	Index     int
	Name      string
	ID        string // decoded device ID, falls back to the hex form
	IsDefault bool
}

func (d Device) String() string {
	s := fmt.Sprintf("%d: %s", d.Index, d.Name)
	if d.ID != "" && d.ID != d.Name {
		s += " (" + d.ID + ")"
	}
	if d.IsDefault {
		s += " [default]"
	}
	return s
}

// ListDevices enumerates capture devices of a host API.
func ListDevices(hostAPI string) ([]Device, error) {
	mctx, err := initContext(hostAPI, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	infos, err := enumerate(mctx)
	if err != nil {
		return nil, err
	}
	return describe(infos), nil
}

func enumerate(mctx *malgo.AllocatedContext) ([]malgo.DeviceInfo, error) {
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: enumerate capture devices: %w", audiocore.ErrConfiguration, err)).
			Component("malgo").
			Category(errors.CategoryAudioSource).
			Context("operation", "enumerate_devices").
			Build()
	}
	return infos, nil
}

// describe converts miniaudio device infos, keeping enumeration order.
func describe(infos []malgo.DeviceInfo) []Device {
	devices := make([]Device, 0, len(infos))
	for i := range infos {
		id, err := hexToASCII(infos[i].ID.String())
		if err != nil {
			id = infos[i].ID.String()
		}
		devices = append(devices, Device{
			Index:     i,
			Name:      infos[i].Name(),
			ID:        id,
			IsDefault: infos[i].IsDefault == 1,
		})
	}
	return devices
}

// MatchDevice picks the device for name: "default" (or empty) selects the
// default device, otherwise an exact name, an exact decoded ID, then the
// first case-insensitive substring match in enumeration order. When nothing
// matches the error lists every available device.
func MatchDevice(devices []Device, name, hostAPI string) (Device, error) {
	if len(devices) == 0 {
		return Device{}, notFound(devices, name, hostAPI)
	}

	if name == "" || strings.EqualFold(name, DefaultDeviceName) || name == "sysdefault" {
		for _, d := range devices {
			if d.IsDefault {
				return d, nil
			}
		}
		return devices[0], nil
	}

	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	for _, d := range devices {
		if d.ID == name {
			return d, nil
		}
	}
	needle := strings.ToLower(name)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), needle) {
			return d, nil
		}
	}

	return Device{}, notFound(devices, name, hostAPI)
}

// FormatDeviceList renders devices one per line, for errors and the
// devices command.
func FormatDeviceList(devices []Device) string {
	if len(devices) == 0 {
		return "  (no capture devices found)"
	}
	lines := make([]string, len(devices))
	for i, d := range devices {
		lines[i] = "  " + d.String()
	}
	return strings.Join(lines, "\n")
}

func notFound(devices []Device, name, hostAPI string) error {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	return errors.New(fmt.Errorf("%w: no capture device matching %q on host API %q; available devices:\n%s",
		audiocore.ErrConfiguration, name, hostAPI, FormatDeviceList(devices))).
		Component("malgo").
		Category(errors.CategoryConfiguration).
		Context("device_name", name).
		Context("host_api", hostAPI).
		Context("available_devices", names).
		Build()
}

// nativeFormat is one capture format a device reports natively. A zero
// field means the backend accepts any value.
type nativeFormat struct {
	Channels   int
	SampleRate int
}

func nativeFormats(info *malgo.DeviceInfo) []nativeFormat {
	n := min(int(info.FormatCount), len(info.Formats))
	formats := make([]nativeFormat, 0, n)
	for i := range n {
		formats = append(formats, nativeFormat{
			Channels:   int(info.Formats[i].Channels),
			SampleRate: int(info.Formats[i].SampleRate),
		})
	}
	return formats
}

// checkNativeFormat rejects a channel count above the device's native
// maximum, since miniaudio would fill the extra channels by conversion. It
// reports whether sampleRate is one of the native rates; callers warn when
// it is not. An empty format list is treated as unrestricted.
func checkNativeFormat(device Device, formats []nativeFormat, channels, sampleRate int) (nativeRate bool, err error) {
	if len(formats) == 0 {
		return true, nil
	}

	maxChannels := 0
	anyChannels := false
	for _, f := range formats {
		if f.Channels == 0 {
			anyChannels = true
		}
		maxChannels = max(maxChannels, f.Channels)
		if f.SampleRate == 0 || f.SampleRate == sampleRate {
			nativeRate = true
		}
	}

	if !anyChannels && channels > maxChannels {
		return false, errors.New(fmt.Errorf("%w: device %q captures at most %d channels, channel_count is %d",
			audiocore.ErrConfiguration, device.Name, maxChannels, channels)).
			Component("malgo").
			Category(errors.CategoryConfiguration).
			Context("device", device.Name).
			Context("device_max_channels", maxChannels).
			Context("channel_count", channels).
			Build()
	}
	return nativeRate, nil
}

// hexToASCII converts a hexadecimal string to an ASCII string.
func hexToASCII(hexStr string) (string, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00"), nil
}
