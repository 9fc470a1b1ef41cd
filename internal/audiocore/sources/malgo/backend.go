// Package malgo captures sample blocks from a sound card through miniaudio.
package malgo

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/errors"
)

// HostAPIAuto lets miniaudio pick the platform backend.
const HostAPIAuto = "auto"

// hostAPIs maps host API names, as operators know them from PortAudio based
// tools, to miniaudio backends. Keys are lower case.
var hostAPIs = map[string]malgo.Backend{
	"mme":                 malgo.BackendWinmm,
	"winmm":               malgo.BackendWinmm,
	"wasapi":              malgo.BackendWasapi,
	"windows wasapi":      malgo.BackendWasapi,
	"directsound":         malgo.BackendDsound,
	"windows directsound": malgo.BackendDsound,
	"dsound":              malgo.BackendDsound,
	"alsa":                malgo.BackendAlsa,
	"pulseaudio":          malgo.BackendPulseaudio,
	"pulse":               malgo.BackendPulseaudio,
	"jack":                malgo.BackendJack,
	"coreaudio":           malgo.BackendCoreaudio,
	"core audio":          malgo.BackendCoreaudio,
	"oss":                 malgo.BackendOss,
	"sndio":               malgo.BackendSndio,
	"null":                malgo.BackendNull,
}

// SupportedHostAPIs returns the accepted host API names, sorted.
func SupportedHostAPIs() []string {
	names := make([]string, 0, len(hostAPIs)+1)
	names = append(names, HostAPIAuto)
	for name := range hostAPIs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Backends resolves a host API name to the backend list passed to
// malgo.InitContext. Auto returns nil so miniaudio probes in its default
// order.
func Backends(hostAPI string) ([]malgo.Backend, error) {
	key := strings.ToLower(strings.TrimSpace(hostAPI))
	if key == "" || key == HostAPIAuto {
		return nil, nil
	}

	backend, ok := hostAPIs[key]
	if !ok {
		return nil, errors.New(fmt.Errorf("%w: unknown host API %q (supported: %s)",
			audiocore.ErrConfiguration, hostAPI, strings.Join(SupportedHostAPIs(), ", "))).
			Component("malgo").
			Category(errors.CategoryConfiguration).
			Context("host_api", hostAPI).
			Build()
	}
	return []malgo.Backend{backend}, nil
}

// initContext opens a miniaudio context for hostAPI. The log callback
// receives miniaudio's own diagnostics.
func initContext(hostAPI string, logFn func(string)) (*malgo.AllocatedContext, error) {
	backends, err := Backends(hostAPI)
	if err != nil {
		return nil, err
	}

	mctx, err := malgo.InitContext(backends, malgo.ContextConfig{}, logFn)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: host API %q is not available on %s: %w",
			audiocore.ErrConfiguration, hostAPI, runtime.GOOS, err)).
			Component("malgo").
			Category(errors.CategoryConfiguration).
			Context("operation", "init_context").
			Context("host_api", hostAPI).
			Context("os", runtime.GOOS).
			Build()
	}
	return mctx, nil
}
