package malgo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/conf"
	"github.com/tphakala/eventrec/internal/errors"
	"github.com/tphakala/eventrec/internal/logging"
)

// Config selects and shapes the capture stream.
type Config struct {
	HostAPI    string
	DeviceName string
	SampleRate int
	BlockSize  int
	Channels   int
	// BufferBlocks is the depth of the callback jitter buffer in blocks.
	BufferBlocks int
	Debug        bool
}

// Source is an audiocore.Source backed by a miniaudio capture device.
type Source struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	mctx   *malgo.AllocatedContext
	device *malgo.Device
	reader *blockReader
	info   Device
	closed bool
}

var _ audiocore.Source = (*Source)(nil)

// NewSource validates cfg. The device is opened by Open.
func NewSource(cfg Config) (*Source, error) {
	var problems []string
	if cfg.SampleRate <= 0 {
		problems = append(problems, fmt.Sprintf("sample rate must be positive, got %d", cfg.SampleRate))
	}
	if cfg.BlockSize <= 0 {
		problems = append(problems, fmt.Sprintf("block size must be positive, got %d", cfg.BlockSize))
	}
	if cfg.Channels <= 0 {
		problems = append(problems, fmt.Sprintf("channel count must be positive, got %d", cfg.Channels))
	}
	if len(problems) > 0 {
		return nil, errors.New(fmt.Errorf("%w: %s", audiocore.ErrConfiguration, strings.Join(problems, "; "))).
			Component("malgo").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.BufferBlocks <= 0 {
		cfg.BufferBlocks = 32
	}
	if cfg.HostAPI == "" {
		cfg.HostAPI = conf.DefaultHostAPI()
	}

	return &Source{
		cfg:    cfg,
		logger: logging.ForService("malgo").With("component", "capture_source"),
	}, nil
}

// Format implements audiocore.Source.
func (s *Source) Format() audiocore.Format {
	return audiocore.Format{
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
		BlockSize:  s.cfg.BlockSize,
	}
}

// Open selects the device and starts capturing float32 frames.
func (s *Source) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mctx, err := initContext(s.cfg.HostAPI, func(message string) {
		if s.cfg.Debug {
			s.logger.Debug("miniaudio", "message", strings.TrimSpace(message))
		}
	})
	if err != nil {
		return err
	}

	infos, err := enumerate(mctx)
	if err != nil {
		s.releaseContext(mctx)
		return err
	}
	selected, err := MatchDevice(describe(infos), s.cfg.DeviceName, s.cfg.HostAPI)
	if err != nil {
		s.releaseContext(mctx)
		return err
	}

	if err := s.verifyFormat(mctx, &infos[selected.Index], selected); err != nil {
		s.releaseContext(mctx)
		return err
	}

	reader := newBlockReader(s.Format(), s.cfg.BufferBlocks, s.logger)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(s.cfg.Channels)
	deviceConfig.Capture.DeviceID = infos[selected.Index].ID.Pointer()
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(s.cfg.BlockSize)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			reader.write(input)
		},
		Stop: reader.stop,
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		s.releaseContext(mctx)
		return errors.New(fmt.Errorf("%w: open device %q with %d channels at %d Hz: %w",
			audiocore.ErrConfiguration, selected.Name, s.cfg.Channels, s.cfg.SampleRate, err)).
			Component("malgo").
			Category(errors.CategoryAudioSource).
			Context("operation", "init_device").
			Context("device", selected.Name).
			Build()
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		s.releaseContext(mctx)
		return errors.New(fmt.Errorf("%w: start device %q: %w", audiocore.ErrSourceRead, selected.Name, err)).
			Component("malgo").
			Category(errors.CategoryAudioSource).
			Context("operation", "start_device").
			Build()
	}

	s.mctx = mctx
	s.device = device
	s.reader = reader
	s.info = selected

	s.logger.Info("capture device started",
		"device", selected.Name,
		"id", selected.ID,
		"host_api", s.cfg.HostAPI,
		"sample_rate", s.cfg.SampleRate,
		"channels", s.cfg.Channels,
		"block_size", s.cfg.BlockSize)

	return nil
}

// ReadBlock implements audiocore.Source.
func (s *Source) ReadBlock(ctx context.Context) (audiocore.SampleBlock, error) {
	s.mu.Lock()
	reader := s.reader
	s.mu.Unlock()

	if reader == nil {
		return audiocore.SampleBlock{}, errors.New(fmt.Errorf("%w: source not open", audiocore.ErrSourceRead)).
			Component("malgo").
			Category(errors.CategoryState).
			Build()
	}
	return reader.read(ctx)
}

// Overruns returns how many callback chunks were dropped since Open.
func (s *Source) Overruns() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return 0
	}
	return s.reader.Overruns()
}

// Close stops the device and releases the miniaudio context.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.device != nil {
		if stopErr := s.device.Stop(); stopErr != nil {
			err = stopErr
		}
		s.device.Uninit()
		s.device = nil
	}
	if s.reader != nil {
		s.reader.stop()
	}
	if s.mctx != nil {
		s.releaseContext(s.mctx)
		s.mctx = nil
	}

	s.logger.Info("capture device closed", "device", s.info.Name)
	return err
}

// verifyFormat compares the configured stream with the formats the device
// captures natively. Backends that cannot report formats are trusted.
func (s *Source) verifyFormat(mctx *malgo.AllocatedContext, info *malgo.DeviceInfo, selected Device) error {
	full, err := mctx.DeviceInfo(malgo.Capture, info.ID, malgo.Shared)
	if err != nil {
		s.logger.Warn("could not query native device formats, channel count unverified",
			"device", selected.Name,
			"error", err)
		return nil
	}

	formats := nativeFormats(&full)
	if len(formats) == 0 {
		s.logger.Debug("device reports no native formats", "device", selected.Name)
	}
	nativeRate, err := checkNativeFormat(selected, formats, s.cfg.Channels, s.cfg.SampleRate)
	if err != nil {
		return err
	}
	if !nativeRate {
		s.logger.Warn("sample rate is not native to the device, miniaudio will resample",
			"device", selected.Name,
			"sample_rate", s.cfg.SampleRate)
	}
	return nil
}

func (s *Source) releaseContext(mctx *malgo.AllocatedContext) {
	if err := mctx.Uninit(); err != nil {
		s.logger.Warn("failed to uninitialize audio context", "error", err)
	}
	mctx.Free()
}
