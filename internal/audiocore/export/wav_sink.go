// Package export writes flushed recordings to disk.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/errors"
	"github.com/tphakala/eventrec/internal/logging"
)

// Supported PCM bit depths.
var supportedBitDepths = map[int]bool{16: true, 24: true, 32: true}

// WAVSink writes recordings as multichannel PCM WAV files.
type WAVSink struct {
	dir      string
	bitDepth int
	logger   *slog.Logger
}

// NewWAVSink creates a sink writing into dir. The directory is created if
// it does not exist.
func NewWAVSink(dir string, bitDepth int) (*WAVSink, error) {
	if !supportedBitDepths[bitDepth] {
		return nil, errors.New(fmt.Errorf("%w: unsupported bit depth %d (supported: 16, 24, 32)",
			audiocore.ErrConfiguration, bitDepth)).
			Component("export").
			Category(errors.CategoryConfiguration).
			Context("bit_depth", bitDepth).
			Build()
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(fmt.Errorf("%w: create output directory: %w", audiocore.ErrConfiguration, err)).
			Component("export").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}

	return &WAVSink{
		dir:      dir,
		bitDepth: bitDepth,
		logger:   logging.ForService("export").With("component", "wav_sink"),
	}, nil
}

// Dir returns the output directory.
func (s *WAVSink) Dir() string {
	return s.dir
}

// Write encodes rec into <dir>/<prefix><timestamp>.wav and returns the
// path. A partially written file is removed on failure.
func (s *WAVSink) Write(ctx context.Context, rec *audiocore.Recording) (string, error) {
	start := time.Now()

	if rec == nil || len(rec.Blocks) == 0 {
		return "", s.fail(fmt.Errorf("empty recording"), "", start)
	}
	if rec.Channels <= 0 || rec.SampleRate <= 0 {
		return "", s.fail(fmt.Errorf("invalid recording format: %d channels at %d Hz", rec.Channels, rec.SampleRate), "", start)
	}

	f, path, err := createUnique(s.dir, rec.Prefix, rec.FlushTime)
	if err != nil {
		return "", s.fail(fmt.Errorf("create recording file: %w", err), "", start)
	}

	if err := s.encode(ctx, f, rec); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", s.fail(err, path, start)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", s.fail(fmt.Errorf("close recording file: %w", err), path, start)
	}

	s.logger.Debug("recording written",
		"path", path,
		"frames", rec.Frames(),
		"channels", rec.Channels,
		"duration", rec.Duration().String(),
		"elapsed_ms", time.Since(start).Milliseconds())

	return path, nil
}

// encode streams the recording block by block so the full matrix is never
// converted at once.
func (s *WAVSink) encode(ctx context.Context, f *os.File, rec *audiocore.Recording) error {
	enc := wav.NewEncoder(f, rec.SampleRate, s.bitDepth, rec.Channels, 1)
	format := &audio.Format{SampleRate: rec.SampleRate, NumChannels: rec.Channels}
	scale := float64(int64(1)<<(s.bitDepth-1) - 1)

	var buf []int
	for i := range rec.Blocks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("recording write cancelled: %w", err)
		}

		block := &rec.Blocks[i]
		if block.Channels != rec.Channels {
			return fmt.Errorf("%w: block %d has %d channels, recording has %d",
				audiocore.ErrBufferInvariant, i, block.Channels, rec.Channels)
		}

		buf = toPCM(buf[:0], block.Samples, scale)
		if err := enc.Write(&audio.IntBuffer{Data: buf, Format: format, SourceBitDepth: s.bitDepth}); err != nil {
			return fmt.Errorf("failed to write to WAV encoder: %w", err)
		}
	}

	// Close the WAV encoder, which finalizes the header sizes.
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	return nil
}

// toPCM converts float samples to clamped integers at the given scale.
func toPCM(dst []int, samples []float32, scale float64) []int {
	for _, v := range samples {
		x := float64(v)
		if x > 1 {
			x = 1
		} else if x < -1 {
			x = -1
		}
		dst = append(dst, int(math.Round(x*scale)))
	}
	return dst
}

func (s *WAVSink) fail(err error, path string, start time.Time) error {
	return errors.New(fmt.Errorf("%w: %w", audiocore.ErrSinkWrite, err)).
		Component("export").
		Category(errors.CategoryFileIO).
		Context("path", path).
		Timing("write_recording", time.Since(start)).
		Build()
}
