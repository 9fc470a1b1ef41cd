// Package file replays WAV and FLAC recordings as a block source, so
// thresholds can be tuned offline against captured material.
//
// Block timestamps are derived from the sample position relative to a start
// time, which makes replays deterministic and independent of decode speed.
package file

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tphakala/flac"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/errors"
	"github.com/tphakala/eventrec/internal/logging"
)

// decoder yields interleaved float samples in chunks of arbitrary size.
type decoder interface {
	next() ([]float32, error)
}

// Source is an audiocore.Source reading a WAV or FLAC file.
type Source struct {
	path      string
	blockSize int
	start     time.Time
	logger    *slog.Logger

	file    *os.File
	dec     decoder
	format  audiocore.Format
	pending []float32
	frames  int64 // frames emitted so far
	seq     uint64
}

var _ audiocore.Source = (*Source)(nil)

// NewSource prepares a replay of path in blocks of blockSize frames. Block
// timestamps start at start.
func NewSource(path string, blockSize int, start time.Time) (*Source, error) {
	if blockSize <= 0 {
		return nil, errors.New(fmt.Errorf("%w: block size must be positive, got %d", audiocore.ErrConfiguration, blockSize)).
			Component("file_source").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &Source{
		path:      path,
		blockSize: blockSize,
		start:     start,
		logger:    logging.ForService("file_source").With("path", filepath.Base(path)),
	}, nil
}

// Open reads the file header and prepares the decoder.
func (s *Source) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return s.configError("open", err)
	}

	kind, err := sniff(f, s.path)
	if err != nil {
		_ = f.Close()
		return s.configError("detect_format", err)
	}

	var (
		dec      decoder
		rate     int
		channels int
		bits     int
	)
	switch kind {
	case "wav":
		wd, err := newWAVDecoder(f, s.blockSize)
		if err != nil {
			_ = f.Close()
			return s.configError("read_wav_header", err)
		}
		dec, rate, channels, bits = wd, wd.rate, wd.channels, wd.bits
	case "flac":
		fd, err := newFLACDecoder(f)
		if err != nil {
			_ = f.Close()
			return s.configError("read_flac_header", err)
		}
		dec, rate, channels, bits = fd, fd.rate, fd.channels, fd.bits
	}

	s.file = f
	s.dec = dec
	s.format = audiocore.Format{SampleRate: rate, Channels: channels, BlockSize: s.blockSize}

	s.logger.Info("replay source opened",
		"format", kind,
		"sample_rate", rate,
		"channels", channels,
		"bit_depth", bits,
		"block_size", s.blockSize)
	return nil
}

// Format implements audiocore.Source. Valid after Open.
func (s *Source) Format() audiocore.Format {
	return s.format
}

// ReadBlock returns the next full block. A trailing partial block is
// dropped and io.EOF returned.
func (s *Source) ReadBlock(ctx context.Context) (audiocore.SampleBlock, error) {
	if s.dec == nil {
		return audiocore.SampleBlock{}, errors.New(fmt.Errorf("%w: source not open", audiocore.ErrSourceRead)).
			Component("file_source").
			Category(errors.CategoryState).
			Build()
	}

	need := s.blockSize * s.format.Channels
	for len(s.pending) < need {
		if err := ctx.Err(); err != nil {
			return audiocore.SampleBlock{}, err
		}
		chunk, err := s.dec.next()
		if err == io.EOF {
			if len(s.pending) > 0 {
				s.logger.Debug("dropping trailing partial block", "frames", len(s.pending)/s.format.Channels)
				s.pending = nil
			}
			return audiocore.SampleBlock{}, io.EOF
		}
		if err != nil {
			return audiocore.SampleBlock{}, errors.New(fmt.Errorf("%w: decode %s: %w", audiocore.ErrSourceRead, filepath.Base(s.path), err)).
				Component("file_source").
				Category(errors.CategoryAudioSource).
				Context("frames_read", s.frames).
				Build()
		}
		s.pending = append(s.pending, chunk...)
	}

	block := audiocore.NewSampleBlock(s.blockSize, s.format.Channels)
	copy(block.Samples, s.pending[:need])
	s.pending = append(s.pending[:0], s.pending[need:]...)

	s.frames += int64(s.blockSize)
	s.seq++
	block.Sequence = s.seq
	block.Timestamp = s.start.Add(time.Duration(s.frames) * time.Second / time.Duration(s.format.SampleRate))
	return block, nil
}

// Close closes the file.
func (s *Source) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.dec = nil
	return err
}

func (s *Source) configError(operation string, err error) error {
	return errors.New(fmt.Errorf("%w: %s: %w", audiocore.ErrConfiguration, filepath.Base(s.path), err)).
		Component("file_source").
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		Build()
}

// sniff identifies the container from the magic bytes, falling back to the
// file extension.
func sniff(f *os.File, path string) (string, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return "", fmt.Errorf("read header: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	switch {
	case bytes.Equal(magic, []byte("RIFF")):
		return "wav", nil
	case bytes.Equal(magic, []byte("fLaC")):
		return "flac", nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "wav", nil
	case ".flac":
		return "flac", nil
	}
	return "", fmt.Errorf("unsupported audio file, expected WAV or FLAC")
}

// wavDecoder reads PCM WAV through go-audio.
type wavDecoder struct {
	dec      *wav.Decoder
	buf      *audio.IntBuffer
	rate     int
	channels int
	bits     int
	divisor  float32
}

func newWAVDecoder(f *os.File, blockSize int) (*wavDecoder, error) {
	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, err
	}
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	// 1 = PCM, 0xFFFE = extensible (multichannel PCM).
	if dec.WavAudioFormat != 1 && dec.WavAudioFormat != 0xFFFE {
		return nil, fmt.Errorf("unsupported WAV encoding %d, only integer PCM is supported", dec.WavAudioFormat)
	}

	bits := int(dec.BitDepth)
	divisor, err := divisorFor(bits)
	if err != nil {
		return nil, err
	}

	channels := int(dec.NumChans)
	return &wavDecoder{
		dec: dec,
		buf: &audio.IntBuffer{
			Data:   make([]int, blockSize*channels),
			Format: &audio.Format{SampleRate: int(dec.SampleRate), NumChannels: channels},
		},
		rate:     int(dec.SampleRate),
		channels: channels,
		bits:     bits,
		divisor:  divisor,
	}, nil
}

func (d *wavDecoder) next() ([]float32, error) {
	n, err := d.dec.PCMBuffer(d.buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	out := make([]float32, n)
	for i, v := range d.buf.Data[:n] {
		out[i] = float32(v) / d.divisor
	}
	return out, nil
}

// flacDecoder reads FLAC frames through tphakala/flac.
type flacDecoder struct {
	dec      *flac.Decoder
	rate     int
	channels int
	bits     int
	divisor  float32
}

func newFLACDecoder(f *os.File) (*flacDecoder, error) {
	dec, err := flac.NewDecoder(f)
	if err != nil {
		return nil, err
	}
	divisor, err := divisorFor(dec.BitsPerSample)
	if err != nil {
		return nil, err
	}
	return &flacDecoder{
		dec:      dec,
		rate:     dec.SampleRate,
		channels: dec.NChannels,
		bits:     dec.BitsPerSample,
		divisor:  divisor,
	}, nil
}

func (d *flacDecoder) next() ([]float32, error) {
	frame, err := d.dec.Next()
	if err != nil {
		return nil, err
	}
	return decodeLE(frame, d.bits, d.divisor), nil
}

// decodeLE converts little-endian signed PCM bytes to floats.
func decodeLE(frame []byte, bits int, divisor float32) []float32 {
	width := bits / 8
	out := make([]float32, 0, len(frame)/width)
	for i := 0; i+width <= len(frame); i += width {
		var sample int32
		switch bits {
		case 16:
			sample = int32(int16(binary.LittleEndian.Uint16(frame[i:])))
		case 24:
			sample = int32(frame[i]) | int32(frame[i+1])<<8 | int32(int8(frame[i+2]))<<16
		case 32:
			sample = int32(binary.LittleEndian.Uint32(frame[i:]))
		}
		out = append(out, float32(sample)/divisor)
	}
	return out
}

func divisorFor(bits int) (float32, error) {
	switch bits {
	case 16:
		return 32768, nil
	case 24:
		return 8388608, nil
	case 32:
		return 2147483648, nil
	default:
		return 0, fmt.Errorf("unsupported bit depth %d", bits)
	}
}
