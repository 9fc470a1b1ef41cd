package export

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/eventrec/internal/audiocore"
)

var flushTime = time.Date(2024, 5, 17, 6, 30, 9, 250_000_000, time.Local)

func testRecording(blocks, frames, channels int) *audiocore.Recording {
	rec := &audiocore.Recording{
		SampleRate: 48000,
		Channels:   channels,
		Prefix:     "multichannel_",
		FlushTime:  flushTime,
	}
	for b := range blocks {
		block := audiocore.NewSampleBlock(frames, channels)
		for f := range frames {
			for c := range channels {
				block.Set(f, c, float32(c+1)*0.1*float32(b+1)/float32(blocks))
			}
		}
		rec.Blocks = append(rec.Blocks, block)
	}
	return rec
}

func TestFileName(t *testing.T) {
	t.Parallel()
	name := FileName("multichannel_", flushTime)
	assert.Equal(t, "multichannel_2024-05-17_06-30-09.wav", name)
	assert.Regexp(t, regexp.MustCompile(`^multichannel_\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}\.wav$`), name)
}

func TestParseFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		file        string
		wantCounter int
		wantErr     bool
	}{
		{"plain", "multichannel_2024-05-17_06-30-09.wav", 0, false},
		{"with directory", "/data/rec/multichannel_2024-05-17_06-30-09.wav", 0, false},
		{"collision suffix", "multichannel_2024-05-17_06-30-09_3.wav", 3, false},
		{"wrong prefix", "other_2024-05-17_06-30-09.wav", 0, true},
		{"wrong extension", "multichannel_2024-05-17_06-30-09.flac", 0, true},
		{"zero counter", "multichannel_2024-05-17_06-30-09_0.wav", 0, true},
		{"garbage timestamp", "multichannel_yesterday.wav", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts, counter, err := ParseFileName(tt.file, "multichannel_", time.Local)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCounter, counter)
			assert.True(t, ts.Equal(flushTime.Truncate(time.Second)), "got %s", ts)
		})
	}
}

func TestNewWAVSinkValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWAVSink(t.TempDir(), 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, audiocore.ErrConfiguration)

	dir := filepath.Join(t.TempDir(), "nested", "recordings")
	sink, err := NewWAVSink(dir, 16)
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, dir, sink.Dir())
}

func TestWAVSinkWritesMultichannelFile(t *testing.T) {
	t.Parallel()

	for _, depth := range []int{16, 24, 32} {
		sink, err := NewWAVSink(t.TempDir(), depth)
		require.NoError(t, err)

		rec := testRecording(3, 256, 4)
		path, err := sink.Write(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(sink.Dir(), "multichannel_2024-05-17_06-30-09.wav"), path)

		f, err := os.Open(path)
		require.NoError(t, err)

		dec := wav.NewDecoder(f)
		require.True(t, dec.IsValidFile())
		buf, err := dec.FullPCMBuffer()
		require.NoError(t, err)
		require.NoError(t, f.Close())

		assert.Equal(t, uint32(48000), dec.SampleRate)
		assert.Equal(t, uint16(4), dec.NumChans)
		assert.Equal(t, uint16(depth), dec.BitDepth)
		require.Len(t, buf.Data, 3*256*4)

		// Block order and channel interleaving survive the round trip.
		scale := float64(int64(1)<<(depth-1) - 1)
		last := rec.Blocks[2]
		for c := range 4 {
			want := float64(last.At(0, c)) * scale
			got := float64(buf.Data[2*256*4+c])
			assert.InDelta(t, want, got, 1, "depth %d channel %d", depth, c)
		}
	}
}

func TestWAVSinkCollisionSuffix(t *testing.T) {
	t.Parallel()

	sink, err := NewWAVSink(t.TempDir(), 16)
	require.NoError(t, err)

	var paths []string
	for range 3 {
		path, err := sink.Write(context.Background(), testRecording(1, 16, 2))
		require.NoError(t, err)
		paths = append(paths, filepath.Base(path))
	}

	assert.Equal(t, []string{
		"multichannel_2024-05-17_06-30-09.wav",
		"multichannel_2024-05-17_06-30-09_1.wav",
		"multichannel_2024-05-17_06-30-09_2.wav",
	}, paths)
}

func TestWAVSinkRejectsEmptyRecording(t *testing.T) {
	t.Parallel()

	sink, err := NewWAVSink(t.TempDir(), 16)
	require.NoError(t, err)

	_, err = sink.Write(context.Background(), &audiocore.Recording{SampleRate: 48000, Channels: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, audiocore.ErrSinkWrite)
}

func TestWAVSinkRemovesPartialFileOnFailure(t *testing.T) {
	t.Parallel()

	sink, err := NewWAVSink(t.TempDir(), 16)
	require.NoError(t, err)

	rec := testRecording(2, 16, 2)
	rec.Blocks[1] = audiocore.NewSampleBlock(16, 3) // mismatched shape

	_, err = sink.Write(context.Background(), rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, audiocore.ErrSinkWrite)
	assert.ErrorIs(t, err, audiocore.ErrBufferInvariant)

	entries, err := os.ReadDir(sink.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWAVSinkHonoursCancellation(t *testing.T) {
	t.Parallel()

	sink, err := NewWAVSink(t.TempDir(), 16)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = sink.Write(ctx, testRecording(2, 16, 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToPCMClamps(t *testing.T) {
	t.Parallel()
	got := toPCM(nil, []float32{-2, -1, 0, 0.5, 1, 3}, 32767)
	assert.Equal(t, []int{-32767, -32767, 0, 16384, 32767, 32767}, got)
}
