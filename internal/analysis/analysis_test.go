package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/audiocore/detection"
	"github.com/tphakala/eventrec/internal/audiocore/export"
	"github.com/tphakala/eventrec/internal/conf"
	"github.com/tphakala/eventrec/internal/datastore"
)

// writeInput writes a 4 s, 4 channel WAV at 1 kHz with a loud block 12 on
// channel 1.
func writeInput(t *testing.T, dir string) string {
	t.Helper()
	rec := &audiocore.Recording{
		SampleRate: 1000,
		Channels:   4,
		Prefix:     "input_",
		FlushTime:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for i := range 40 {
		block := audiocore.NewSampleBlock(100, 4)
		if i == 12 {
			block.Set(50, 1, 0.5)
		}
		rec.Blocks = append(rec.Blocks, block)
	}

	sink, err := export.NewWAVSink(dir, 16)
	require.NoError(t, err)
	path, err := sink.Write(context.Background(), rec)
	require.NoError(t, err)
	return path
}

func replaySettings(dir string) *conf.Settings {
	s := &conf.Settings{}
	s.Audio = conf.AudioSettings{SampleRate: 1000, BlockSize: 100, ChannelCount: 4}
	s.Trigger = conf.TriggerSettings{
		Mode:              detection.ModePeak,
		Threshold:         0.1,
		MonitorChannels:   []int{1, 3},
		PreEventDuration:  1,
		PostEventDuration: 2,
	}
	s.Output = conf.OutputSettings{
		Path:       filepath.Join(dir, "out"),
		FilePrefix: "replay_",
		BitDepth:   16,
		FlushQueue: 4,
	}
	s.EventLog = conf.EventLogSettings{Enabled: true, Path: filepath.Join(dir, "events.db")}
	return s
}

func TestReplayRecordsEvent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	input := writeInput(t, filepath.Join(dir, "in"))
	settings := replaySettings(dir)
	start := time.Date(2024, 5, 17, 6, 0, 0, 0, time.UTC)

	require.NoError(t, Replay(context.Background(), settings, input, start))

	// Trigger at 1.3 s, flush at 3.4 s.
	out := filepath.Join(dir, "out", "replay_2024-05-17_06-00-03.wav")
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(30*100*4*2))

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	store, err := datastore.Open(settings.EventLog.Path, false)
	require.NoError(t, err)
	defer func() { assert.NoError(t, store.Close()) }()
	events, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, out, events[0].File)
	assert.Equal(t, []int{1}, events[0].Triggered())
	assert.True(t, events[0].EventTime.Equal(start.Add(1300*time.Millisecond)))
}

func TestReplayRejectsUnknownMode(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	input := writeInput(t, filepath.Join(dir, "in"))
	settings := replaySettings(dir)
	settings.EventLog.Enabled = false
	settings.Trigger.Mode = "loudness"

	err := Replay(context.Background(), settings, input, time.Now())
	require.ErrorIs(t, err, audiocore.ErrConfiguration)
}

func TestValidateAudioFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.wav")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	assert.ErrorContains(t, validateAudioFile(filepath.Join(dir, "missing.wav")), "error accessing file")
	assert.ErrorContains(t, validateAudioFile(dir), "is a directory")
	assert.ErrorContains(t, validateAudioFile(empty), "is empty")
}
