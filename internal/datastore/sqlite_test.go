package datastore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/eventrec/internal/audiocore"
	eventerrors "github.com/tphakala/eventrec/internal/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "events.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func recordingAt(id string, flush time.Time, triggered ...int) *audiocore.Recording {
	return &audiocore.Recording{
		ID:         id,
		Blocks:     []audiocore.SampleBlock{audiocore.NewSampleBlock(4800, 2)},
		SampleRate: 48000,
		Channels:   2,
		EventTime:  flush.Add(-9 * time.Second),
		FlushTime:  flush,
		Triggered:  triggered,
	}
}

func TestRecordingWrittenAndList(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 17, 6, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordingWritten(ctx, recordingAt("a", base, 8), "/rec/a.wav"))
	require.NoError(t, s.RecordingWritten(ctx, recordingAt("b", base.Add(time.Minute), 8, 10), "/rec/b.wav"))
	require.NoError(t, s.RecordingWritten(ctx, recordingAt("", base.Add(2*time.Minute)), "/rec/c.wav"))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	events, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "/rec/c.wav", events[0].File)
	assert.NotEmpty(t, events[0].EventID, "missing IDs are generated")
	assert.Nil(t, events[0].Triggered())
	assert.Equal(t, "b", events[1].EventID)
	assert.Equal(t, []int{8, 10}, events[1].Triggered())
	assert.InDelta(t, 0.1, events[1].DurationSeconds, 1e-9)
	assert.True(t, events[1].EventTime.Equal(base.Add(time.Minute-9*time.Second)))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDuplicateEventIDRejected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.RecordingWritten(ctx, recordingAt("same", now), "a.wav"))
	err := s.RecordingWritten(ctx, recordingAt("same", now), "b.wav")
	require.Error(t, err)
	assert.True(t, eventerrors.IsCategory(err, eventerrors.CategoryDatabase))
}

func TestReopenKeepsEvents(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.db")
	ctx := context.Background()

	s, err := Open(path, true)
	require.NoError(t, err)
	require.NoError(t, s.RecordingWritten(ctx, recordingAt("x", time.Now(), 3), "x.wav"))
	require.NoError(t, s.Close())

	s, err = Open(path, false)
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.Close()) }()
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEventTriggeredMalformed(t *testing.T) {
	t.Parallel()
	e := Event{TriggeredChannels: "8;10"}
	assert.Nil(t, e.Triggered())
}
