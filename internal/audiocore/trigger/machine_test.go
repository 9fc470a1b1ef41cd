package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/audiocore/detection"
)

var t0 = time.Date(2024, 5, 17, 6, 30, 0, 0, time.UTC)

func defaultConfig() Config {
	return Config{
		SampleRate:   192000,
		BlockSize:    2048,
		PreEvent:     3 * time.Second,
		PostEvent:    9 * time.Second,
		Threshold:    0.1,
		Channels:     []int{8, 10},
		ChannelCount: 16,
		Prefix:       "multichannel_",
	}
}

// clipBlock builds a small block stamped at ts; loud puts 0.5 on channel 8.
func clipBlock(ts time.Time, loud bool) audiocore.SampleBlock {
	b := audiocore.NewSampleBlock(8, 16)
	if loud {
		b.Set(0, 8, 0.5)
	}
	b.Timestamp = ts
	return b
}

func newMachine(t *testing.T) *Machine {
	t.Helper()
	m, err := NewMachine(defaultConfig(), detection.PeakEvaluator{})
	require.NoError(t, err)
	return m
}

func TestIdleBuffersSilence(t *testing.T) {
	t.Parallel()
	m := newMachine(t)

	for i := range 100 {
		d := m.Observe(clipBlock(t0.Add(time.Duration(i)*time.Millisecond), false))
		assert.Equal(t, ActionBuffer, d.Action)
		assert.Equal(t, StateIdle, d.State)
	}
	assert.Zero(t, m.Events())
}

func TestTriggerComputesDeadline(t *testing.T) {
	t.Parallel()
	m := newMachine(t)

	d := m.Observe(clipBlock(t0, true))
	require.Equal(t, ActionTrigger, d.Action)
	assert.True(t, d.Action.Buffers(), "the triggering block is part of the recording")
	assert.Equal(t, StatePostEvent, m.State())
	assert.Equal(t, t0, d.Event.EventTime)
	assert.Equal(t, t0.Add(9*time.Second), d.Event.RecordingEnd)
	assert.Equal(t, []int{8}, d.Event.Triggered)
	assert.Equal(t, uint64(1), m.Events())
}

func TestNoRetriggerDuringPostEvent(t *testing.T) {
	t.Parallel()
	m := newMachine(t)

	first := m.Observe(clipBlock(t0, true))
	require.Equal(t, ActionTrigger, first.Action)

	flushes := 0
	var flushed Event
	for ms := 10; ms <= 9000; ms += 10 {
		d := m.Observe(clipBlock(t0.Add(time.Duration(ms)*time.Millisecond), true))
		switch d.Action {
		case ActionFlush:
			flushes++
			flushed = d.Event
		case ActionTrigger:
			t.Fatalf("re-triggered at +%dms", ms)
		}
	}
	assert.Zero(t, flushes, "deadline is inclusive; nothing flushes at exactly +9s")

	d := m.Observe(clipBlock(t0.Add(9*time.Second+time.Millisecond), true))
	require.Equal(t, ActionFlush, d.Action)
	flushes++
	flushed = d.Event

	assert.Equal(t, 1, flushes)
	assert.Equal(t, t0, flushed.EventTime, "event time must not move")
	assert.Equal(t, t0.Add(9*time.Second), flushed.RecordingEnd, "deadline must not be extended")
	assert.Equal(t, t0.Add(9*time.Second+time.Millisecond), flushed.FlushTime)
	assert.Equal(t, uint64(1), m.Events())
}

func TestCooldownDropsAudioAndBlocksTriggers(t *testing.T) {
	t.Parallel()
	m := newMachine(t)

	m.Observe(clipBlock(t0, true))
	flushAt := t0.Add(9*time.Second + time.Millisecond)
	d := m.Observe(clipBlock(flushAt, false))
	require.Equal(t, ActionFlush, d.Action)
	assert.Equal(t, StateCooldown, m.State())
	assert.Equal(t, flushAt.Add(12*time.Second), m.CooldownEnd())

	for ms := 0; ms < 12000; ms += 50 {
		d := m.Observe(clipBlock(flushAt.Add(time.Duration(ms)*time.Millisecond), true))
		assert.Equal(t, ActionDiscard, d.Action)
		assert.False(t, d.Action.Buffers())
	}
	assert.Equal(t, uint64(1), m.Events())

	// First block at the cool-down end is evaluated as idle.
	d = m.Observe(clipBlock(flushAt.Add(12*time.Second), true))
	assert.Equal(t, ActionTrigger, d.Action)
	assert.Equal(t, uint64(2), m.Events())
	assert.True(t, m.CooldownEnd().IsZero())
}

func TestCooldownEndsQuietly(t *testing.T) {
	t.Parallel()
	m := newMachine(t)

	m.Observe(clipBlock(t0, true))
	flushAt := t0.Add(10 * time.Second)
	require.Equal(t, ActionFlush, m.Observe(clipBlock(flushAt, false)).Action)

	d := m.Observe(clipBlock(flushAt.Add(13*time.Second), false))
	assert.Equal(t, ActionBuffer, d.Action)
	assert.Equal(t, StateIdle, d.State)
}

func TestInterrupt(t *testing.T) {
	t.Parallel()
	m := newMachine(t)

	_, ok := m.Interrupt(t0)
	assert.False(t, ok, "nothing to interrupt while idle")

	m.Observe(clipBlock(t0, true))
	ev, ok := m.Interrupt(t0.Add(2 * time.Second))
	require.True(t, ok)
	assert.Equal(t, t0, ev.EventTime)
	assert.Equal(t, t0.Add(2*time.Second), ev.FlushTime)
	assert.Equal(t, StateIdle, m.State())
}

func TestNewMachineDefaultsToPeak(t *testing.T) {
	t.Parallel()
	m, err := NewMachine(defaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, ActionTrigger, m.Observe(clipBlock(t0, true)).Action)
}

func TestRMSMachine(t *testing.T) {
	t.Parallel()
	m, err := NewMachine(defaultConfig(), detection.RMSEvaluator{})
	require.NoError(t, err)

	// One 0.5 sample in 8 frames: RMS = 0.5/sqrt(8) ~ 0.177, above 0.1.
	assert.Equal(t, ActionTrigger, m.Observe(clipBlock(t0, true)).Action)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, "sample rate"},
		{"negative block size", func(c *Config) { c.BlockSize = -1 }, "block size"},
		{"zero pre-event", func(c *Config) { c.PreEvent = 0 }, "pre-event"},
		{"negative post-event", func(c *Config) { c.PostEvent = -time.Second }, "post-event"},
		{"zero threshold", func(c *Config) { c.Threshold = 0 }, "threshold"},
		{"threshold above full scale", func(c *Config) { c.Threshold = 1.01 }, "at most 1"},
		{"full scale threshold", func(c *Config) { c.Threshold = 1 }, ""},
		{"zero channel count", func(c *Config) { c.ChannelCount = 0 }, "channel count"},
		{"channel out of range", func(c *Config) { c.ChannelCount = 4 }, "monitor channel 8 out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, audiocore.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfigDurations(t *testing.T) {
	t.Parallel()
	cfg := defaultConfig()
	assert.Equal(t, 12*time.Second, cfg.TotalDuration())
	assert.Equal(t, 12*time.Second, cfg.Cooldown())
	assert.Equal(t, 10666666*time.Nanosecond, cfg.BlockDuration())
}

func TestStateAndActionStrings(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "post_event", StatePostEvent.String())
	assert.Equal(t, "cooldown", StateCooldown.String())
	assert.Equal(t, "flush", ActionFlush.String())
	assert.Equal(t, "discard", ActionDiscard.String())
}
