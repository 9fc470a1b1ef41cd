package trigger

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/audiocore/detection"
	"github.com/tphakala/eventrec/internal/errors"
)

// Config is the immutable per-run trigger configuration.
type Config struct {
	SampleRate   int
	BlockSize    int
	PreEvent     time.Duration
	PostEvent    time.Duration
	Threshold    float64
	Channels     []int // monitored channel indices, 0-based
	ChannelCount int   // channels opened on the device
	Prefix       string
}

// TotalDuration is the audio span a recording covers: pre plus post event.
func (c Config) TotalDuration() time.Duration {
	return c.PreEvent + c.PostEvent
}

// Cooldown is the pause after a flush during which audio is dropped and no
// event can trigger.
func (c Config) Cooldown() time.Duration {
	return c.PreEvent + c.PostEvent
}

// BlockDuration is the length of one block.
func (c Config) BlockDuration() time.Duration {
	return audiocore.Format{SampleRate: c.SampleRate, BlockSize: c.BlockSize}.BlockDuration()
}

// Validate reports every configuration problem as a single error wrapping
// audiocore.ErrConfiguration.
func (c Config) Validate() error {
	var problems []string

	if c.SampleRate <= 0 {
		problems = append(problems, fmt.Sprintf("sample rate must be positive, got %d", c.SampleRate))
	}
	if c.BlockSize <= 0 {
		problems = append(problems, fmt.Sprintf("block size must be positive, got %d", c.BlockSize))
	}
	if c.PreEvent <= 0 {
		problems = append(problems, fmt.Sprintf("pre-event duration must be positive, got %s", c.PreEvent))
	}
	if c.PostEvent <= 0 {
		problems = append(problems, fmt.Sprintf("post-event duration must be positive, got %s", c.PostEvent))
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		problems = append(problems, fmt.Sprintf("threshold must be positive and at most 1, got %g", c.Threshold))
	}
	if c.ChannelCount <= 0 {
		problems = append(problems, fmt.Sprintf("channel count must be positive, got %d", c.ChannelCount))
	} else if err := detection.ValidateChannels(c.Channels, c.ChannelCount); err != nil {
		problems = append(problems, strings.TrimPrefix(err.Error(), audiocore.ErrConfiguration.Error()+": "))
	}

	if len(problems) == 0 {
		return nil
	}

	return errors.New(fmt.Errorf("%w: %s", audiocore.ErrConfiguration, strings.Join(problems, "; "))).
		Component("trigger").
		Category(errors.CategoryConfiguration).
		Context("problems", problems).
		Build()
}

// clone returns a copy that does not share the channel slice.
func (c Config) clone() Config {
	c.Channels = slices.Clone(c.Channels)
	return c
}
