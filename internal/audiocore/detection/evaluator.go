// Package detection implements the per-block threshold evaluators.
//
// Both evaluators report, per requested channel, whether the block's level
// is at or above the threshold. Channel indices are checked once with
// ValidateChannels when the recorder is configured, not per block.
package detection

import (
	"fmt"
	"math"
	"strings"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/errors"
)

// Evaluator modes accepted in configuration.
const (
	ModePeak = "peak"
	ModeRMS  = "rms"
)

// PeakEvaluator triggers on the largest absolute sample per channel.
type PeakEvaluator struct{}

// Name returns the evaluator mode.
func (PeakEvaluator) Name() string { return ModePeak }

// Evaluate implements audiocore.Evaluator.
func (PeakEvaluator) Evaluate(block audiocore.SampleBlock, channels []int, threshold float64) []bool {
	out := make([]bool, len(channels))
	for i, ch := range channels {
		out[i] = Peak(block, ch) >= threshold
	}
	return out
}

// RMSEvaluator triggers on the root-mean-square level per channel.
type RMSEvaluator struct{}

// Name returns the evaluator mode.
func (RMSEvaluator) Name() string { return ModeRMS }

// Evaluate implements audiocore.Evaluator.
func (RMSEvaluator) Evaluate(block audiocore.SampleBlock, channels []int, threshold float64) []bool {
	out := make([]bool, len(channels))
	for i, ch := range channels {
		out[i] = RMS(block, ch) >= threshold
	}
	return out
}

// Peak returns the maximum absolute sample value of one channel.
func Peak(block audiocore.SampleBlock, channel int) float64 {
	var peak float64
	for f := range block.Frames {
		v := math.Abs(float64(block.Samples[f*block.Channels+channel]))
		if v > peak {
			peak = v
		}
	}
	return peak
}

// RMS returns the root-mean-square level of one channel.
func RMS(block audiocore.SampleBlock, channel int) float64 {
	if block.Frames == 0 {
		return 0
	}
	var sum float64
	for f := range block.Frames {
		v := float64(block.Samples[f*block.Channels+channel])
		sum += v * v
	}
	return math.Sqrt(sum / float64(block.Frames))
}

// New returns the evaluator for a configured mode.
func New(mode string) (audiocore.Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModePeak, "":
		return PeakEvaluator{}, nil
	case ModeRMS:
		return RMSEvaluator{}, nil
	default:
		return nil, errors.New(fmt.Errorf("%w: unknown trigger mode %q (supported: %s, %s)",
			audiocore.ErrConfiguration, mode, ModePeak, ModeRMS)).
			Component("detection").
			Category(errors.CategoryConfiguration).
			Context("mode", mode).
			Build()
	}
}

// ValidateChannels checks that every monitored channel exists on a device
// opened with channelCount channels.
func ValidateChannels(channels []int, channelCount int) error {
	if len(channels) == 0 {
		return errors.New(fmt.Errorf("%w: no monitor channels configured", audiocore.ErrConfiguration)).
			Component("detection").
			Category(errors.CategoryConfiguration).
			Build()
	}
	for _, ch := range channels {
		if ch < 0 || ch >= channelCount {
			return errors.New(fmt.Errorf("%w: monitor channel %d out of range, device has %d channels (valid 0..%d)",
				audiocore.ErrConfiguration, ch, channelCount, channelCount-1)).
				Component("detection").
				Category(errors.CategoryConfiguration).
				Context("channel", ch).
				Context("channel_count", channelCount).
				Build()
		}
	}
	return nil
}

// Triggered returns the channels whose result is true.
func Triggered(channels []int, results []bool) []int {
	var hits []int
	for i, hit := range results {
		if hit {
			hits = append(hits, channels[i])
		}
	}
	return hits
}

// Any reports whether at least one result is true.
func Any(results []bool) bool {
	for _, hit := range results {
		if hit {
			return true
		}
	}
	return false
}
