package recorder

import (
	"context"
	"log/slog"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/audiocore/trigger"
	"github.com/tphakala/eventrec/internal/conf"
)

// DefaultFlushQueue is the number of recordings that may wait for the sink
// before new ones are dropped.
const DefaultFlushQueue = 4

// Metrics receives pipeline observations. *metrics.RecorderMetrics
// implements it.
type Metrics interface {
	ObserveBlock()
	ObserveDiscard()
	ObserveTrigger(channels []int)
	ObserveFlush()
	ObserveDroppedRecording()
	ObserveWrite(seconds, audioSeconds float64, err error)
	ObserveSourceError()
	SetBufferFill(ratio float64)
	SetState(state string)
}

// DiskGuard refuses writes when the output volume is too full.
type DiskGuard interface {
	Check(ctx context.Context) error
}

// Options wires a RecorderContext. Source, Sink and Trigger are required.
type Options struct {
	Source    audiocore.Source
	Sink      audiocore.Sink
	Trigger   trigger.Config
	Evaluator audiocore.Evaluator // nil selects peak detection

	Metrics    Metrics
	Guard      DiskGuard
	Listeners  []audiocore.Listener
	FlushQueue int
	Logger     *slog.Logger
}

// TriggerConfig converts settings into the trigger configuration.
func TriggerConfig(settings *conf.Settings) trigger.Config {
	return trigger.Config{
		SampleRate:   settings.Audio.SampleRate,
		BlockSize:    settings.Audio.BlockSize,
		PreEvent:     settings.Trigger.PreEvent(),
		PostEvent:    settings.Trigger.PostEvent(),
		Threshold:    settings.Trigger.Threshold,
		Channels:     settings.Trigger.MonitorChannels,
		ChannelCount: settings.Audio.ChannelCount,
		Prefix:       settings.Output.FilePrefix,
	}
}

// noopMetrics discards observations.
type noopMetrics struct{}

func (noopMetrics) ObserveBlock()                        {}
func (noopMetrics) ObserveDiscard()                      {}
func (noopMetrics) ObserveTrigger([]int)                 {}
func (noopMetrics) ObserveFlush()                        {}
func (noopMetrics) ObserveDroppedRecording()             {}
func (noopMetrics) ObserveWrite(float64, float64, error) {}
func (noopMetrics) ObserveSourceError()                  {}
func (noopMetrics) SetBufferFill(float64)                {}
func (noopMetrics) SetState(string)                      {}
