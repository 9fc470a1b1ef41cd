// Package metrics provides Prometheus collectors for the recorder pipeline.
package metrics

import (
	"fmt"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder states exported on the state gauge.
var recorderStates = []string{"idle", "post_event", "cooldown"}

// RecorderMetrics contains Prometheus metrics for the capture and flush
// pipeline.
type RecorderMetrics struct {
	BlocksTotal       prometheus.Counter
	BlocksDiscarded   prometheus.Counter
	TriggersTotal     prometheus.Counter
	FlushesTotal      prometheus.Counter
	RecordingsDropped prometheus.Counter
	SinkFailures      prometheus.Counter
	SourceErrors      prometheus.Counter
	BufferFill        prometheus.Gauge
	State             *prometheus.GaugeVec
	FlushDuration     prometheus.Histogram
	RecordingDuration prometheus.Histogram
	TriggeredChannels *prometheus.CounterVec
	registry          *prometheus.Registry
}

// NewRecorderMetrics creates and registers recorder metrics.
func NewRecorderMetrics(registry *prometheus.Registry) (*RecorderMetrics, error) {
	m := &RecorderMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register recorder metrics: %w", err)
	}
	return m, nil
}

func (m *RecorderMetrics) initMetrics() {
	m.BlocksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventrec_blocks_total",
		Help: "Total number of audio blocks read from the source",
	})
	m.BlocksDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventrec_blocks_discarded_total",
		Help: "Total number of audio blocks dropped during cooldown",
	})
	m.TriggersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventrec_triggers_total",
		Help: "Total number of threshold crossings that started an event",
	})
	m.FlushesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventrec_flushes_total",
		Help: "Total number of recordings handed to the writer",
	})
	m.RecordingsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventrec_recordings_dropped_total",
		Help: "Total number of recordings dropped because the writer queue was full",
	})
	m.SinkFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventrec_sink_failures_total",
		Help: "Total number of recordings that could not be written",
	})
	m.SourceErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventrec_source_errors_total",
		Help: "Total number of failed block reads",
	})
	m.BufferFill = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventrec_buffer_fill_ratio",
		Help: "Fraction of the pre-event ring buffer currently filled",
	})
	m.State = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "eventrec_state",
		Help: "Current recorder state (1 for the active state)",
	}, []string{"state"})
	m.FlushDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventrec_flush_duration_seconds",
		Help:    "Time taken to write a recording",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})
	m.RecordingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventrec_recording_duration_seconds",
		Help:    "Audio length of written recordings",
		Buckets: prometheus.LinearBuckets(2, 2, 10),
	})
	m.TriggeredChannels = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventrec_channel_triggers_total",
		Help: "Threshold crossings per monitored channel",
	}, []string{"channel"})

	for _, s := range recorderStates {
		m.State.WithLabelValues(s).Set(0)
	}
	m.State.WithLabelValues(recorderStates[0]).Set(1)
}

// ObserveBlock counts a block read from the source.
func (m *RecorderMetrics) ObserveBlock() {
	m.BlocksTotal.Inc()
}

// ObserveDiscard counts a block dropped during cooldown.
func (m *RecorderMetrics) ObserveDiscard() {
	m.BlocksDiscarded.Inc()
}

// ObserveTrigger counts an event start and the channels that crossed.
func (m *RecorderMetrics) ObserveTrigger(channels []int) {
	m.TriggersTotal.Inc()
	for _, ch := range channels {
		m.TriggeredChannels.WithLabelValues(fmt.Sprint(ch)).Inc()
	}
}

// ObserveFlush counts a recording handed to the writer.
func (m *RecorderMetrics) ObserveFlush() {
	m.FlushesTotal.Inc()
}

// ObserveDroppedRecording counts a recording lost to a full writer queue.
func (m *RecorderMetrics) ObserveDroppedRecording() {
	m.RecordingsDropped.Inc()
}

// ObserveWrite records the outcome of writing a recording.
func (m *RecorderMetrics) ObserveWrite(seconds, audioSeconds float64, err error) {
	m.FlushDuration.Observe(seconds)
	if err != nil {
		m.SinkFailures.Inc()
		return
	}
	m.RecordingDuration.Observe(audioSeconds)
}

// ObserveSourceError counts a failed block read.
func (m *RecorderMetrics) ObserveSourceError() {
	m.SourceErrors.Inc()
}

// SetBufferFill sets the ring buffer fill ratio.
func (m *RecorderMetrics) SetBufferFill(ratio float64) {
	m.BufferFill.Set(ratio)
}

// SetState marks state as the active recorder state. Unknown states are
// ignored.
func (m *RecorderMetrics) SetState(state string) {
	if !slices.Contains(recorderStates, state) {
		return
	}
	for _, s := range recorderStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.State.WithLabelValues(s).Set(v)
	}
}

// Describe implements the prometheus.Collector interface.
func (m *RecorderMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.BlocksTotal.Describe(ch)
	m.BlocksDiscarded.Describe(ch)
	m.TriggersTotal.Describe(ch)
	m.FlushesTotal.Describe(ch)
	m.RecordingsDropped.Describe(ch)
	m.SinkFailures.Describe(ch)
	m.SourceErrors.Describe(ch)
	m.BufferFill.Describe(ch)
	m.State.Describe(ch)
	m.FlushDuration.Describe(ch)
	m.RecordingDuration.Describe(ch)
	m.TriggeredChannels.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *RecorderMetrics) Collect(ch chan<- prometheus.Metric) {
	m.BlocksTotal.Collect(ch)
	m.BlocksDiscarded.Collect(ch)
	m.TriggersTotal.Collect(ch)
	m.FlushesTotal.Collect(ch)
	m.RecordingsDropped.Collect(ch)
	m.SinkFailures.Collect(ch)
	m.SourceErrors.Collect(ch)
	m.BufferFill.Collect(ch)
	m.State.Collect(ch)
	m.FlushDuration.Collect(ch)
	m.RecordingDuration.Collect(ch)
	m.TriggeredChannels.Collect(ch)
}
