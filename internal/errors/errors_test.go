package errors

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = NewStd("sentinel failure")

type recordingReporter struct {
	mu       sync.Mutex
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reported = append(r.reported, ee)
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestBuilderSetsFields(t *testing.T) {
	err := New(errSentinel).
		Component("capture").
		Category(CategoryBuffer).
		Context("capacity", 0).
		Build()

	assert.Equal(t, "capture", err.Component)
	assert.Equal(t, CategoryBuffer, err.Category)
	assert.Equal(t, map[string]any{"capacity": 0}, err.GetContext())
	assert.False(t, err.Timestamp.IsZero())
	assert.Equal(t, "sentinel failure", err.Error())
}

func TestBuilderDefaults(t *testing.T) {
	err := Newf("value %d out of range", 42).Build()

	assert.Equal(t, ComponentUnknown, err.Component)
	assert.Equal(t, CategoryGeneric, err.Category)
	assert.Equal(t, "value 42 out of range", err.Error())
}

func TestIsThroughWrapping(t *testing.T) {
	built := New(fmt.Errorf("open device: %w", errSentinel)).
		Category(CategoryConfiguration).
		Build()
	wrapped := fmt.Errorf("startup: %w", built)

	assert.True(t, Is(wrapped, errSentinel))
	assert.True(t, IsCategory(wrapped, CategoryConfiguration))
	assert.False(t, IsCategory(wrapped, CategoryFileIO))

	var ee *EnhancedError
	require.True(t, As(wrapped, &ee))
	assert.Same(t, built, ee)
}

func TestIsMatchesCategory(t *testing.T) {
	a := New(NewStd("a")).Category(CategoryFileIO).Build()
	b := New(NewStd("b")).Category(CategoryFileIO).Build()
	c := New(NewStd("c")).Category(CategoryState).Build()

	assert.True(t, Is(a, b))
	assert.False(t, Is(a, c))
}

func TestTelemetryReporterReceivesBuiltErrors(t *testing.T) {
	reporter := &recordingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	_ = New(errSentinel).Component("export").Category(CategoryFileIO).Build()

	reporter.mu.Lock()
	defer reporter.mu.Unlock()
	require.Len(t, reporter.reported, 1)
	assert.Equal(t, "export", reporter.reported[0].Component)
}

func TestNoReportingWithoutReporter(t *testing.T) {
	SetTelemetryReporter(nil)
	assert.Nil(t, GetTelemetryReporter())
	assert.False(t, hasActiveReporting.Load())
}

func TestScrubPaths(t *testing.T) {
	msg := scrubPaths("write /home/user/recordings/multichannel_2024-01-02_03-04-05.wav: disk full")
	assert.Equal(t, "write .../multichannel_2024-01-02_03-04-05.wav: disk full", msg)
}

func TestMarkReported(t *testing.T) {
	err := New(errSentinel).Build()
	assert.False(t, err.IsReported())
	err.MarkReported()
	assert.True(t, err.IsReported())
}
