package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DiskManagerMetrics contains Prometheus metrics for the output disk guard.
type DiskManagerMetrics struct {
	diskUtilizationPercentage prometheus.Gauge
	diskFreeBytes             prometheus.Gauge
	writesRefusedTotal        prometheus.Counter
	checkErrorsTotal          prometheus.Counter
	registry                  *prometheus.Registry
}

// NewDiskManagerMetrics creates and registers disk metrics.
func NewDiskManagerMetrics(registry *prometheus.Registry) (*DiskManagerMetrics, error) {
	m := &DiskManagerMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register disk metrics: %w", err)
	}
	return m, nil
}

func (m *DiskManagerMetrics) initMetrics() {
	m.diskUtilizationPercentage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventrec_disk_utilization_percentage",
		Help: "Disk utilization of the output directory as a percentage",
	})
	m.diskFreeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventrec_disk_free_bytes",
		Help: "Free space on the output directory's filesystem",
	})
	m.writesRefusedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventrec_disk_writes_refused_total",
		Help: "Recordings refused because disk usage exceeded the limit",
	})
	m.checkErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventrec_disk_check_errors_total",
		Help: "Failed disk usage checks",
	})
}

// UpdateDiskUsage records the latest usage sample.
func (m *DiskManagerMetrics) UpdateDiskUsage(usedPercent float64, freeBytes uint64) {
	m.diskUtilizationPercentage.Set(usedPercent)
	m.diskFreeBytes.Set(float64(freeBytes))
}

// RecordRefusal counts a recording refused for lack of space.
func (m *DiskManagerMetrics) RecordRefusal() {
	m.writesRefusedTotal.Inc()
}

// RecordCheckError counts a failed usage check.
func (m *DiskManagerMetrics) RecordCheckError() {
	m.checkErrorsTotal.Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *DiskManagerMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.diskUtilizationPercentage.Describe(ch)
	m.diskFreeBytes.Describe(ch)
	m.writesRefusedTotal.Describe(ch)
	m.checkErrorsTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DiskManagerMetrics) Collect(ch chan<- prometheus.Metric) {
	m.diskUtilizationPercentage.Collect(ch)
	m.diskFreeBytes.Collect(ch)
	m.writesRefusedTotal.Collect(ch)
	m.checkErrorsTotal.Collect(ch)
}
