package agent

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the poller's own Prometheus metrics.
type Metrics struct {
	CycleDuration      prometheus.Histogram
	SkippedTicks       prometheus.Counter
	Samples            *prometheus.CounterVec
	PublishFailures    prometheus.Counter
	InspectionFailures *prometheus.CounterVec
	Hosts              prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hwmeter",
			Name:      "poll_cycle_duration_seconds",
			Help:      "Time taken to poll every host once.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SkippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hwmeter",
			Name:      "poll_skipped_ticks_total",
			Help:      "Ticks skipped because the previous cycle was still running.",
		}),
		Samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hwmeter",
			Name:      "samples_total",
			Help:      "Samples emitted, by pollster.",
		}, []string{"pollster"}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hwmeter",
			Name:      "publish_failures_total",
			Help:      "Sample batches at least one sink failed to accept.",
		}),
		InspectionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hwmeter",
			Name:      "inspection_failures_total",
			Help:      "Failed inspections, by inspector, metric and reason.",
		}, []string{"inspector", "metric", "reason"}),
		Hosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hwmeter",
			Name:      "hosts",
			Help:      "Hosts in the polling list.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.CycleDuration,
			m.SkippedTicks,
			m.Samples,
			m.PublishFailures,
			m.InspectionFailures,
			m.Hosts,
		)
	}
	return m
}
