package publish

import (
	"context"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/HerbHall/hwmeter/internal/pollster"
)

var sampleLabels = []string{"resource_id", "instance", "ip_address", "host_name"}

// PrometheusSink exposes the latest value of every series as a Prometheus
// metric. Gauge samples become gauges, cumulative samples counters.
type PrometheusSink struct {
	namespace string

	mu     sync.RWMutex
	latest map[string]pollster.Sample
	descs  map[string]*prometheus.Desc
}

var (
	_ Sink                 = (*PrometheusSink)(nil)
	_ Retirer              = (*PrometheusSink)(nil)
	_ prometheus.Collector = (*PrometheusSink)(nil)
)

// NewPrometheusSink creates a sink whose metric names start with namespace.
func NewPrometheusSink(namespace string) *PrometheusSink {
	return &PrometheusSink{
		namespace: namespace,
		latest:    make(map[string]pollster.Sample),
		descs:     make(map[string]*prometheus.Desc),
	}
}

func (s *PrometheusSink) Name() string { return "prometheus" }

func (s *PrometheusSink) Publish(_ context.Context, samples []pollster.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, smp := range samples {
		s.latest[smp.SeriesKey()] = smp
		if _, ok := s.descs[smp.Name]; !ok {
			s.descs[smp.Name] = prometheus.NewDesc(
				metricName(s.namespace, smp.Name),
				"hwmeter sample "+smp.Name+" ("+smp.Unit+")",
				sampleLabels, nil,
			)
		}
	}
	return nil
}

// Retire stops exporting every series of a resource.
func (s *PrometheusSink) Retire(_ context.Context, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, smp := range s.latest {
		if smp.ResourceID == resourceID {
			delete(s.latest, k)
		}
	}
	return nil
}

func (s *PrometheusSink) Close() error { return nil }

// Describe sends nothing: the set of series is only known after polling,
// which makes this an unchecked collector.
func (s *PrometheusSink) Describe(chan<- *prometheus.Desc) {}

// Collect emits one const metric per stored series.
func (s *PrometheusSink) Collect(ch chan<- prometheus.Metric) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, smp := range s.latest {
		vt := prometheus.GaugeValue
		if smp.Kind == pollster.KindCumulative {
			vt = prometheus.CounterValue
		}
		m, err := prometheus.NewConstMetric(s.descs[smp.Name], vt, smp.Volume,
			smp.ResourceID, smp.Instance(),
			smp.ResourceMetadata["ip_address"], smp.ResourceMetadata["host_name"],
		)
		if err != nil {
			continue
		}
		ch <- prometheus.NewMetricWithTimestamp(smp.Timestamp, m)
	}
}

// metricName maps "network.incoming.bytes" to "hwmeter_network_incoming_bytes".
func metricName(namespace, sample string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, sample)
	return prometheus.BuildFQName(namespace, "", name)
}
