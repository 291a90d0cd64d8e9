package inspector

import (
	"context"
	"errors"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HerbHall/hwmeter/internal/host"
)

// Manager dispatches each inspection to the first inspector, in priority
// order, that is enabled for the host and returns a result. Results from
// different inspectors are never merged. No inspection error escapes the
// Manager: "no data" is reported as ok == false.
type Manager struct {
	inspectors []Inspector
	logger     *zap.Logger
	failures   *prometheus.CounterVec
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithFailureCounter counts failed inspections. The vector must have the
// labels "inspector", "metric" and "reason".
func WithFailureCounter(c *prometheus.CounterVec) ManagerOption {
	return func(m *Manager) { m.failures = c }
}

// NewManager creates a Manager over inspectors in the given priority order.
func NewManager(inspectors []Inspector, logger *zap.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		inspectors: slices.Clone(inspectors),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Inspectors returns the managed inspectors in priority order.
func (m *Manager) Inspectors() []Inspector {
	return slices.Clone(m.inspectors)
}

// InspectCPU returns load averages for h.
func (m *Manager) InspectCPU(ctx context.Context, h *host.Host) (CPUStats, bool) {
	return dispatch(ctx, m, h, MetricCPU, func(i CPUInspector) (CPUStats, error) {
		return i.InspectCPU(ctx, h)
	})
}

// InspectCPUTime returns cumulative CPU time for h.
func (m *Manager) InspectCPUTime(ctx context.Context, h *host.Host) (CPUTimes, bool) {
	return dispatch(ctx, m, h, MetricCPUTime, func(i CPUTimeInspector) (CPUTimes, error) {
		return i.InspectCPUTime(ctx, h)
	})
}

// InspectMemory returns memory totals for h.
func (m *Manager) InspectMemory(ctx context.Context, h *host.Host) (MemoryStats, bool) {
	return dispatch(ctx, m, h, MetricMemory, func(i MemoryInspector) (MemoryStats, error) {
		return i.InspectMemory(ctx, h)
	})
}

// InspectDisks returns the disks of h. An empty table is a successful,
// empty result.
func (m *Manager) InspectDisks(ctx context.Context, h *host.Host) ([]DiskUsage, bool) {
	return dispatch(ctx, m, h, MetricDisk, func(i DiskInspector) ([]DiskUsage, error) {
		return i.InspectDisks(ctx, h)
	})
}

// InspectNICs returns the network interfaces of h.
func (m *Manager) InspectNICs(ctx context.Context, h *host.Host) ([]InterfaceUsage, bool) {
	return dispatch(ctx, m, h, MetricNetwork, func(i NetworkInspector) ([]InterfaceUsage, error) {
		return i.InspectNetwork(ctx, h)
	})
}

func dispatch[T any, C Inspector](ctx context.Context, m *Manager, h *host.Host, metric string, call func(C) (T, error)) (T, bool) {
	var zero T
	for _, insp := range m.inspectors {
		if ctx.Err() != nil {
			return zero, false
		}

		name := insp.Name()
		log := m.logger.With(
			zap.String("host", h.IPAddress()),
			zap.String("inspector", name),
			zap.String("metric", metric),
		)

		if h.InspectorDisabled(name) {
			log.Debug("inspector disabled for host")
			continue
		}

		capable, ok := any(insp).(C)
		if !ok {
			log.Debug("capability not implemented")
			continue
		}

		result, err := call(capable)
		if err != nil {
			// A cancelled cycle is not an inspector failure.
			if ctx.Err() != nil {
				log.Debug("inspection cancelled", zap.Error(err))
				return zero, false
			}
			if errors.Is(err, ErrNotImplemented) {
				log.Debug("capability not implemented", zap.Error(err))
				m.countFailure(name, metric, "not_implemented")
				continue
			}
			reason := "error"
			if errors.Is(err, ErrEndpointUnreachable) {
				reason = "unreachable"
			}
			log.Warn("inspection failed, trying next inspector", zap.Error(err))
			m.countFailure(name, metric, reason)
			continue
		}
		return result, true
	}
	return zero, false
}

func (m *Manager) countFailure(inspector, metric, reason string) {
	if m.failures == nil {
		return
	}
	m.failures.WithLabelValues(inspector, metric, reason).Inc()
}
