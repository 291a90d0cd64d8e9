package pollster

import (
	"context"

	"go.uber.org/zap"

	"github.com/HerbHall/hwmeter/internal/host"
	"github.com/HerbHall/hwmeter/internal/inspector"
)

// CPU emits the 1, 5 and 15 minute load averages as gauges.
type CPU struct{ base }

var _ Pollster = (*CPU)(nil)

// NewCPU creates the cpu pollster.
func NewCPU(logger *zap.Logger, clock Clock) *CPU {
	return &CPU{newBase(logger, clock)}
}

func (p *CPU) Name() string { return NameCPU }

func (p *CPU) Names() []string {
	return []string{"cpu_util_1_min", "cpu_util_5_min", "cpu_util_15_min"}
}

func (p *CPU) Collect(ctx context.Context, m *inspector.Manager, h *host.Host) []Sample {
	stats, ok := m.InspectCPU(ctx, h)
	if !ok {
		p.noData(h, inspector.MetricCPU)
		return nil
	}
	now := p.clock.Now()
	return []Sample{
		newSample(h, "cpu_util_1_min", KindGauge, UnitPercent, stats.Load1, now, nil),
		newSample(h, "cpu_util_5_min", KindGauge, UnitPercent, stats.Load5, now, nil),
		newSample(h, "cpu_util_15_min", KindGauge, UnitPercent, stats.Load15, now, nil),
	}
}

// CPUUtil emits cumulative CPU time and the utilization derived from the
// previous reading of the same host.
type CPUUtil struct {
	base
	tracker *UtilizationTracker
}

var _ Pollster = (*CPUUtil)(nil)

// NewCPUUtil creates the cpu_util pollster. A nil tracker gets a fresh one.
func NewCPUUtil(tracker *UtilizationTracker, logger *zap.Logger, clock Clock) *CPUUtil {
	if tracker == nil {
		tracker = NewUtilizationTracker()
	}
	return &CPUUtil{base: newBase(logger, clock), tracker: tracker}
}

func (p *CPUUtil) Name() string { return NameCPUUtil }

func (p *CPUUtil) Names() []string { return []string{"cpu", "cpu_util"} }

func (p *CPUUtil) Collect(ctx context.Context, m *inspector.Manager, h *host.Host) []Sample {
	times, ok := m.InspectCPUTime(ctx, h)
	if !ok {
		p.noData(h, inspector.MetricCPUTime)
		return nil
	}
	now := p.clock.Now()
	util := p.tracker.Observe(h.ID, times.Number, times.Time, now)
	return []Sample{
		newSample(h, "cpu", KindCumulative, UnitNanoseconds, float64(times.Time), now, nil),
		newSample(h, "cpu_util", KindGauge, UnitPercent, util, now, nil),
	}
}
