package pollster

import (
	"context"

	"go.uber.org/zap"

	"github.com/HerbHall/hwmeter/internal/host"
	"github.com/HerbHall/hwmeter/internal/inspector"
)

// Memory emits total and used physical memory.
type Memory struct{ base }

var _ Pollster = (*Memory)(nil)

// NewMemory creates the memory pollster.
func NewMemory(logger *zap.Logger, clock Clock) *Memory {
	return &Memory{newBase(logger, clock)}
}

func (p *Memory) Name() string { return NameMemory }

func (p *Memory) Names() []string { return []string{"memory.size.total", "memory.size.used"} }

func (p *Memory) Collect(ctx context.Context, m *inspector.Manager, h *host.Host) []Sample {
	stats, ok := m.InspectMemory(ctx, h)
	if !ok {
		p.noData(h, inspector.MetricMemory)
		return nil
	}
	now := p.clock.Now()
	return []Sample{
		newSample(h, "memory.size.total", KindCumulative, UnitBytes, float64(stats.Total), now, nil),
		newSample(h, "memory.size.used", KindCumulative, UnitBytes, float64(stats.Used), now, nil),
	}
}

// Disk emits size and usage per disk.
type Disk struct{ base }

var _ Pollster = (*Disk)(nil)

// NewDisk creates the disk pollster.
func NewDisk(logger *zap.Logger, clock Clock) *Disk {
	return &Disk{newBase(logger, clock)}
}

func (p *Disk) Name() string { return NameDisk }

func (p *Disk) Names() []string { return []string{"disk.size.total", "disk.size.used"} }

func (p *Disk) Collect(ctx context.Context, m *inspector.Manager, h *host.Host) []Sample {
	disks, ok := m.InspectDisks(ctx, h)
	if !ok {
		p.noData(h, inspector.MetricDisk)
		return nil
	}
	now := p.clock.Now()
	samples := make([]Sample, 0, 2*len(disks))
	for _, d := range disks {
		md := map[string]string{"device": d.Disk.Device, "path": d.Disk.Path}
		samples = append(samples,
			newSample(h, "disk.size.total", KindCumulative, UnitBytes, float64(d.Stats.Size), now, md),
			newSample(h, "disk.size.used", KindCumulative, UnitBytes, float64(d.Stats.Used), now, md),
		)
	}
	return samples
}

// Network emits bandwidth and traffic counters per interface.
type Network struct{ base }

var _ Pollster = (*Network)(nil)

// NewNetwork creates the network pollster.
func NewNetwork(logger *zap.Logger, clock Clock) *Network {
	return &Network{newBase(logger, clock)}
}

func (p *Network) Name() string { return NameNetwork }

func (p *Network) Names() []string {
	return []string{
		"network.bandwidth",
		"network.incoming.bytes",
		"network.outgoing.bytes",
		"network.outgoing.errors",
	}
}

func (p *Network) Collect(ctx context.Context, m *inspector.Manager, h *host.Host) []Sample {
	nics, ok := m.InspectNICs(ctx, h)
	if !ok {
		p.noData(h, inspector.MetricNetwork)
		return nil
	}
	now := p.clock.Now()
	samples := make([]Sample, 0, 4*len(nics))
	for _, n := range nics {
		md := map[string]string{"name": n.Interface.Name, "mac": n.Interface.MAC, "ip": n.Interface.IP}
		if n.Interface.Index != "" {
			md["index"] = n.Interface.Index
		}
		samples = append(samples,
			newSample(h, "network.bandwidth", KindCumulative, UnitBytesPerSec, float64(n.Stats.Bandwidth), now, md),
			newSample(h, "network.incoming.bytes", KindCumulative, UnitBytes, float64(n.Stats.RxBytes), now, md),
			newSample(h, "network.outgoing.bytes", KindCumulative, UnitBytes, float64(n.Stats.TxBytes), now, md),
			newSample(h, "network.outgoing.errors", KindCumulative, UnitPacket, float64(n.Stats.Error), now, md),
		)
	}
	return samples
}
