// Package inspector defines the hardware inspection capabilities, the typed
// statistics they produce, and the Manager that picks an inspector per call.
//
// An inspector implements Inspector plus any subset of the capability
// interfaces below. A capability it does not implement, or for which it
// returns ErrNotImplemented, is skipped by the Manager.
package inspector

import (
	"context"

	"github.com/HerbHall/hwmeter/internal/host"
)

// Metric names used in logs and failure counters.
const (
	MetricCPU     = "cpu"
	MetricCPUTime = "cpu_time"
	MetricMemory  = "memory"
	MetricDisk    = "disk"
	MetricNetwork = "network"
)

// Inspector is the base interface every inspector implements.
type Inspector interface {
	// Name returns the inspector's unique identifier (e.g., "snmp").
	Name() string
}

// CPUInspector is implemented by inspectors that report load averages.
type CPUInspector interface {
	Inspector
	InspectCPU(ctx context.Context, h *host.Host) (CPUStats, error)
}

// CPUTimeInspector is implemented by inspectors that report cumulative CPU time.
type CPUTimeInspector interface {
	Inspector
	InspectCPUTime(ctx context.Context, h *host.Host) (CPUTimes, error)
}

// MemoryInspector is implemented by inspectors that report memory totals.
type MemoryInspector interface {
	Inspector
	InspectMemory(ctx context.Context, h *host.Host) (MemoryStats, error)
}

// DiskInspector is implemented by inspectors that enumerate disks.
type DiskInspector interface {
	Inspector
	InspectDisks(ctx context.Context, h *host.Host) ([]DiskUsage, error)
}

// NetworkInspector is implemented by inspectors that enumerate interfaces.
type NetworkInspector interface {
	Inspector
	InspectNetwork(ctx context.Context, h *host.Host) ([]InterfaceUsage, error)
}

// Configurable is implemented by inspectors that accept inspector-wide
// defaults. SetConfiguration is called once before the first inspection
// and must be safe to call again with the same value.
type Configurable interface {
	SetConfiguration(config map[string]any) error
}

// Capabilities lists the metrics an inspector can serve, in a fixed order.
func Capabilities(i Inspector) []string {
	var caps []string
	if _, ok := i.(CPUInspector); ok {
		caps = append(caps, MetricCPU)
	}
	if _, ok := i.(CPUTimeInspector); ok {
		caps = append(caps, MetricCPUTime)
	}
	if _, ok := i.(MemoryInspector); ok {
		caps = append(caps, MetricMemory)
	}
	if _, ok := i.(DiskInspector); ok {
		caps = append(caps, MetricDisk)
	}
	if _, ok := i.(NetworkInspector); ok {
		caps = append(caps, MetricNetwork)
	}
	return caps
}
