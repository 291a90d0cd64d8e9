// Package pollster turns inspector statistics into metering samples.
//
// Each pollster asks the inspector Manager for one kind of statistic and
// emits zero or more samples. A pollster never fails a cycle: when the
// Manager has no data it logs and returns nil.
package pollster

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/hwmeter/internal/host"
	"github.com/HerbHall/hwmeter/internal/inspector"
)

// Pollster names.
const (
	NameCPU     = "cpu"
	NameCPUUtil = "cpu_util"
	NameMemory  = "memory"
	NameDisk    = "disk"
	NameNetwork = "network"
)

// Pollster collects samples for one host.
type Pollster interface {
	// Name is the key used in disabled_pollsters lists.
	Name() string
	// Names lists every sample name Collect can emit.
	Names() []string
	Collect(ctx context.Context, m *inspector.Manager, h *host.Host) []Sample
}

// Clock is the time source for sample timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// base carries what every pollster shares.
type base struct {
	logger *zap.Logger
	clock  Clock
}

func newBase(logger *zap.Logger, clock Clock) base {
	if clock == nil {
		clock = SystemClock()
	}
	return base{logger: logger, clock: clock}
}

func (b base) noData(h *host.Host, metric string) {
	b.logger.Info("no inspector returned data",
		zap.String("host", h.IPAddress()),
		zap.String("metric", metric),
	)
}

// Defaults returns every built-in pollster in their standard order.
func Defaults(tracker *UtilizationTracker, logger *zap.Logger, clock Clock) []Pollster {
	return []Pollster{
		NewCPU(logger.Named(NameCPU), clock),
		NewCPUUtil(tracker, logger.Named(NameCPUUtil), clock),
		NewMemory(logger.Named(NameMemory), clock),
		NewDisk(logger.Named(NameDisk), clock),
		NewNetwork(logger.Named(NameNetwork), clock),
	}
}

// Select keeps the pollsters whose names are listed, in the order of all.
// Empty names selects every pollster; an unknown name is an error.
func Select(all []Pollster, names []string) ([]Pollster, error) {
	if len(names) == 0 {
		return slices.Clone(all), nil
	}
	known := make(map[string]bool, len(all))
	for _, p := range all {
		known[p.Name()] = true
	}
	for _, n := range names {
		if !known[n] {
			return nil, fmt.Errorf("unknown pollster %q", n)
		}
	}
	var out []Pollster
	for _, p := range all {
		if slices.Contains(names, p.Name()) {
			out = append(out, p)
		}
	}
	return out, nil
}
