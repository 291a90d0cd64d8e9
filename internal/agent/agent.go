// Package agent runs the polling loop: every interval it resolves each host,
// runs the enabled pollsters against the inspector Manager, and publishes
// the samples.
package agent

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/hwmeter/internal/host"
	"github.com/HerbHall/hwmeter/internal/inspector"
	"github.com/HerbHall/hwmeter/internal/pollster"
	"github.com/HerbHall/hwmeter/internal/publish"
)

// Config holds the polling configuration.
type Config struct {
	Interval          time.Duration `mapstructure:"interval"`
	Workers           int           `mapstructure:"workers"`
	DisabledPollsters []string      `mapstructure:"disabled"`
}

// DefaultConfig returns the default polling configuration.
func DefaultConfig() Config {
	return Config{
		Interval: 60 * time.Second,
		Workers:  4,
	}
}

// IdentityResolver derives a host's identity. The identity is usable even
// when an error is returned. Forget drops a cached identity so the next
// Resolve derives it again.
type IdentityResolver interface {
	Resolve(ctx context.Context, ip string) (host.Identity, error)
	Forget(ip string)
}

// Deps are the collaborators of an Agent.
type Deps struct {
	Hosts     []host.Spec
	Resolver  IdentityResolver
	Manager   *inspector.Manager
	Pollsters []pollster.Pollster
	Sink      publish.Sink
	Metrics   *Metrics
	// Tracker, when set, has its state for a retired host ID dropped.
	Tracker *pollster.UtilizationTracker
}

// Agent is the polling scheduler.
type Agent struct {
	conf     Config
	deps     Deps
	disabled map[string]bool
	logger   *zap.Logger

	running   atomic.Bool
	wg        sync.WaitGroup
	mu        sync.RWMutex
	lastStart time.Time
	lastTook  time.Duration

	idsMu sync.Mutex
	ids   map[string]string // ip -> last resource ID
}

// New creates an Agent. Zero Interval or Workers take the defaults.
func New(conf Config, deps Deps, logger *zap.Logger) *Agent {
	def := DefaultConfig()
	if conf.Interval <= 0 {
		conf.Interval = def.Interval
	}
	if conf.Workers <= 0 {
		conf.Workers = def.Workers
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	disabled := make(map[string]bool, len(conf.DisabledPollsters))
	for _, n := range conf.DisabledPollsters {
		disabled[n] = true
	}
	deps.Metrics.Hosts.Set(float64(len(deps.Hosts)))
	return &Agent{
		conf:     conf,
		deps:     deps,
		disabled: disabled,
		logger:   logger,
		ids:      make(map[string]string, len(deps.Hosts)),
	}
}

// Run polls once immediately and then every interval until ctx is
// cancelled. A tick that fires while a cycle is still running is skipped.
// Run waits for the in-flight cycle before returning.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent starting",
		zap.Int("hosts", len(a.deps.Hosts)),
		zap.Int("pollsters", len(a.deps.Pollsters)),
		zap.Duration("interval", a.conf.Interval),
		zap.Int("workers", a.conf.Workers),
	)

	ticker := time.NewTicker(a.conf.Interval)
	defer ticker.Stop()
	defer a.wg.Wait()

	a.startCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("agent shutting down")
			return nil
		case <-ticker.C:
			a.startCycle(ctx)
		}
	}
}

func (a *Agent) startCycle(ctx context.Context) {
	if !a.running.CompareAndSwap(false, true) {
		a.deps.Metrics.SkippedTicks.Inc()
		a.logger.Warn("previous poll cycle still running, skipping tick")
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.running.Store(false)
		if err := a.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("poll cycle failed", zap.Error(err))
		}
	}()
}

// RunCycle polls every host once, at most Workers at a time, and returns
// when all are done. It only fails when ctx is cancelled.
func (a *Agent) RunCycle(ctx context.Context) error {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.conf.Workers)
	for _, spec := range a.deps.Hosts {
		g.Go(func() error {
			a.pollHost(gctx, spec)
			return nil
		})
	}
	_ = g.Wait()

	took := time.Since(start)
	a.deps.Metrics.CycleDuration.Observe(took.Seconds())
	a.mu.Lock()
	a.lastStart, a.lastTook = start, took
	a.mu.Unlock()

	a.logger.Debug("poll cycle complete",
		zap.Int("hosts", len(a.deps.Hosts)),
		zap.Duration("took", took),
	)
	return ctx.Err()
}

// LastCycle returns when the last completed cycle started and how long it
// took. The time is zero before the first cycle completes.
func (a *Agent) LastCycle() (time.Time, time.Duration) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastStart, a.lastTook
}

// Hosts returns the configured host addresses.
func (a *Agent) Hosts() []string {
	out := make([]string, 0, len(a.deps.Hosts))
	for _, s := range a.deps.Hosts {
		out = append(out, s.IP)
	}
	return out
}

func (a *Agent) pollHost(ctx context.Context, spec host.Spec) {
	id, err := a.deps.Resolver.Resolve(ctx, spec.IP)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		a.logger.Debug("host identity degraded",
			zap.String("host", spec.IP),
			zap.String("id", id.ID),
			zap.Error(err),
		)
		// An unreachable host keeps its derived ID only until it answers.
		if errors.Is(err, host.ErrUnreachable) {
			a.deps.Resolver.Forget(spec.IP)
		}
	}
	a.trackIdentity(ctx, spec.IP, id.ID)
	h := host.New(spec.IP, spec.Options, id)

	var samples []pollster.Sample
	for _, p := range a.deps.Pollsters {
		if ctx.Err() != nil {
			return
		}
		if a.disabled[p.Name()] || h.PollsterDisabled(p.Name()) {
			continue
		}
		got := p.Collect(ctx, a.deps.Manager, h)
		a.deps.Metrics.Samples.WithLabelValues(p.Name()).Add(float64(len(got)))
		samples = append(samples, got...)
	}
	if len(samples) == 0 {
		return
	}
	if err := a.deps.Sink.Publish(ctx, samples); err != nil {
		a.deps.Metrics.PublishFailures.Inc()
		a.logger.Warn("publishing samples",
			zap.String("host", spec.IP),
			zap.Int("samples", len(samples)),
			zap.Error(err),
		)
	}
}

// trackIdentity records the resource ID of ip. When it differs from the
// previous one, the old ID is retired from the sinks and the utilization
// tracker so its series stop being exported.
func (a *Agent) trackIdentity(ctx context.Context, ip, id string) {
	a.idsMu.Lock()
	prev, seen := a.ids[ip]
	a.ids[ip] = id
	a.idsMu.Unlock()

	if !seen || prev == id {
		return
	}
	a.logger.Info("host identity changed",
		zap.String("host", ip),
		zap.String("old_id", prev),
		zap.String("id", id),
	)
	if a.deps.Tracker != nil {
		a.deps.Tracker.Forget(prev)
	}
	if r, ok := a.deps.Sink.(publish.Retirer); ok {
		if err := r.Retire(ctx, prev); err != nil {
			a.logger.Warn("retiring old host id",
				zap.String("host", ip),
				zap.String("old_id", prev),
				zap.Error(err),
			)
		}
	}
}

// EnabledPollsters lists the pollsters not disabled process-wide.
func (a *Agent) EnabledPollsters() []string {
	var out []string
	for _, p := range a.deps.Pollsters {
		if !a.disabled[p.Name()] {
			out = append(out, p.Name())
		}
	}
	return slices.Clip(out)
}
