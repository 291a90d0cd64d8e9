package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/HerbHall/hwmeter/internal/host"
	"github.com/HerbHall/hwmeter/internal/inspector"
	"github.com/HerbHall/hwmeter/internal/pollster"
	"github.com/HerbHall/hwmeter/internal/publish"
	"github.com/HerbHall/hwmeter/internal/testutil"
)

// mockResolver returns a derived identity, or mac once set, and an
// optional error.
type mockResolver struct {
	mu      sync.Mutex
	err     error
	mac     string
	calls   atomic.Int32
	forgets atomic.Int32
}

func (m *mockResolver) Resolve(_ context.Context, ip string) (host.Identity, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mac != "" {
		return host.Identity{ID: m.mac, Name: "h-" + ip}, m.err
	}
	return host.Identity{ID: host.DeriveID(ip), Name: "h-" + ip}, m.err
}

func (m *mockResolver) Forget(string) { m.forgets.Add(1) }

func (m *mockResolver) answer(mac string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mac, m.err = mac, nil
}

// mockPollster emits one sample per call and tracks concurrency.
type mockPollster struct {
	name    string
	delay   time.Duration
	calls   atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32
	mu      sync.Mutex
	hosts   []string
}

func (p *mockPollster) Name() string    { return p.name }
func (p *mockPollster) Names() []string { return []string{p.name} }

func (p *mockPollster) Collect(ctx context.Context, _ *inspector.Manager, h *host.Host) []pollster.Sample {
	p.calls.Add(1)
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		m := p.maxSeen.Load()
		if n <= m || p.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	p.mu.Lock()
	p.hosts = append(p.hosts, h.IPAddress())
	p.mu.Unlock()
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil
		}
	}
	return []pollster.Sample{{Name: p.name, ResourceID: h.ID, ResourceMetadata: h.Metadata()}}
}

func specs(ips ...string) []host.Spec {
	out := make([]host.Spec, len(ips))
	for i, ip := range ips {
		out[i] = host.Spec{IP: ip}
	}
	return out
}

func newTestAgent(conf Config, deps Deps) *Agent {
	if deps.Resolver == nil {
		deps.Resolver = &mockResolver{}
	}
	if deps.Manager == nil {
		deps.Manager = inspector.NewManager(nil, zap.NewNop())
	}
	return New(conf, deps, zap.NewNop())
}

func TestRunCycle_PollsEveryHost(t *testing.T) {
	sink := testutil.NewMockSink()
	p := &mockPollster{name: "memory"}
	a := newTestAgent(Config{}, Deps{
		Hosts:     specs("10.0.0.1", "10.0.0.2", "10.0.0.3"),
		Pollsters: []pollster.Pollster{p},
		Sink:      sink,
	})

	if err := a.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if got := p.calls.Load(); got != 3 {
		t.Errorf("Collect calls = %d, want 3", got)
	}
	if got := sink.Batches(); got != 3 {
		t.Errorf("sink batches = %d, want 3", got)
	}
	for _, s := range sink.Samples() {
		if s.ResourceID != host.DeriveID(s.ResourceMetadata["ip_address"]) {
			t.Errorf("sample %+v has wrong resource id", s)
		}
	}
	if start, _ := a.LastCycle(); start.IsZero() {
		t.Error("LastCycle not recorded")
	}
}

func TestRunCycle_DisabledPollsters(t *testing.T) {
	sink := testutil.NewMockSink()
	cpu := &mockPollster{name: "cpu"}
	disk := &mockPollster{name: "disk"}
	mem := &mockPollster{name: "memory"}

	a := newTestAgent(Config{DisabledPollsters: []string{"disk"}}, Deps{
		Hosts: []host.Spec{
			{IP: "10.0.0.1"},
			{IP: "10.0.0.2", Options: host.Options{DisabledPollsters: []string{"memory"}}},
		},
		Pollsters: []pollster.Pollster{cpu, disk, mem},
		Sink:      sink,
	})

	if err := a.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if got := cpu.calls.Load(); got != 2 {
		t.Errorf("cpu calls = %d, want 2", got)
	}
	if got := disk.calls.Load(); got != 0 {
		t.Errorf("disk calls = %d, want 0 (disabled globally)", got)
	}
	if got := mem.calls.Load(); got != 1 {
		t.Errorf("memory calls = %d, want 1 (disabled on 10.0.0.2)", got)
	}
	if got := a.EnabledPollsters(); len(got) != 2 || got[0] != "cpu" || got[1] != "memory" {
		t.Errorf("EnabledPollsters = %v, want [cpu memory]", got)
	}
}

func TestRunCycle_WorkerLimit(t *testing.T) {
	p := &mockPollster{name: "cpu", delay: 20 * time.Millisecond}
	a := newTestAgent(Config{Workers: 2}, Deps{
		Hosts:     specs("10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5"),
		Pollsters: []pollster.Pollster{p},
		Sink:      testutil.NewMockSink(),
	})

	if err := a.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if got := p.maxSeen.Load(); got > 2 {
		t.Errorf("max concurrent hosts = %d, want <= 2", got)
	}
	if got := p.calls.Load(); got != 5 {
		t.Errorf("calls = %d, want 5", got)
	}
}

func TestRunCycle_ResolverErrorStillPolls(t *testing.T) {
	sink := testutil.NewMockSink()
	a := newTestAgent(Config{}, Deps{
		Hosts:     specs("10.0.0.1"),
		Resolver:  &mockResolver{err: host.ErrUnreachable},
		Pollsters: []pollster.Pollster{&mockPollster{name: "cpu"}},
		Sink:      sink,
	})
	_ = a.RunCycle(context.Background())
	if got := len(sink.Samples()); got != 1 {
		t.Errorf("samples = %d, want 1", got)
	}
	if got := a.deps.Resolver.(*mockResolver).forgets.Load(); got != 1 {
		t.Errorf("forgets = %d, want 1 so the next cycle re-resolves", got)
	}
}

func TestRunCycle_IdentityChangeRetiresOldID(t *testing.T) {
	sink := testutil.NewMockSink()
	resolver := &mockResolver{err: host.ErrUnreachable}
	tracker := pollster.NewUtilizationTracker()
	a := newTestAgent(Config{}, Deps{
		Hosts:     specs("10.0.0.1"),
		Resolver:  resolver,
		Pollsters: []pollster.Pollster{&mockPollster{name: "cpu"}},
		Sink:      sink,
		Tracker:   tracker,
	})
	derived := host.DeriveID("10.0.0.1")
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker.Observe(derived, 1, 1_000_000_000, start)

	_ = a.RunCycle(context.Background())
	if got := sink.Retired(); len(got) != 0 {
		t.Fatalf("retired after first cycle = %v, want none", got)
	}

	resolver.answer("0242ac110002")
	_ = a.RunCycle(context.Background())
	if got := sink.Retired(); len(got) != 1 || got[0] != derived {
		t.Errorf("retired = %v, want [%s]", got, derived)
	}
	// The derived ID's state is gone, so the next observation is a first one.
	if got := tracker.Observe(derived, 1, 2_000_000_000, start.Add(time.Second)); got != 0 {
		t.Errorf("utilization after retire = %v, want 0", got)
	}

	samples := sink.Samples()
	if last := samples[len(samples)-1]; last.ResourceID != "0242ac110002" {
		t.Errorf("resource id = %q, want 0242ac110002", last.ResourceID)
	}

	// A stable identity retires nothing further.
	_ = a.RunCycle(context.Background())
	if got := len(sink.Retired()); got != 1 {
		t.Errorf("retired count = %d, want 1", got)
	}
}

func TestRunCycle_IdentityChangeDropsStoredRows(t *testing.T) {
	st := testutil.NewStore(t)
	resolver := &mockResolver{err: host.ErrUnreachable}
	a := newTestAgent(Config{}, Deps{
		Hosts:     specs("10.0.0.1"),
		Resolver:  resolver,
		Pollsters: []pollster.Pollster{&mockPollster{name: "cpu"}},
		Sink:      publish.NewStoreSink(st),
	})
	ctx := context.Background()
	derived := host.DeriveID("10.0.0.1")

	_ = a.RunCycle(ctx)
	if got, err := st.Latest(ctx, derived); err != nil || len(got) != 1 {
		t.Fatalf("Latest(derived) = %d rows, %v; want 1 row", len(got), err)
	}

	resolver.answer("0242ac110002")
	_ = a.RunCycle(ctx)
	if got, err := st.Latest(ctx, derived); err != nil || len(got) != 0 {
		t.Errorf("Latest(derived) after retire = %d rows, %v; want none", len(got), err)
	}
	if got, err := st.Latest(ctx, "0242ac110002"); err != nil || len(got) != 1 {
		t.Errorf("Latest(0242ac110002) = %d rows, %v; want 1 row", len(got), err)
	}
}

func TestRunCycle_NoSamplesNoPublish(t *testing.T) {
	sink := testutil.NewMockSink()
	a := newTestAgent(Config{}, Deps{
		Hosts:     []host.Spec{{IP: "10.0.0.1", Options: host.Options{DisabledPollsters: []string{"cpu"}}}},
		Pollsters: []pollster.Pollster{&mockPollster{name: "cpu"}},
		Sink:      sink,
	})
	_ = a.RunCycle(context.Background())
	if sink.Batches() != 0 {
		t.Errorf("batches = %d, want 0", sink.Batches())
	}
}

func TestRunCycle_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &mockPollster{name: "cpu"}
	a := newTestAgent(Config{}, Deps{
		Hosts:     specs("10.0.0.1", "10.0.0.2"),
		Pollsters: []pollster.Pollster{p},
		Sink:      testutil.NewMockSink(),
	})
	err := a.RunCycle(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunCycle error = %v, want context.Canceled", err)
	}
	if got := p.calls.Load(); got != 0 {
		t.Errorf("calls = %d, want 0", got)
	}
}

type failingSink struct{ *testutil.MockSink }

func (failingSink) Publish(context.Context, []pollster.Sample) error {
	return errors.New("broker down")
}

func TestRunCycle_PublishFailureCounted(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	a := newTestAgent(Config{}, Deps{
		Hosts:     specs("10.0.0.1"),
		Pollsters: []pollster.Pollster{&mockPollster{name: "cpu"}},
		Sink:      failingSink{testutil.NewMockSink()},
		Metrics:   m,
	})
	_ = a.RunCycle(context.Background())
	if got := promtest.ToFloat64(m.PublishFailures); got != 1 {
		t.Errorf("publish failures = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.Samples.WithLabelValues("cpu")); got != 1 {
		t.Errorf("samples{cpu} = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.Hosts); got != 1 {
		t.Errorf("hosts = %v, want 1", got)
	}
}

func TestStartCycle_SkipsWhileRunning(t *testing.T) {
	m := NewMetrics(nil)
	a := newTestAgent(Config{}, Deps{Sink: testutil.NewMockSink(), Metrics: m})
	a.running.Store(true)

	a.startCycle(context.Background())
	if got := promtest.ToFloat64(m.SkippedTicks); got != 1 {
		t.Errorf("skipped ticks = %v, want 1", got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	sink := testutil.NewMockSink()
	p := &mockPollster{name: "cpu"}
	a := newTestAgent(Config{Interval: 10 * time.Millisecond}, Deps{
		Hosts:     specs("10.0.0.1"),
		Pollsters: []pollster.Pollster{p},
		Sink:      sink,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for p.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("agent did not poll twice")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNew_Defaults(t *testing.T) {
	a := newTestAgent(Config{}, Deps{Sink: testutil.NewMockSink(), Hosts: specs("10.0.0.1")})
	if a.conf.Interval != 60*time.Second {
		t.Errorf("Interval = %v, want 60s", a.conf.Interval)
	}
	if a.conf.Workers != 4 {
		t.Errorf("Workers = %d, want 4", a.conf.Workers)
	}
	if got := a.Hosts(); len(got) != 1 || got[0] != "10.0.0.1" {
		t.Errorf("Hosts = %v, want [10.0.0.1]", got)
	}
}
