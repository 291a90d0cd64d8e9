package pollster

import (
	"sync"
	"time"
)

// UtilizationTracker remembers the previous cumulative CPU reading per host
// so that utilization can be derived from two successive readings. Hosts are
// keyed by ID and locked independently.
type UtilizationTracker struct {
	entries sync.Map // host ID -> *utilizationEntry
}

type utilizationEntry struct {
	mu      sync.Mutex
	seen    bool
	cpuTime uint64
	at      time.Time
}

// NewUtilizationTracker creates an empty tracker.
func NewUtilizationTracker() *UtilizationTracker {
	return &UtilizationTracker{}
}

// Observe records cpuTime (ns, summed over cores) read at now and returns
// the utilization percentage since the previous reading for id. The first
// reading, a non-positive interval, or cores < 1 yield 0.
func (t *UtilizationTracker) Observe(id string, cores int, cpuTime uint64, now time.Time) float64 {
	v, _ := t.entries.LoadOrStore(id, &utilizationEntry{})
	e := v.(*utilizationEntry)

	e.mu.Lock()
	defer e.mu.Unlock()

	prevTime, prevAt, seen := e.cpuTime, e.at, e.seen
	e.cpuTime, e.at, e.seen = cpuTime, now, true

	if !seen || cores < 1 {
		return 0
	}
	elapsed := now.Sub(prevAt)
	if elapsed <= 0 {
		return 0
	}
	used := TimeUsed(prevTime, cpuTime)
	return 100 * (1 / float64(cores)) * float64(used) / float64(elapsed.Nanoseconds())
}

// Forget drops the state for id.
func (t *UtilizationTracker) Forget(id string) {
	t.entries.Delete(id)
}

// TimeUsed is the CPU time consumed between two cumulative readings. A
// reading lower than the previous one means the counter was reset (the
// host rebooted), so the whole current reading counts.
func TimeUsed(prev, cur uint64) uint64 {
	if prev <= cur {
		return cur - prev
	}
	return cur
}
