package testutil

import (
	"sync"
	"time"

	"github.com/HerbHall/hwmeter/internal/pollster"
)

// Epoch is where every test clock starts.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

var _ pollster.Clock = (*Clock)(nil)

// Clock is a manual pollster.Clock. With a non-zero step, every Now call
// moves time forward by step after reading it, so consecutive poll cycles
// see evenly spaced timestamps without explicit Advance calls.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewClock returns a Clock standing at Epoch.
func NewClock() *Clock {
	return &Clock{now: Epoch}
}

// NewSteppingClock returns a Clock at Epoch that advances by step on every read.
func NewSteppingClock(step time.Duration) *Clock {
	return &Clock{now: Epoch, step: step}
}

// Now returns the current time, then applies the step.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Elapsed reports how far the clock has moved since Epoch.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(Epoch)
}
