package testutil

import (
	"context"
	"sync"

	"github.com/HerbHall/hwmeter/internal/pollster"
	"github.com/HerbHall/hwmeter/internal/publish"
)

// Compile-time interface checks.
var (
	_ publish.Sink    = (*MockSink)(nil)
	_ publish.Retirer = (*MockSink)(nil)
)

// MockSink is a thread-safe sink that records every published sample.
type MockSink struct {
	mu      sync.Mutex
	samples []pollster.Sample
	batches int
	retired []string
	closed  bool
}

// NewMockSink returns a new MockSink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Name returns "mock".
func (s *MockSink) Name() string { return "mock" }

// Publish records samples.
func (s *MockSink) Publish(_ context.Context, samples []pollster.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, samples...)
	s.batches++
	return nil
}

// Retire records resourceID.
func (s *MockSink) Retire(_ context.Context, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retired = append(s.retired, resourceID)
	return nil
}

// Retired returns the resource IDs passed to Retire, in order.
func (s *MockSink) Retired() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.retired...)
}

// Close marks the sink closed.
func (s *MockSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Samples returns a copy of all recorded samples.
func (s *MockSink) Samples() []pollster.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pollster.Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Batches returns how many Publish calls were made.
func (s *MockSink) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

// Closed reports whether Close was called.
func (s *MockSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Reset clears all recorded samples.
func (s *MockSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = nil
	s.batches = 0
	s.retired = nil
}
