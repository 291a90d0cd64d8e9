// Package publish delivers samples to their destinations: the log, the
// latest-value store, the Prometheus registry and an MQTT broker.
package publish

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/HerbHall/hwmeter/internal/pollster"
)

// Sink receives every sample batch produced for a host.
type Sink interface {
	Name() string
	Publish(ctx context.Context, samples []pollster.Sample) error
	Close() error
}

// Retirer is implemented by sinks that keep per-resource state. Retire drops
// everything held for a resource ID that is no longer in use.
type Retirer interface {
	Retire(ctx context.Context, resourceID string) error
}

// Fanout publishes to several sinks. A failing sink does not stop the
// others.
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

// Compile-time interface guards.
var (
	_ Sink    = (*Fanout)(nil)
	_ Retirer = (*Fanout)(nil)
)

// NewFanout creates a fan-out over sinks.
func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, logger: logger}
}

func (f *Fanout) Name() string { return "fanout" }

// Publish hands samples to every sink and joins their errors.
func (f *Fanout) Publish(ctx context.Context, samples []pollster.Sample) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, samples); err != nil {
			f.logger.Warn("sink publish failed",
				zap.String("sink", s.Name()),
				zap.Int("samples", len(samples)),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Retire forwards to every sink that implements Retirer.
func (f *Fanout) Retire(ctx context.Context, resourceID string) error {
	var errs []error
	for _, s := range f.sinks {
		r, ok := s.(Retirer)
		if !ok {
			continue
		}
		if err := r.Retire(ctx, resourceID); err != nil {
			errs = append(errs, fmt.Errorf("retire in sink %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink, in reverse order.
func (f *Fanout) Close() error {
	var errs []error
	for i := len(f.sinks) - 1; i >= 0; i-- {
		if err := f.sinks[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink %s: %w", f.sinks[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LogSink writes one debug record per sample.
type LogSink struct {
	logger *zap.Logger
}

var _ Sink = (*LogSink)(nil)

// NewLogSink creates a log sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(_ context.Context, samples []pollster.Sample) error {
	for _, smp := range samples {
		s.logger.Debug("sample",
			zap.String("name", smp.Name),
			zap.String("kind", string(smp.Kind)),
			zap.String("unit", smp.Unit),
			zap.Float64("volume", smp.Volume),
			zap.String("resource_id", smp.ResourceID),
			zap.String("instance", smp.Instance()),
			zap.Time("timestamp", smp.Timestamp),
		)
	}
	return nil
}

func (s *LogSink) Close() error { return nil }

// LatestStore keeps the most recent value of each series.
type LatestStore interface {
	SaveLatest(ctx context.Context, samples []pollster.Sample) error
	DeleteResource(ctx context.Context, resourceID string) (int64, error)
}

// StoreSink writes samples to a LatestStore.
type StoreSink struct {
	store LatestStore
}

var (
	_ Sink    = (*StoreSink)(nil)
	_ Retirer = (*StoreSink)(nil)
)

// NewStoreSink creates a store sink.
func NewStoreSink(store LatestStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Publish(ctx context.Context, samples []pollster.Sample) error {
	return s.store.SaveLatest(ctx, samples)
}

// Retire deletes the stored series of resourceID.
func (s *StoreSink) Retire(ctx context.Context, resourceID string) error {
	_, err := s.store.DeleteResource(ctx, resourceID)
	return err
}

// Close is a no-op; the store's owner closes it.
func (s *StoreSink) Close() error { return nil }
