package store

import (
	"context"
	"errors"

	"github.com/authbridge/authbridge/pkg/observability"
)

// instrumented decorates a Store with operation and failure counters. Only
// backend failures count as errors; ErrNotFound and ErrInvalidArgument are
// part of the contract, not failures.
type instrumented[T Entity] struct {
	inner   Store[T]
	metrics *observability.Metrics
	backend string
	entity  string
}

// Instrument wraps the store with the shared Prometheus counters. A nil
// metrics collector returns the store unchanged.
func Instrument[T Entity](inner Store[T], metrics *observability.Metrics, backend, entity string) Store[T] {
	if metrics == nil {
		return inner
	}
	return &instrumented[T]{inner: inner, metrics: metrics, backend: backend, entity: entity}
}

func (s *instrumented[T]) Put(ctx context.Context, id string, entity T) error {
	return s.record("put", s.inner.Put(ctx, id, entity))
}

func (s *instrumented[T]) Get(ctx context.Context, id string) (T, error) {
	entity, err := s.inner.Get(ctx, id)
	return entity, s.record("get", err)
}

func (s *instrumented[T]) Delete(ctx context.Context, id string) error {
	return s.record("delete", s.inner.Delete(ctx, id))
}

func (s *instrumented[T]) record(operation string, err error) error {
	s.metrics.StoreOperationsTotal.WithLabelValues(s.backend, s.entity, operation).Inc()
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidArgument) {
		s.metrics.StoreErrorsTotal.WithLabelValues(s.backend, s.entity, operation).Inc()
	}
	return err
}
