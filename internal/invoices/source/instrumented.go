package source

import (
	"context"
	"time"
)

// CallObserver records data source calls. *observability.Metrics satisfies it.
type CallObserver interface {
	ObserveSourceCall(backend, op string, start time.Time, err error)
}

// InstrumentedSource reports latency and outcome of every call on next.
type InstrumentedSource struct {
	next     Source
	backend  string
	observer CallObserver
}

// Instrument wraps next. A nil observer disables reporting.
func Instrument(next Source, backend string, observer CallObserver) *InstrumentedSource {
	return &InstrumentedSource{next: next, backend: backend, observer: observer}
}

// List implements Lister.
func (s *InstrumentedSource) List(ctx context.Context, req ListRequest) (Page, error) {
	start := time.Now()
	page, err := s.next.List(ctx, req)
	s.observe("list", start, err)
	return page, err
}

// Approve implements Mutator.
func (s *InstrumentedSource) Approve(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.Approve(ctx, id)
	s.observe("approve", start, err)
	return err
}

// Reject implements Mutator.
func (s *InstrumentedSource) Reject(ctx context.Context, id, reason string) error {
	start := time.Now()
	err := s.next.Reject(ctx, id, reason)
	s.observe("reject", start, err)
	return err
}

// Delete implements Mutator.
func (s *InstrumentedSource) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.Delete(ctx, id)
	s.observe("delete", start, err)
	return err
}

func (s *InstrumentedSource) observe(op string, start time.Time, err error) {
	if s.observer != nil {
		s.observer.ObserveSourceCall(s.backend, op, start, err)
	}
}
