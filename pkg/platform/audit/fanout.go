package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sherlock/pkg/platform/circuit"
)

// NamedStore labels a store for error messages and metrics. A non-nil Breaker
// skips the store while it keeps failing without affecting its siblings.
type NamedStore struct {
	Name    string
	Store   Store
	Breaker *circuit.Breaker
}

// Fanout appends every record to all stores. One store failing does not stop
// the others; the joined error names each failure. Stores skipped by an open
// breaker are not reported as failures.
type Fanout struct {
	stores []NamedStore
	logger *slog.Logger
}

type FanoutOption func(*Fanout)

func WithFanoutLogger(logger *slog.Logger) FanoutOption {
	return func(f *Fanout) {
		f.logger = logger
	}
}

func NewFanout(stores []NamedStore, opts ...FanoutOption) *Fanout {
	f := &Fanout{stores: stores, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fanout) Append(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range f.stores {
		if s.Breaker != nil && !s.Breaker.Allow() {
			continue
		}
		err := s.Store.Append(ctx, rec)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
		f.record(s, err)
	}
	return errors.Join(errs...)
}

func (f *Fanout) record(s NamedStore, err error) {
	if s.Breaker == nil {
		return
	}
	if err != nil {
		if _, change := s.Breaker.RecordFailure(); change.Opened {
			f.logger.Error("audit sink circuit opened", "sink", s.Name)
		}
		return
	}
	if _, change := s.Breaker.RecordSuccess(); change.Closed {
		f.logger.Info("audit sink circuit closed", "sink", s.Name)
	}
}

// Len reports how many stores receive records.
func (f *Fanout) Len() int {
	return len(f.stores)
}
