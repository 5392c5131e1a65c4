package worker

import (
	"context"
	"log/slog"
	"time"

	audit "sherlock/pkg/platform/audit"
	"sherlock/pkg/platform/circuit"
)

const appendTimeout = 5 * time.Second

// Observer receives the outcome of each append attempt.
type Observer interface {
	Persisted()
	PersistFailed()
	CircuitSkipped()
	CircuitState(open bool)
}

// Worker drains an inbox of records into a store until the inbox is closed.
// A breaker skips the store while it keeps failing; skipped and failed records
// are dropped, never retried here.
type Worker struct {
	store    audit.Store
	inbox    <-chan audit.Record
	breaker  *circuit.Breaker
	logger   *slog.Logger
	observer Observer
}

func NewWorker(store audit.Store, inbox <-chan audit.Record, breaker *circuit.Breaker, logger *slog.Logger, observer Observer) *Worker {
	return &Worker{store: store, inbox: inbox, breaker: breaker, logger: logger, observer: observer}
}

// Run returns once the inbox is closed and empty.
func (w *Worker) Run() {
	for rec := range w.inbox {
		w.Process(rec)
	}
}

// Process appends a single record.
func (w *Worker) Process(rec audit.Record) {
	if w.breaker != nil && !w.breaker.Allow() {
		if w.observer != nil {
			w.observer.CircuitSkipped()
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	err := w.store.Append(ctx, rec)
	cancel()

	if err != nil {
		w.logger.Warn("audit append failed, record dropped",
			"transaction_id", rec.TransactionID,
			"error", err,
		)
		if w.observer != nil {
			w.observer.PersistFailed()
		}
		if w.breaker != nil {
			if _, change := w.breaker.RecordFailure(); change.Opened {
				w.logger.Error("audit sink circuit opened", "breaker", w.breaker.Name())
				if w.observer != nil {
					w.observer.CircuitState(true)
				}
			}
		}
		return
	}

	if w.observer != nil {
		w.observer.Persisted()
	}
	if w.breaker != nil {
		if _, change := w.breaker.RecordSuccess(); change.Closed {
			w.logger.Info("audit sink circuit closed", "breaker", w.breaker.Name())
			if w.observer != nil {
				w.observer.CircuitState(false)
			}
		}
	}
}
