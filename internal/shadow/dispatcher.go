package shadow

import (
	"context"
	"errors"
	"time"

	"sherlock/internal/decision/ports"
)

// Dispatcher is the production side of the shadow path. Dispatch never
// blocks and never retries; a transaction the transport refuses is counted
// and dropped.
type Dispatcher struct {
	transport Transport
	metrics   *Metrics
	now       func() time.Time
}

type DispatcherOption func(*Dispatcher)

func WithDispatcherMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// NewDispatcher returns a dispatcher over transport. A nil transport gives a
// disabled dispatcher whose Dispatch is a no-op.
func NewDispatcher(transport Transport, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{transport: transport, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Enabled() bool {
	return d != nil && d.transport != nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg ports.TransactionMessage) error {
	if !d.Enabled() {
		return nil
	}
	err := d.transport.Send(ctx, Envelope{Transaction: msg, DispatchedAt: d.now()})
	switch {
	case err == nil:
		d.metrics.incrementDispatched()
	case errors.Is(err, ErrQueueFull):
		d.metrics.incrementDispatchFailure("queue_full")
	case errors.Is(err, ErrClosed):
		d.metrics.incrementDispatchFailure("closed")
	default:
		d.metrics.incrementDispatchFailure("error")
	}
	return err
}
