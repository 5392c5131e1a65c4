// Package shadow re-evaluates every production transaction with the
// challenger model, off the request path, and reports where the two models
// disagree. Data flows one way: nothing here feeds back into production
// state or production decisions.
package shadow

import (
	"context"
	"errors"
	"time"

	"sherlock/internal/decision/ports"
)

var (
	// ErrQueueFull is returned by Send when the transport cannot accept more
	// work without blocking.
	ErrQueueFull = errors.New("shadow queue full")
	ErrClosed    = errors.New("shadow transport closed")
)

// Envelope is what travels to the shadow workers: the raw transaction and
// when it was dispatched. It never carries the production verdict.
type Envelope struct {
	Transaction  ports.TransactionMessage `json:"transaction"`
	DispatchedAt time.Time                `json:"dispatched_at"`
}

// Delivery is one received envelope. Ack must be called once processing has
// finished, successfully or not; unacknowledged deliveries may be redelivered.
type Delivery struct {
	Envelope Envelope
	ack      func()
}

func (d Delivery) Ack() {
	if d.ack != nil {
		d.ack()
	}
}

// Transport is an at-least-once asynchronous channel. Send must not block.
type Transport interface {
	Send(ctx context.Context, env Envelope) error
	// Receive returns a channel of deliveries that is closed when ctx ends or
	// the transport is closed.
	Receive(ctx context.Context) (<-chan Delivery, error)
	Close() error
}
