package velocity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sherlock/internal/decision/ports"
	"sherlock/pkg/platform/circuit"
	"sherlock/pkg/platform/sentinel"
)

const defaultTimeout = 25 * time.Millisecond

// Client bounds every store call with a timeout and short-circuits through a
// breaker once the store keeps failing. Every failure it returns wraps
// sentinel.ErrUnavailable.
type Client struct {
	store   ports.StatePort
	timeout time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type ClientOption func(*Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) ClientOption {
	return func(c *Client) {
		c.breaker = b
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(store ports.StatePort, opts ...ClientOption) *Client {
	c := &Client{
		store:   store,
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) RecordAndFetch(ctx context.Context, userID, location string, window time.Duration, transactionID string) (ports.Activity, error) {
	return c.call(ctx, "record", func(ctx context.Context) (ports.Activity, error) {
		return c.store.RecordAndFetch(ctx, userID, location, window, transactionID)
	})
}

func (c *Client) Peek(ctx context.Context, userID string) (ports.Activity, error) {
	return c.call(ctx, "peek", func(ctx context.Context) (ports.Activity, error) {
		return c.store.Peek(ctx, userID)
	})
}

func (c *Client) call(ctx context.Context, op string, fn func(context.Context) (ports.Activity, error)) (ports.Activity, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return ports.Activity{}, fmt.Errorf("velocity %s: %w: %w", op, sentinel.ErrUnavailable, sentinel.ErrCircuitOpen)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	act, err := fn(ctx)
	if err != nil {
		c.recordFailure(ctx, op, err)
		return ports.Activity{}, fmt.Errorf("velocity %s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	if c.breaker != nil {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "velocity store recovered", "breaker", c.breaker.Name())
		}
	}
	return act, nil
}

func (c *Client) recordFailure(ctx context.Context, op string, err error) {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "velocity store circuit opened",
			"breaker", c.breaker.Name(),
			"op", op,
			"error", err,
		)
	}
}
