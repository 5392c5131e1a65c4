package shadow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Handler processes one envelope.
type Handler interface {
	Process(ctx context.Context, env Envelope) error
}

// Pool runs a fixed number of workers over a transport's deliveries. Each
// delivery is processed in isolation: an error or panic is logged and
// counted, the delivery is acknowledged, and the worker moves on.
// Completion order across workers is not preserved.
type Pool struct {
	transport Transport
	handler   Handler
	workers   int
	logger    *slog.Logger
	metrics   *Metrics
	stats     *Stats
}

type PoolOption func(*Pool)

func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

func WithPoolMetrics(m *Metrics) PoolOption {
	return func(p *Pool) {
		p.metrics = m
	}
}

func WithPoolStats(s *Stats) PoolOption {
	return func(p *Pool) {
		p.stats = s
	}
}

func NewPool(transport Transport, handler Handler, workers int, opts ...PoolOption) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{
		transport: transport,
		handler:   handler,
		workers:   workers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run blocks until the transport's delivery channel closes. Deliveries
// already received are evaluated to completion even after ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	deliveries, err := p.transport.Receive(ctx)
	if err != nil {
		return fmt.Errorf("receive shadow deliveries: %w", err)
	}

	p.logger.InfoContext(ctx, "shadow workers started", "workers", p.workers)
	var wg sync.WaitGroup
	for range p.workers {
		wg.Go(func() {
			for d := range deliveries {
				p.handle(ctx, d)
			}
		})
	}
	wg.Wait()
	p.logger.InfoContext(ctx, "shadow workers stopped")
	return nil
}

func (p *Pool) handle(ctx context.Context, d Delivery) {
	defer d.Ack()
	defer func() {
		if r := recover(); r != nil {
			p.fail(ctx, d, fmt.Errorf("panic: %v", r), "stack", string(debug.Stack()))
		}
	}()

	if err := p.handler.Process(context.WithoutCancel(ctx), d.Envelope); err != nil {
		p.fail(ctx, d, err)
	}
}

func (p *Pool) fail(ctx context.Context, d Delivery, err error, attrs ...any) {
	p.metrics.incrementEvaluationFailure()
	p.stats.recordFailure()
	args := append([]any{
		"transaction_id", d.Envelope.Transaction.TransactionID,
		"error", err,
	}, attrs...)
	p.logger.ErrorContext(ctx, "shadow evaluation failed", args...)
}
