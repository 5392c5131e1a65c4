// Package publisher provides the non-blocking audit emitter used on the
// decision path.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "sherlock/pkg/platform/audit"
	"sherlock/pkg/platform/audit/worker"
	"sherlock/pkg/platform/circuit"
)

var (
	ErrBufferFull = errors.New("audit buffer full")
	ErrClosed     = errors.New("audit publisher closed")
)

// Publisher enqueues records for a single background worker, which preserves
// emit order for this publisher instance. Without an async buffer it appends
// inline, which tests rely on.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	breaker *circuit.Breaker
	now     func() time.Time

	bufferSize int
	buffer     chan audit.Record
	worker     *worker.Worker
	done       chan struct{}

	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous mode with a bounded buffer.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.bufferSize = size
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithBreaker guards the store with a circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	var observer worker.Observer
	if p.metrics != nil {
		observer = p.metrics
	}
	if p.bufferSize > 0 {
		p.buffer = make(chan audit.Record, p.bufferSize)
		p.done = make(chan struct{})
	}
	p.worker = worker.NewWorker(store, p.buffer, p.breaker, p.logger, observer)
	if p.buffer != nil {
		go func() {
			defer close(p.done)
			p.worker.Run()
		}()
	}
	return p
}

// Emit hands rec to the worker without blocking. A full buffer drops the
// record and returns ErrBufferFull.
func (p *Publisher) Emit(ctx context.Context, rec audit.Record) error {
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = p.now()
	}

	if p.buffer == nil {
		p.worker.Process(rec)
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.buffer <- rec:
		p.metrics.enqueued()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.metrics.dropped()
		return ErrBufferFull
	}
}

// Close stops accepting records and waits for the buffer to drain.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.buffer != nil {
		close(p.buffer)
	}
	p.mu.Unlock()

	if p.done != nil {
		<-p.done
	}
}

// Pending reports how many records wait in the buffer.
func (p *Publisher) Pending() int {
	return len(p.buffer)
}
