package shadow

import (
	"context"
	"sync"
)

// ChannelTransport is an in-process bounded queue. Deliveries are lost on
// restart, which the shadow path tolerates.
type ChannelTransport struct {
	queue chan Delivery

	mu     sync.RWMutex
	closed bool
}

func NewChannelTransport(size int) *ChannelTransport {
	if size <= 0 {
		size = 1
	}
	return &ChannelTransport{queue: make(chan Delivery, size)}
}

func (t *ChannelTransport) Send(ctx context.Context, env Envelope) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrClosed
	}

	select {
	case t.queue <- Delivery{Envelope: env}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Receive returns the shared queue. Every caller competes for the same
// deliveries. The channel closes once Close is called and the queue drains.
func (t *ChannelTransport) Receive(ctx context.Context) (<-chan Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.queue, nil
}

// Len reports queued deliveries.
func (t *ChannelTransport) Len() int {
	return len(t.queue)
}

func (t *ChannelTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.queue)
	}
	return nil
}
