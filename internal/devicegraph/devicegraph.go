// Package devicegraph tracks which users have transacted from each device so
// the decision path can flag devices shared across too many accounts.
package devicegraph

import (
	"context"
	"sync"
	"time"
)

const DefaultTTL = 30 * 24 * time.Hour

type device struct {
	users  map[string]struct{}
	expiry time.Time
}

// MemoryGraph keeps device sets in process. A device's set expires TTL after
// its last link.
type MemoryGraph struct {
	mu      sync.Mutex
	devices map[string]*device
	ttl     time.Duration
	now     func() time.Time
}

type MemoryOption func(*MemoryGraph)

func WithTTL(ttl time.Duration) MemoryOption {
	return func(g *MemoryGraph) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) MemoryOption {
	return func(g *MemoryGraph) {
		g.now = now
	}
}

func NewMemoryGraph(opts ...MemoryOption) *MemoryGraph {
	g := &MemoryGraph{
		devices: make(map[string]*device),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Link records userID against deviceID and returns how many distinct users
// the device has seen.
func (g *MemoryGraph) Link(ctx context.Context, deviceID, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.devices[deviceID]
	if d == nil || !now.Before(d.expiry) {
		d = &device{users: make(map[string]struct{})}
		g.devices[deviceID] = d
	}
	d.users[userID] = struct{}{}
	d.expiry = now.Add(g.ttl)
	return len(d.users), nil
}

// Count returns how many distinct users the device has seen, without linking.
func (g *MemoryGraph) Count(ctx context.Context, deviceID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.devices[deviceID]
	if d == nil || !g.now().Before(d.expiry) {
		return 0, nil
	}
	return len(d.users), nil
}
