// Package velocity holds the per-user activity stores behind the decision
// path: an in-memory store for single-process deployments and tests, a Redis
// store for shared state, and the Client that bounds and guards every call.
package velocity

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"sherlock/internal/decision/ports"
)

const (
	shardCount = 256
	sweepEvery = 1024
)

type entry struct {
	count        int
	location     string
	prevLocation string
	expiry       time.Time
	lastTx       string
}

func (e *entry) activity() ports.Activity {
	return ports.Activity{
		Velocity:         e.count,
		LocationChanged:  e.prevLocation != "" && e.prevLocation != e.location,
		PreviousLocation: e.prevLocation,
	}
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
	writes  int
}

// MemoryStore keeps user windows in a fixed set of mutex-guarded shards, so
// updates for one user are atomic while different users rarely contend.
// Expired entries are treated as absent and purged lazily.
type MemoryStore struct {
	shards [shardCount]shard
	now    func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]*entry)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) RecordAndFetch(ctx context.Context, userID, location string, window time.Duration, transactionID string) (ports.Activity, error) {
	if err := ctx.Err(); err != nil {
		return ports.Activity{}, err
	}
	now := s.now()

	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e := sh.live(userID, now)
	if e != nil && transactionID != "" && e.lastTx == transactionID {
		act := e.activity()
		act.Replay = true
		return act, nil
	}

	next := &entry{count: 1, location: location, expiry: now.Add(window), lastTx: transactionID}
	if e != nil {
		next.count = e.count + 1
		next.prevLocation = e.location
	}
	sh.entries[userID] = next

	sh.writes++
	if sh.writes%sweepEvery == 0 {
		sh.sweep(now)
	}
	return next.activity(), nil
}

func (s *MemoryStore) Peek(ctx context.Context, userID string) (ports.Activity, error) {
	if err := ctx.Err(); err != nil {
		return ports.Activity{}, err
	}
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e := sh.live(userID, s.now())
	if e == nil {
		return ports.Activity{}, nil
	}
	return e.activity(), nil
}

// Len reports how many entries are held, expired ones included.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.shards {
		s.shards[i].mu.Lock()
		n += len(s.shards[i].entries)
		s.shards[i].mu.Unlock()
	}
	return n
}

func (s *MemoryStore) shard(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%shardCount]
}

// live returns the user's entry if its window has not passed.
// Must be called while holding sh.mu.
func (sh *shard) live(userID string, now time.Time) *entry {
	e := sh.entries[userID]
	if e == nil {
		return nil
	}
	if !now.Before(e.expiry) {
		delete(sh.entries, userID)
		return nil
	}
	return e
}

func (sh *shard) sweep(now time.Time) {
	for k, e := range sh.entries {
		if !now.Before(e.expiry) {
			delete(sh.entries, k)
		}
	}
}
