package memory

import (
	"context"
	"sync"

	"sherlock/pkg/platform/audit"
	"sherlock/pkg/platform/sentinel"
)

// InMemoryStore keeps every record in process. The first record appended for a
// transaction ID wins; later duplicates are ignored.
type InMemoryStore struct {
	mu      sync.RWMutex
	byTx    map[string]audit.Record
	byUser  map[string][]string
	ordered []string
}

func NewInMemoryStore() *InMemoryStore {
	s := &InMemoryStore{}
	s.Clear()
	return s
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byTx = make(map[string]audit.Record)
	s.byUser = make(map[string][]string)
	s.ordered = nil
}

func (s *InMemoryStore) Append(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byTx[rec.TransactionID]; ok {
		return nil
	}
	rec.Reasons = append([]string{}, rec.Reasons...)
	s.byTx[rec.TransactionID] = rec
	s.byUser[rec.UserID] = append(s.byUser[rec.UserID], rec.TransactionID)
	s.ordered = append(s.ordered, rec.TransactionID)
	return nil
}

func (s *InMemoryStore) Lookup(_ context.Context, transactionID string) (*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byTx[transactionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	rec.Reasons = append([]string{}, rec.Reasons...)
	return &rec, nil
}

// ListByUser returns a user's records in append order.
func (s *InMemoryStore) ListByUser(_ context.Context, userID string) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Record, 0, len(s.byUser[userID]))
	for _, txID := range s.byUser[userID] {
		out = append(out, s.byTx[txID])
	}
	return out, nil
}

// ListAll returns every record in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Record, 0, len(s.ordered))
	for _, txID := range s.ordered {
		out = append(out, s.byTx[txID])
	}
	return out, nil
}

func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}
