package velocity

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	now   time.Time
	store *MemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewMemoryStore(WithClock(func() time.Time { return s.now }))
}

func (s *MemoryStoreSuite) record(user, location, tx string) int {
	act, err := s.store.RecordAndFetch(s.ctx, user, location, time.Minute, tx)
	s.Require().NoError(err)
	return act.Velocity
}

func (s *MemoryStoreSuite) TestCounter() {
	s.Run("nth transaction inside the window sees n", func() {
		for i := 1; i <= 7; i++ {
			s.Equal(i, s.record("u1", "London", ""))
		}
	})

	s.Run("users are counted independently", func() {
		s.Equal(1, s.record("u-other", "London", ""))
	})

	s.Run("first transaction after the window resets to one", func() {
		s.record("u2", "London", "")
		s.record("u2", "London", "")
		s.now = s.now.Add(time.Minute)
		s.Equal(1, s.record("u2", "London", ""))
	})

	s.Run("each write extends the window", func() {
		s.record("u3", "London", "")
		s.now = s.now.Add(50 * time.Second)
		s.Equal(2, s.record("u3", "London", ""))
		s.now = s.now.Add(50 * time.Second)
		s.Equal(3, s.record("u3", "London", ""))
	})
}

func (s *MemoryStoreSuite) TestLocation() {
	s.Run("first transaction has no previous location", func() {
		act, err := s.store.RecordAndFetch(s.ctx, "u1", "New York", time.Minute, "")
		s.Require().NoError(err)
		s.False(act.LocationChanged)
		s.Empty(act.PreviousLocation)
	})

	s.Run("different location is a change", func() {
		act, err := s.store.RecordAndFetch(s.ctx, "u1", "Tokyo", time.Minute, "")
		s.Require().NoError(err)
		s.True(act.LocationChanged)
		s.Equal("New York", act.PreviousLocation)
	})

	s.Run("same location is not a change", func() {
		act, err := s.store.RecordAndFetch(s.ctx, "u1", "Tokyo", time.Minute, "")
		s.Require().NoError(err)
		s.False(act.LocationChanged)
	})

	s.Run("location is forgotten after the window", func() {
		s.now = s.now.Add(2 * time.Minute)
		act, err := s.store.RecordAndFetch(s.ctx, "u1", "Paris", time.Minute, "")
		s.Require().NoError(err)
		s.False(act.LocationChanged)
		s.Equal(1, act.Velocity)
	})
}

func (s *MemoryStoreSuite) TestReplay() {
	s.Equal(1, s.record("u1", "London", "tx-1"))
	s.Equal(2, s.record("u1", "Paris", "tx-2"))

	act, err := s.store.RecordAndFetch(s.ctx, "u1", "Paris", time.Minute, "tx-2")
	s.Require().NoError(err)
	s.True(act.Replay)
	s.Equal(2, act.Velocity)
	s.True(act.LocationChanged)

	s.Run("replay does not increment", func() {
		peek, err := s.store.Peek(s.ctx, "u1")
		s.Require().NoError(err)
		s.Equal(2, peek.Velocity)
	})

	s.Run("empty transaction id never replays", func() {
		act, err := s.store.RecordAndFetch(s.ctx, "u1", "Paris", time.Minute, "")
		s.Require().NoError(err)
		s.False(act.Replay)
		s.Equal(3, act.Velocity)
	})
}

func (s *MemoryStoreSuite) TestPeek() {
	s.Run("unknown user reads zero", func() {
		act, err := s.store.Peek(s.ctx, "nobody")
		s.Require().NoError(err)
		s.Zero(act.Velocity)
	})

	s.Run("peek does not mutate", func() {
		s.record("u1", "London", "")
		for range 3 {
			act, err := s.store.Peek(s.ctx, "u1")
			s.Require().NoError(err)
			s.Equal(1, act.Velocity)
		}
	})

	s.Run("expired entry reads zero", func() {
		s.now = s.now.Add(time.Hour)
		act, err := s.store.Peek(s.ctx, "u1")
		s.Require().NoError(err)
		s.Zero(act.Velocity)
	})
}

func (s *MemoryStoreSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.store.RecordAndFetch(ctx, "u1", "London", time.Minute, "")
	s.ErrorIs(err, context.Canceled)
	s.Zero(s.store.Len())
}

func TestMemoryStore_ConcurrentWritesSeeDistinctCounters(t *testing.T) {
	const k = 200
	store := NewMemoryStore()

	var (
		mu   sync.Mutex
		seen []int
		wg   sync.WaitGroup
	)
	for range k {
		wg.Go(func() {
			act, err := store.RecordAndFetch(context.Background(), "hot-user", "London", time.Minute, "")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			seen = append(seen, act.Velocity)
			mu.Unlock()
		})
	}
	wg.Wait()

	slices.Sort(seen)
	want := make([]int, k)
	for i := range want {
		want[i] = i + 1
	}
	if !slices.Equal(want, seen) {
		t.Fatalf("expected counters 1..%d exactly once, got %v", k, seen)
	}
}
