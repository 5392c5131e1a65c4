package velocity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sherlock/internal/decision/ports"
	"sherlock/pkg/platform/circuit"
	"sherlock/pkg/platform/sentinel"
)

type stubStore struct {
	calls int
	err   error
	hang  bool
}

func (s *stubStore) RecordAndFetch(ctx context.Context, _, _ string, _ time.Duration, _ string) (ports.Activity, error) {
	return s.do(ctx)
}

func (s *stubStore) Peek(ctx context.Context, _ string) (ports.Activity, error) {
	return s.do(ctx)
}

func (s *stubStore) do(ctx context.Context) (ports.Activity, error) {
	s.calls++
	if s.hang {
		<-ctx.Done()
		return ports.Activity{}, ctx.Err()
	}
	if s.err != nil {
		return ports.Activity{}, s.err
	}
	return ports.Activity{Velocity: 4}, nil
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("passes results through", func(t *testing.T) {
		c := NewClient(&stubStore{})
		act, err := c.RecordAndFetch(ctx, "u1", "London", time.Minute, "tx-1")
		require.NoError(t, err)
		assert.Equal(t, 4, act.Velocity)
	})

	t.Run("store errors are reported as unavailable", func(t *testing.T) {
		cause := errors.New("connection refused")
		c := NewClient(&stubStore{err: cause})
		_, err := c.Peek(ctx, "u1")
		require.ErrorIs(t, err, sentinel.ErrUnavailable)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("hung store is cut off by the timeout", func(t *testing.T) {
		c := NewClient(&stubStore{hang: true}, WithTimeout(10*time.Millisecond))
		start := time.Now()
		_, err := c.RecordAndFetch(ctx, "u1", "London", time.Minute, "")
		require.ErrorIs(t, err, sentinel.ErrUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("open breaker fails fast without calling the store", func(t *testing.T) {
		store := &stubStore{err: errors.New("down")}
		breaker := circuit.New("velocity", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
		c := NewClient(store, WithBreaker(breaker))

		for range 2 {
			_, err := c.RecordAndFetch(ctx, "u1", "London", time.Minute, "")
			require.Error(t, err)
		}
		require.True(t, breaker.IsOpen())

		_, err := c.RecordAndFetch(ctx, "u1", "London", time.Minute, "")
		require.ErrorIs(t, err, sentinel.ErrCircuitOpen)
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		assert.Equal(t, 2, store.calls)
	})

	t.Run("success closes the breaker after a probe", func(t *testing.T) {
		now := time.Now()
		store := &stubStore{err: errors.New("down")}
		breaker := circuit.New("velocity",
			circuit.WithFailureThreshold(1),
			circuit.WithCooldown(time.Second),
			circuit.WithClock(func() time.Time { return now }),
		)
		c := NewClient(store, WithBreaker(breaker))

		_, err := c.Peek(ctx, "u1")
		require.Error(t, err)
		require.True(t, breaker.IsOpen())

		store.err = nil
		now = now.Add(2 * time.Second)
		_, err = c.Peek(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, breaker.IsOpen())
	})
}
