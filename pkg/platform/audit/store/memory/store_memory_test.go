package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sherlock/pkg/platform/audit"
	"sherlock/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("first record for a transaction wins", func(t *testing.T) {
		s := NewInMemoryStore()
		require.NoError(t, s.Append(ctx, audit.Record{TransactionID: "t1", UserID: "u1", Outcome: "APPROVE"}))
		require.NoError(t, s.Append(ctx, audit.Record{TransactionID: "t1", UserID: "u1", Outcome: "BLOCK"}))

		rec, err := s.Lookup(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "APPROVE", rec.Outcome)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("lookup of unknown transaction", func(t *testing.T) {
		s := NewInMemoryStore()
		_, err := s.Lookup(ctx, "missing")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("lists by user in append order", func(t *testing.T) {
		s := NewInMemoryStore()
		require.NoError(t, s.Append(ctx, audit.Record{TransactionID: "a", UserID: "u1"}))
		require.NoError(t, s.Append(ctx, audit.Record{TransactionID: "b", UserID: "u2"}))
		require.NoError(t, s.Append(ctx, audit.Record{TransactionID: "c", UserID: "u1"}))

		recs, err := s.ListByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "a", recs[0].TransactionID)
		assert.Equal(t, "c", recs[1].TransactionID)

		all, err := s.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("returned records do not alias stored reasons", func(t *testing.T) {
		s := NewInMemoryStore()
		reasons := []string{"HIGH_VELOCITY"}
		require.NoError(t, s.Append(ctx, audit.Record{TransactionID: "t1", Reasons: reasons}))
		reasons[0] = "mutated"

		rec, err := s.Lookup(ctx, "t1")
		require.NoError(t, err)
		rec.Reasons[0] = "also mutated"

		again, err := s.Lookup(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, []string{"HIGH_VELOCITY"}, again.Reasons)
	})
}
