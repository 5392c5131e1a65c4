package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkaconsumer "sherlock/internal/platform/kafka/consumer"
	"sherlock/internal/platform/logger"
	"sherlock/pkg/platform/audit"
	"sherlock/pkg/platform/audit/store/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Record) error {
	return errors.New("disk full")
}

func message(t *testing.T, topic string, rec audit.Record) *kafkaconsumer.Message {
	t.Helper()
	payload, err := json.Marshal(rec)
	require.NoError(t, err)
	return &kafkaconsumer.Message{Topic: topic, Key: []byte(rec.UserID), Value: payload}
}

func TestRecordHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("materializes a record", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		h := NewRecordHandler(store, logger.Discard())

		err := h.Handle(ctx, message(t, "sherlock.decisions", audit.Record{TransactionID: "t1", UserID: "u1", Outcome: "BLOCK"}))
		require.NoError(t, err)

		rec, err := store.Lookup(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "BLOCK", rec.Outcome)
	})

	t.Run("malformed payload is committed", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		h := NewRecordHandler(store, logger.Discard())

		err := h.Handle(ctx, &kafkaconsumer.Message{Topic: "sherlock.decisions", Value: []byte("{not json")})
		require.NoError(t, err)
		assert.Zero(t, store.Len())
	})

	t.Run("record without transaction id is committed", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		h := NewRecordHandler(store, logger.Discard())

		err := h.Handle(ctx, message(t, "sherlock.decisions", audit.Record{UserID: "u1"}))
		require.NoError(t, err)
		assert.Zero(t, store.Len())
	})

	t.Run("store failure asks for redelivery", func(t *testing.T) {
		h := NewRecordHandler(failingStore{}, logger.Discard())

		err := h.Handle(ctx, message(t, "sherlock.decisions", audit.Record{TransactionID: "t1"}))
		assert.ErrorContains(t, err, "disk full")
	})
}

func TestRouter(t *testing.T) {
	ctx := context.Background()
	var routed []string
	handler := func(name string) kafkaconsumer.HandlerFunc {
		return func(context.Context, *kafkaconsumer.Message) error {
			routed = append(routed, name)
			return nil
		}
	}

	r := NewRouter(logger.Discard()).
		Route("sherlock.decisions", handler("decisions")).
		Route("sherlock.conflicts", handler("conflicts"))
	assert.Equal(t, []string{"sherlock.conflicts", "sherlock.decisions"}, r.Topics())

	require.NoError(t, r.Handle(ctx, &kafkaconsumer.Message{Topic: "sherlock.decisions"}))
	require.NoError(t, r.Handle(ctx, &kafkaconsumer.Message{Topic: "unknown"}))
	require.NoError(t, r.Handle(ctx, &kafkaconsumer.Message{Topic: "sherlock.conflicts"}))
	assert.Equal(t, []string{"decisions", "conflicts"}, routed)
}
