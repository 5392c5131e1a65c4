package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sherlock/pkg/platform/audit"
	"sherlock/pkg/platform/sentinel"
)

const keyPrefix = "sherlock:verdict:"

// Index stores each decision as JSON under its transaction ID with a TTL, so
// replays and the shadow detector can find it without querying the audit log.
type Index struct {
	client redis.Cmdable
	ttl    time.Duration
}

func New(client redis.Cmdable, ttl time.Duration) *Index {
	return &Index{client: client, ttl: ttl}
}

// Append writes the record unless one is already indexed for the transaction.
func (i *Index) Append(ctx context.Context, rec audit.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	if err := i.client.SetNX(ctx, keyPrefix+rec.TransactionID, payload, i.ttl).Err(); err != nil {
		return fmt.Errorf("index verdict: %w", err)
	}
	return nil
}

func (i *Index) Lookup(ctx context.Context, transactionID string) (*audit.Record, error) {
	payload, err := i.client.Get(ctx, keyPrefix+transactionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lookup verdict: %w", err)
	}
	var rec audit.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}
	return &rec, nil
}
