package devicegraph

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sherlock:device:"

// RedisGraph keeps one set per device, refreshed to TTL on every link.
type RedisGraph struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisGraph(client redis.Cmdable, ttl time.Duration) *RedisGraph {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGraph{client: client, ttl: ttl}
}

func (g *RedisGraph) Link(ctx context.Context, deviceID, userID string) (int, error) {
	key := keyPrefix + deviceID

	var card *redis.IntCmd
	_, err := g.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, userID)
		pipe.Expire(ctx, key, g.ttl)
		card = pipe.SCard(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("link device: %w", err)
	}
	return int(card.Val()), nil
}

func (g *RedisGraph) Count(ctx context.Context, deviceID string) (int, error) {
	n, err := g.client.SCard(ctx, keyPrefix+deviceID).Result()
	if err != nil {
		return 0, fmt.Errorf("count device users: %w", err)
	}
	return int(n), nil
}
