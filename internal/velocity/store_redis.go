package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sherlock/internal/decision/ports"
)

// DefaultKeyPrefix is the production keyspace. The shadow path's increment
// mode uses its own prefix so it never touches these keys.
const DefaultKeyPrefix = "sherlock:velocity:"

// recordScript runs the whole read-modify-write on the user's hash so
// concurrent callers never lose an increment. Window expiry uses the server
// clock; an expired hash is treated as absent.
//
// KEYS[1] user hash
// ARGV[1] location, ARGV[2] window in ms, ARGV[3] transaction id
// Returns {count, previous location, current location, replay flag}.
var recordScript = redis.NewScript(`
local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
local window = tonumber(ARGV[2])

local cur = redis.call('HMGET', KEYS[1], 'count', 'location', 'prev_location', 'expiry', 'last_tx')
local count = tonumber(cur[1]) or 0
local location = cur[2] or ''
local prev = cur[3] or ''
local expiry = tonumber(cur[4]) or 0
local last_tx = cur[5] or ''

if expiry <= now then
	count = 0
	location = ''
	prev = ''
	last_tx = ''
end

if ARGV[3] ~= '' and last_tx == ARGV[3] then
	return {count, prev, location, 1}
end

count = count + 1
redis.call('HSET', KEYS[1],
	'count', count,
	'location', ARGV[1],
	'prev_location', location,
	'expiry', now + window,
	'last_tx', ARGV[3])
redis.call('PEXPIRE', KEYS[1], window)
return {count, location, ARGV[1], 0}
`)

// peekScript reads the user's hash without writing, judging expiry by the
// same server clock recordScript uses.
//
// KEYS[1] user hash
// Returns {count, current location, previous location}; count is 0 once the
// window has passed.
var peekScript = redis.NewScript(`
local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)

local cur = redis.call('HMGET', KEYS[1], 'count', 'location', 'prev_location', 'expiry')
local count = tonumber(cur[1]) or 0
local expiry = tonumber(cur[4]) or 0
if count == 0 or expiry <= now then
	return {0, '', ''}
end
return {count, cur[2] or '', cur[3] or ''}
`)

// RedisStore keeps one hash per user with a TTL equal to the window.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

type RedisOption func(*RedisStore)

// WithKeyPrefix isolates the store in its own keyspace.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

func NewRedisStore(client redis.Cmdable, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) RecordAndFetch(ctx context.Context, userID, location string, window time.Duration, transactionID string) (ports.Activity, error) {
	res, err := recordScript.Run(ctx, s.client,
		[]string{s.prefix + userID},
		location, window.Milliseconds(), transactionID,
	).Slice()
	if err != nil {
		return ports.Activity{}, fmt.Errorf("record activity: %w", err)
	}
	if len(res) != 4 {
		return ports.Activity{}, fmt.Errorf("record activity: unexpected reply of %d values", len(res))
	}

	count, _ := res[0].(int64)
	prev, _ := res[1].(string)
	current, _ := res[2].(string)
	replay, _ := res[3].(int64)
	return ports.Activity{
		Velocity:         int(count),
		LocationChanged:  prev != "" && prev != current,
		PreviousLocation: prev,
		Replay:           replay == 1,
	}, nil
}

func (s *RedisStore) Peek(ctx context.Context, userID string) (ports.Activity, error) {
	res, err := peekScript.Run(ctx, s.client, []string{s.prefix + userID}).Slice()
	if err != nil {
		return ports.Activity{}, fmt.Errorf("peek activity: %w", err)
	}
	if len(res) != 3 {
		return ports.Activity{}, fmt.Errorf("peek activity: unexpected reply of %d values", len(res))
	}

	count, _ := res[0].(int64)
	if count == 0 {
		return ports.Activity{}, nil
	}
	current, _ := res[1].(string)
	prev, _ := res[2].(string)
	return ports.Activity{
		Velocity:         int(count),
		LocationChanged:  prev != "" && prev != current,
		PreviousLocation: prev,
	}, nil
}
