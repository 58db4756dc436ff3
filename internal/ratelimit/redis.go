package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "ratelimit:"

// Increment and start the window in one step
// A key left without TTL gets one on the next hit, so it can't block forever
var hitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Decrement only if the key is alive, otherwise DECR would create
// a counter without TTL that is never dropped
var undoScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return redis.call("DECR", KEYS[1])
end
return 0
`)

// RedisCounter keeps counters in redis, so they are shared between app instances
type RedisCounter struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisCounter(client redis.UniversalClient, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisCounter{redis: client, prefix: prefix}
}

func (c *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := hitScript.Run(ctx, c.redis, []string{c.prefix + key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis hit failed. Err: %w", err)
	}
	return count, nil
}

func (c *RedisCounter) Undo(ctx context.Context, key string) error {
	if err := undoScript.Run(ctx, c.redis, []string{c.prefix + key}).Err(); err != nil {
		return fmt.Errorf("redis decr failed. Err: %w", err)
	}
	return nil
}
