package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowCounter increments the counter of one window and pins its expiry to
// shortly after the window closes.
var windowCounter = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIREAT", KEYS[1], ARGV[1])
end
return n
`)

// counterGrace keeps a finished window around briefly so clock skew between
// replicas does not reset a counter early.
const counterGrace = time.Second

// RedisLimiter counts fixed windows in Redis so replicas share one budget.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter. Keys are namespaced by prefix.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: strings.Trim(strings.TrimSpace(prefix), ":")}
}

// Allow increments the counter of the window containing now.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	if l == nil || l.client == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	idx, reset := windowStart(now, window)
	expireAt := reset.Add(counterGrace).UnixMilli()

	count, err := windowCounter.Run(ctx, l.client, []string{l.counterKey(key, idx)}, expireAt).Int64()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit redis: %w", err)
	}
	if count > int64(limit) {
		return Result{Allowed: false, Reset: reset}, nil
	}
	return Result{Allowed: true, Remaining: limit - int(count), Reset: reset}, nil
}

func (l *RedisLimiter) counterKey(key string, idx int64) string {
	if l.prefix == "" {
		return fmt.Sprintf("%s:%d", key, idx)
	}
	return fmt.Sprintf("%s:%s:%d", l.prefix, key, idx)
}
