package gatekeeper

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript admits a request against a sorted-set window
// atomically: trim expired members, count, reject at the limit, record the
// admission otherwise. Member ids carry a sequence suffix so multiple
// admissions within one second do not collapse.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])
	local window = tonumber(ARGV[3])

	local cutoff = now - window
	redis.call('ZREMRANGEBYSCORE', key, '-inf', cutoff)

	local count = redis.call('ZCARD', key)
	if count >= limit then
		return 0
	end

	local seq = redis.call('INCR', key .. ':seq')
	redis.call('ZADD', key, now, now .. '-' .. seq)
	redis.call('EXPIRE', key, window * 2)
	redis.call('EXPIRE', key .. ':seq', window * 2)
	return 1
`)

// RedisRateLimiter is the shared sliding-window limiter for multi-instance
// deployments. All instances observe one window per rate key.
type RedisRateLimiter struct {
	client    *redis.Client
	limit     int
	keyPrefix string
}

// NewRedisRateLimiter creates a limiter on an existing Redis client
func NewRedisRateLimiter(client *redis.Client, perMinute int) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:    client,
		limit:     perMinute,
		keyPrefix: "webhook:ratelimit:",
	}
}

// Allow runs the window script for the key
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, now time.Time) (bool, error) {
	result, err := slidingWindowScript.Run(ctx, l.client,
		[]string{l.keyPrefix + key},
		now.Unix(), l.limit, int64(rateWindow.Seconds()),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return result == 1, nil
}
