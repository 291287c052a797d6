package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per client in fixed windows.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, name, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

var _ RateLimiter = (*RedisClient)(nil)

// RateLimitResult is the outcome of one counted request.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration // time until the window resets
}

// rateLimitScript increments the window counter and returns {count, ttl}.
// The expiry is set on the first hit and repaired if it was ever lost.
var rateLimitScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	local ttl = redis.call('TTL', KEYS[1])
	if current == 1 or ttl == -1 then
		redis.call('EXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return {current, ttl}
`)

// CheckRateLimit counts a request against bucket name/key, for example
// ("signed_url", clientIP), allowing limit requests per window.
func (r *RedisClient) CheckRateLimit(ctx context.Context, name, key string, limit int64, window time.Duration) (*RateLimitResult, error) {
	bucket := r.prefixKey(fmt.Sprintf("ratelimit:%s:%s", name, key))
	windowSeconds := max(int64(window.Seconds()), 1)

	vals, err := rateLimitScript.Run(ctx, r.client, []string{bucket}, windowSeconds).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(vals) != 2 {
		return nil, fmt.Errorf("unexpected rate limit script result %v", vals)
	}

	current, ttl := vals[0], vals[1]
	return &RateLimitResult{
		Allowed:    current <= limit,
		Remaining:  max(limit-current, 0),
		RetryAfter: time.Duration(ttl) * time.Second,
	}, nil
}
