package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitResult contains rate limit check result
type RateLimitResult struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call("ZREMRANGEBYSCORE", key, "-inf", window_start)

	local count = redis.call("ZCARD", key)

	if count < limit then
		redis.call("ZADD", key, now, now .. "-" .. math.random())
		redis.call("PEXPIRE", key, window_ms)
		return {1, limit - count - 1}
	else
		return {0, 0}
	end
`)

// CheckRateLimit implements a sliding window rate limiter
// key: unique identifier (e.g., "checkout:user-123")
// limit: max requests allowed
// window: time window for the limit
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error) {
	prefixedKey := c.prefixKey("ratelimit:" + key)
	now := time.Now()
	windowStart := now.Add(-window).UnixMilli()

	result, err := slidingWindow.Run(ctx, c.rdb, []string{prefixedKey},
		now.UnixMilli(),
		windowStart,
		limit,
		window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, err
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected rate limit reply: %v", result)
	}

	return &RateLimitResult{
		Allowed:   result[0] == 1,
		Remaining: result[1],
		ResetAt:   now.Add(window),
	}, nil
}
