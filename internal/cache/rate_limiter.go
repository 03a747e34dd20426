package cache

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter shared across API instances.
type RateLimiter struct {
	redis  *RedisClient
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit hits per window for each key.
func NewRateLimiter(redis *RedisClient, prefix string, limit int, window time.Duration) *RateLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &RateLimiter{redis: redis, prefix: prefix, limit: limit, window: window, now: time.Now}
}

// Allow counts a hit for key and reports whether it is within the limit.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := l.now().Unix() / int64(l.window.Seconds())
	n, err := l.redis.IncrWindow(ctx, fmt.Sprintf("ratelimit:%s:%s:%d", l.prefix, key, bucket), l.window)
	if err != nil {
		return false, err
	}
	return n <= int64(l.limit), nil
}
