// Package ratelimit enforces per-LLM-provider request budgets with a
// Redis-backed token bucket, grounded on jordigilh-kubernaut's
// pkg/cache/redis client wrapper pattern (a thin struct over
// *redis.Client constructed from *redis.Options, with a Close method).
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter enforces a requests-per-minute budget per key using Redis as
// shared state, so multiple orchestrator instances share one limit.
type Limiter struct {
	client *redis.Client
}

// NewLimiter wraps an existing Redis client.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Allow reports whether a request for key is permitted under limit
// requests per minute, using a fixed-window counter: INCR the current
// minute's bucket and set its TTL the first time it's created.
func (l *Limiter) Allow(ctx context.Context, key string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	bucketKey := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().Unix()/60)

	count, err := l.client.Incr(ctx, bucketKey).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, bucketKey, 2*time.Minute).Err(); err != nil {
			return false, fmt.Errorf("ratelimit expire: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// Remaining reports how many requests are left in the current window for
// key, clamped at 0.
func (l *Limiter) Remaining(ctx context.Context, key string, limit int) (int, error) {
	bucketKey := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().Unix()/60)

	val, err := l.client.Get(ctx, bucketKey).Int()
	if err == redis.Nil {
		return limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ratelimit get: %w", err)
	}

	remaining := limit - val
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Close releases the underlying Redis client.
func (l *Limiter) Close() error {
	return l.client.Close()
}
