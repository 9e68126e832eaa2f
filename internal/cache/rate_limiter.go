package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pslattery/gatehouse/internal/models"
)

// RateLimiter implements a fixed-window counter per key. The first hit in a
// window creates the counter with the window as its TTL; subsequent hits
// increment it until the limit is reached.
type RateLimiter struct {
	client *redis.Client
	prefix string
}

func NewRateLimiter(client *redis.Client, prefix string) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
	}
}

// Allow consumes one hit against the key's window and reports the outcome.
// An error return means Redis could not be reached; callers decide whether
// to fail open or closed.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	fullKey := rl.prefix + key

	count, err := rl.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// First hit in the window owns setting the TTL
	if count == 1 {
		if err := rl.client.PExpire(ctx, fullKey, window).Err(); err != nil {
			return nil, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	result := &models.RateLimitResult{
		Allowed: count <= int64(limit),
		Limit:   limit,
	}
	if remaining := int64(limit) - count; remaining > 0 {
		result.Remaining = int(remaining)
	}

	if !result.Allowed {
		ttl, err := rl.client.PTTL(ctx, fullKey).Result()
		if err != nil || ttl < 0 {
			// Counter without a TTL should not happen; report the full window
			ttl = window
		}
		result.RetryAfterSeconds = int((ttl + time.Second - 1) / time.Second)
	}

	return result, nil
}
