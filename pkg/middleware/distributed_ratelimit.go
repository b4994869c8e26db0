package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter is a fixed window limiter shared by every instance through Redis.
// It only stores request counters.
type RedisLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a Redis-backed limiter
func NewRedisLimiter(client *redis.Client, config RateLimitConfig, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "tenantgate:ratelimit"
	}
	return &RedisLimiter{
		redis:  client,
		config: config.normalized(),
		prefix: prefix,
		now:    time.Now,
	}
}

// Allow implements Limiter. On a Redis error the result allows the request
// and the error is returned for logging.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (RateLimitResult, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return RateLimitResult{Allowed: true, Limit: l.config.RequestsPerWindow}, fmt.Errorf("redis error: %w", err)
	}

	// the window starts with the first request, so only a key without a TTL gets one
	resetIn := ttl.Val()
	if resetIn <= 0 {
		resetIn = l.config.WindowDuration
		if err := l.redis.PExpire(ctx, redisKey, resetIn).Err(); err != nil {
			return RateLimitResult{Allowed: true, Limit: l.config.RequestsPerWindow}, fmt.Errorf("redis error: %w", err)
		}
	}

	count := int(incr.Val())
	remaining := l.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}

	return RateLimitResult{
		Allowed:   count <= l.config.RequestsPerWindow,
		Limit:     l.config.RequestsPerWindow,
		Remaining: remaining,
		ResetAt:   l.now().Add(resetIn),
	}, nil
}

// Reset clears the counter for key
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.redis.Del(ctx, fmt.Sprintf("%s:%s", l.prefix, key)).Err()
}

// HealthCheck verifies Redis connectivity
func (l *RedisLimiter) HealthCheck(ctx context.Context) error {
	return l.redis.Ping(ctx).Err()
}
