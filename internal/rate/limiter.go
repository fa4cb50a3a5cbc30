package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	MaxFailedAttempts int
	Cooldown          time.Duration
	Prefix            string
}

// RedisLimiter enforces a per-identifier failed sign-in budget using Redis
// counters, so the budget is shared by every client pointing at the same Redis.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
}

// NewRedis creates a [RedisLimiter] backed by the given Redis client.
func NewRedis(redisClient redis.UniversalClient, cfg Config) *RedisLimiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "as"
	}
	return &RedisLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Check returns ErrRateLimited once the identifier has used up its budget of
// failed attempts inside the current window.
func (l *RedisLimiter) Check(ctx context.Context, identifier string) error {
	count, err := l.redis.Get(ctx, l.key(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxFailedAttempts) {
		return ErrRateLimited
	}

	return nil
}

// Failure records a rejected attempt. It returns ErrRateLimited when this
// failure exhausted the budget.
func (l *RedisLimiter) Failure(ctx context.Context, identifier string) error {
	count, err := l.incrementWithTTL(ctx, l.key(identifier), l.config.Cooldown)
	if err != nil {
		return err
	}
	if count >= int64(l.config.MaxFailedAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter after a successful sign-in.
func (l *RedisLimiter) Reset(ctx context.Context, identifier string) error {
	if err := l.redis.Del(ctx, l.key(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failed attempts recorded in the current window.
func (l *RedisLimiter) Attempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *RedisLimiter) key(identifier string) string {
	return l.config.Prefix + ":sf:" + normalizeIdentifier(identifier)
}

func (l *RedisLimiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
