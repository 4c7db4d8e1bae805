package auth

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis key prefixes for the shared rate-limit counters.
const (
	cooldownKeyPrefix = "code:cooldown:"
	emailKeyPrefix    = "code:email:"
	ipKeyPrefix       = "code:ip:"
)

// RedisLimiter keeps the verification-code counters in Redis so every
// instance of the service sees the same windows. Counter keys carry their
// own expiry, which doubles as the window boundary.
type RedisLimiter struct {
	rdb *redis.Client
}

// NewRedisLimiter creates a Redis-backed code limiter.
func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb}
}

// Reserve applies the cooldown and both sliding windows, in that order.
func (l *RedisLimiter) Reserve(ctx context.Context, email, ip string) (Decision, error) {
	remaining, err := l.rdb.PTTL(ctx, cooldownKeyPrefix+email).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("reading cooldown: %w", err)
	}
	if remaining > 0 {
		return rejected(remaining), nil
	}

	d, err := l.takeToken(ctx, emailKeyPrefix+email, maxPerEmail)
	if err != nil || !d.OK {
		return d, err
	}
	if ip != "" {
		d, err = l.takeToken(ctx, ipKeyPrefix+ip, maxPerIP)
		if err != nil || !d.OK {
			return d, err
		}
	}
	return Decision{OK: true}, nil
}

// MarkSent starts the per-email cooldown.
func (l *RedisLimiter) MarkSent(ctx context.Context, email string) error {
	if err := l.rdb.Set(ctx, cooldownKeyPrefix+email, 1, codeCooldown).Err(); err != nil {
		return fmt.Errorf("storing cooldown: %w", err)
	}
	return nil
}

// takeToken increments the window counter, setting the window expiry when
// the counter is fresh. Counts past the limit reject with the window's
// remaining lifetime as the retry-after.
func (l *RedisLimiter) takeToken(ctx context.Context, key string, limit int) (Decision, error) {
	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("incrementing counter: %w", err)
	}
	if count == 1 {
		if err := l.rdb.PExpire(ctx, key, codeWindow).Err(); err != nil {
			return Decision{}, fmt.Errorf("setting window expiry: %w", err)
		}
	}
	if count > int64(limit) {
		remaining, err := l.rdb.PTTL(ctx, key).Result()
		if err != nil {
			return Decision{}, fmt.Errorf("reading window expiry: %w", err)
		}
		if remaining < 0 {
			remaining = codeWindow
		}
		return rejected(remaining), nil
	}
	return Decision{OK: true}, nil
}
