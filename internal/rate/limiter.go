package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	MaxTFAAttempts int
	TFACooldown    time.Duration
}

// Limiter enforces a per-login budget for two-factor verification attempts
// using Redis counters. Password lockout is not handled here; that counter
// lives on the account row and is maintained by the credential store.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckTFA reports whether the login still has attempt budget.
// Returns [ErrRateLimited] once the window counter exceeds the budget.
func (l *Limiter) CheckTFA(ctx context.Context, loginID int64) error {
	count, err := l.redis.Get(ctx, tfaKey(loginID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count > int64(l.config.MaxTFAAttempts) {
		return ErrRateLimited
	}

	return nil
}

// IncrementTFA records a failed verification attempt for the login.
func (l *Limiter) IncrementTFA(ctx context.Context, loginID int64) error {
	count, err := l.redis.Incr(ctx, tfaKey(loginID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, tfaKey(loginID), l.config.TFACooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(l.config.MaxTFAAttempts) {
		return ErrRateLimited
	}

	return nil
}

// ResetTFA clears the attempt counter after a successful verification.
func (l *Limiter) ResetTFA(ctx context.Context, loginID int64) error {
	if err := l.redis.Del(ctx, tfaKey(loginID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

func tfaKey(loginID int64) string {
	return "tfa:" + strconv.FormatInt(loginID, 10)
}
