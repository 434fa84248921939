package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testLimiter(t *testing.T, max int, cooldown time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, Config{MaxTFAAttempts: max, TFACooldown: cooldown}), server
}

func TestLimiterAllowsWithinBudget(t *testing.T) {
	limiter, _ := testLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.CheckTFA(ctx, 1); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if err := limiter.IncrementTFA(ctx, 1); err != nil {
			t.Fatalf("increment %d: %v", i+1, err)
		}
	}

	if err := limiter.IncrementTFA(ctx, 1); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited from over-budget increment, got %v", err)
	}
	if err := limiter.CheckTFA(ctx, 1); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited from check, got %v", err)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	limiter, server := testLimiter(t, 1, time.Minute)
	ctx := context.Background()

	_ = limiter.IncrementTFA(ctx, 7)
	_ = limiter.IncrementTFA(ctx, 7)
	if err := limiter.CheckTFA(ctx, 7); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	server.FastForward(2 * time.Minute)
	if err := limiter.CheckTFA(ctx, 7); err != nil {
		t.Fatalf("window should have expired: %v", err)
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter, _ := testLimiter(t, 1, time.Minute)
	ctx := context.Background()

	_ = limiter.IncrementTFA(ctx, 1)
	_ = limiter.IncrementTFA(ctx, 1)
	if err := limiter.CheckTFA(ctx, 2); err != nil {
		t.Fatalf("login 2 must be unaffected: %v", err)
	}
}

func TestLimiterReset(t *testing.T) {
	limiter, server := testLimiter(t, 1, time.Minute)
	ctx := context.Background()

	_ = limiter.IncrementTFA(ctx, 9)
	_ = limiter.IncrementTFA(ctx, 9)
	if err := limiter.ResetTFA(ctx, 9); err != nil {
		t.Fatalf("ResetTFA() failed: %v", err)
	}
	if server.Exists("tfa:9") {
		t.Fatal("reset must delete the counter key")
	}
	if err := limiter.CheckTFA(ctx, 9); err != nil {
		t.Fatalf("check after reset: %v", err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := New(client, Config{MaxTFAAttempts: 3, TFACooldown: time.Minute})

	server.Close()

	if err := limiter.CheckTFA(context.Background(), 1); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
