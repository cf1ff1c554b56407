package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"oms_go/internal/domain"
)

func TestRateLimiter_BurstThenBlock(t *testing.T) {
	rl := NewRateLimiter(5)
	ctx := context.Background()

	// The bucket starts full, so one second's worth passes immediately.
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("burst took %v, expected no blocking", elapsed)
	}

	// The sixth call must wait for replenishment.
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := rl.Wait(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("call 6: err = %v, want deadline exceeded", err)
	}
}

func TestRateLimiter_Replenishes(t *testing.T) {
	rl := NewRateLimiter(10)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}

	// At 10/s a token is back within ~100ms.
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := rl.Wait(waitCtx); err != nil {
		t.Errorf("token did not replenish: %v", err)
	}
}

func TestRateLimiter_AcquireSurfacesBackpressure(t *testing.T) {
	rl := NewRateLimiter(1)
	ctx := context.Background()

	if err := rl.Acquire(ctx, 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := rl.Acquire(ctx, 50*time.Millisecond); !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestRateLimiter_AcquireHonorsCallerCancel(t *testing.T) {
	rl := NewRateLimiter(1)

	ctx, cancel := context.WithCancel(context.Background())
	if err := rl.Acquire(ctx, time.Second); err != nil {
		t.Fatal(err)
	}
	cancel()

	// Caller cancellation is not backpressure.
	if err := rl.Acquire(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
