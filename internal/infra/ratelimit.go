package infra

import (
	"context"
	"sync"
	"time"

	"oms_go/internal/domain"
)

// RateLimiter implements a token-bucket rate limiter that replenishes
// perSecond tokens every second, with a burst capacity of one second's
// worth. A single instance must be shared by every command path of one
// OMS so the exchange-imposed ceiling holds globally.
type RateLimiter struct {
	rate     float64 // tokens per second
	capacity float64
	tokens   float64
	lastTime time.Time
	mu       sync.Mutex
}

// NewRateLimiter creates a RateLimiter allowing perSecond operations per
// second. The bucket starts full.
func NewRateLimiter(perSecond int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &RateLimiter{
		rate:     float64(perSecond),
		capacity: float64(perSecond),
		tokens:   float64(perSecond),
		lastTime: time.Now(),
	}
}

// Wait blocks until a rate-limit token is available or the context is
// cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(rl.lastTime).Seconds()
		rl.tokens += elapsed * rl.rate
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
		rl.lastTime = now

		if rl.tokens >= 1 {
			rl.tokens -= 1
			rl.mu.Unlock()
			return nil
		}
		rl.mu.Unlock()

		// Wait a short interval before checking again.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Acquire waits up to timeout for a token. On expiry it surfaces
// ErrRateLimited so callers see backpressure rather than a silent drop.
func (rl *RateLimiter) Acquire(ctx context.Context, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := rl.Wait(waitCtx); err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			return domain.ErrRateLimited
		}
		return err
	}
	return nil
}
