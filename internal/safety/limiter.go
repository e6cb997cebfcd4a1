package safety

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket. Tokens refill continuously at rate per second.
type RateLimiter struct {
	mu       sync.Mutex
	capacity float64
	tokens   float64
	rate     float64
	last     time.Time
	now      func() time.Time
}

// NewRateLimiter starts with a full bucket. A non-positive rate disables limiting.
func NewRateLimiter(capacity int, rate float64) *RateLimiter {
	if capacity < 1 {
		capacity = 1
	}
	rl := &RateLimiter{capacity: float64(capacity), tokens: float64(capacity), rate: rate, now: time.Now}
	rl.last = rl.now()
	return rl
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	return rl.reserve() == 0
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	for {
		d := rl.reserve()
		if d == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
}

// reserve takes a token and returns 0, or returns how long until one is available.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.rate <= 0 {
		return 0
	}

	now := rl.now()
	rl.tokens += now.Sub(rl.last).Seconds() * rl.rate
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
	rl.last = now

	if rl.tokens >= 1 {
		rl.tokens--
		return 0
	}
	return time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
}
