package bybit

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls retries of read-only calls. Orders are never retried.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// SetRetryConfig replaces the read retry policy.
func (c *Client) SetRetryConfig(cfg RetryConfig) {
	c.retry = cfg
}

// retryRead runs fn and retries it on rate-limit errors with exponential backoff.
func (c *Client) retryRead(ctx context.Context, fn func() error) error {
	cfg := c.retry
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxRetries || !IsRateLimitError(lastErr) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.delay(attempt)):
		}
	}
	return lastErr
}

func (cfg RetryConfig) delay(attempt int) time.Duration {
	d := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt)))
	if d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	if cfg.Jitter && d > 0 {
		d += time.Duration(float64(d) * 0.1 * (2*rand.Float64() - 1))
	}
	return d
}
