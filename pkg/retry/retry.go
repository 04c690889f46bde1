// Package retry runs an operation under an exponential backoff schedule.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Config describes the backoff schedule. MaxAttempts counts retries after
// the initial call, so MaxAttempts=3 means up to four invocations.
type Config struct {
	Enabled      bool
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retry invokes fn until it succeeds, the attempt budget runs out, or the
// context is cancelled.
func Retry(ctx context.Context, cfg Config, fn func() error) error {
	if !cfg.Enabled {
		return fn()
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry aborted: %w", err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("gave up after %d attempts: %w", attempt+1, lastErr)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(next(cfg, delay)):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

// next applies up to 25% random jitter so concurrent retriers spread out.
func next(cfg Config, delay time.Duration) time.Duration {
	if !cfg.Jitter || delay <= 0 {
		return delay
	}
	spread := int64(delay / 4)
	if spread == 0 {
		return delay
	}
	return delay - time.Duration(spread/2) + time.Duration(rand.Int63n(spread))
}
