package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Default retry parameters.
const (
	defaultAttempts   = 3
	defaultBackoff    = 500 * time.Millisecond
	defaultMaxBackoff = 8 * time.Second
)

// RetryConfig configures [Retry]. Zero fields take defaults.
type RetryConfig struct {
	// Attempts is the total call budget, including the first try.
	// Default: 3.
	Attempts int

	// Backoff is the delay before the second attempt; it doubles per
	// attempt up to MaxBackoff. Default: 500ms.
	Backoff time.Duration

	// MaxBackoff caps the delay. Default: 8s.
	MaxBackoff time.Duration
}

func (cfg *RetryConfig) defaults() {
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
}

// Retry runs fn up to cfg.Attempts times with exponential backoff between
// tries. It returns nil on the first success, ctx.Err() if the context
// ends mid-backoff, and the last error when the budget is exhausted.
// Context cancellation is not retried.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	cfg.defaults()

	var lastErr error
	delay := cfg.Backoff
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if attempt == cfg.Attempts {
			break
		}
		slog.Debug("retrying after failure",
			"attempt", attempt, "delay", delay, "error", lastErr)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > cfg.MaxBackoff {
			delay = cfg.MaxBackoff
		}
	}
	return lastErr
}

// RetryResult is [Retry] for calls that produce a value.
func RetryResult[R any](ctx context.Context, cfg RetryConfig, fn func() (R, error)) (R, error) {
	var result R
	err := Retry(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}
