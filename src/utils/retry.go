package utils

import (
	"context"
	"time"

	"Backend-Volunteer-Hours/src/clock"
)

// RetryPolicy is exponential backoff for idempotent reads. Mutations are
// never retried.
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	BackoffFactor float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, BackoffFactor: 2.0}
}

// Delay is the wait before retry number attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.BackoffFactor
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, the attempts are exhausted, retryable
// reports false, or ctx is done. The last error is returned. A nil
// retryable retries every error.
func (p RetryPolicy) Do(ctx context.Context, clk clock.Clock, retryable func(error) bool, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if clk.Sleep(ctx, p.Delay(attempt)) != nil {
			return err
		}
	}
	return err
}
