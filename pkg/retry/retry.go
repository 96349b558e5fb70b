// Package retry runs an operation with capped exponential backoff.
package retry

import (
	"context"
	"time"
)

// Policy describes how many times to retry and how long to wait between attempts.
// The delay before attempt n (0-based, n >= 1) is Initial * 2^(n-1), capped at Max.
type Policy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
}

// DefaultPolicy is used when a caller does not configure one.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Initial:     5 * time.Millisecond,
		Max:         200 * time.Millisecond,
	}
}

// Delay returns the wait before the given attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 || p.Initial <= 0 {
		return 0
	}
	delay := p.Initial * time.Duration(1<<(attempt-1))
	if p.Max > 0 && (delay > p.Max || delay <= 0) {
		delay = p.Max
	}
	return delay
}

// Do calls fn until it succeeds, returns an error for which retryable reports false,
// or MaxAttempts is reached. The last error is returned. onRetry, when set, is called
// before each wait.
func Do(ctx context.Context, p Policy, retryable func(error) bool, onRetry func(attempt int, err error), fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if onRetry != nil {
				onRetry(attempt, err)
			}
			select {
			case <-time.After(p.Delay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = fn(attempt)
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
	}
	return err
}
