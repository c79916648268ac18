// Package retry re-runs an operation under a Policy until it succeeds or the
// Policy gives up.
package retry

import (
	"context"
	"time"
)

// Policy parameterizes Do.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first one.
	MaxAttempts int
	// Delay is waited between attempts.
	Delay time.Duration
	// Retryable decides whether an error deserves another attempt.
	// Nil retries every error.
	Retryable func(err error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error)
}

// Do calls fn until it returns a nil error or the policy gives up, and
// returns the last value and error. The attempt passed to fn is 1-based.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	attempts := max(1, p.MaxAttempts)

	var (
		val T
		err error
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		val, err = fn(ctx, attempt)
		if err == nil {
			return val, nil
		}

		if p.Retryable != nil && !p.Retryable(err) {
			return val, err
		}
		if attempt == attempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		if p.Delay > 0 {
			t := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return val, ctx.Err()
			case <-t.C:
			}
		} else if ctx.Err() != nil {
			return val, ctx.Err()
		}
	}

	return val, err
}
