package utils

import (
	"context"
	"time"
)

// Retry runs op up to attempts times, sleeping backoff*attemptNumber between
// failed attempts (linear backoff). On success the value is returned
// immediately; otherwise the last attempt's error propagates unmodified.
// The sleep honors ctx cancellation.
func Retry[T any](ctx context.Context, attempts int, backoff time.Duration, op func() (T, error)) (T, error) {
	var zero T
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, lastErr
}
