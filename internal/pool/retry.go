package pool

import (
	"context"
	"time"
)

// retryPolicy is the single retry helper for the pool's launch and
// context-creation paths. Attempts is the total number of tries, not the
// number of retries.
type retryPolicy struct {
	attempts int
	delay    time.Duration
}

// do runs fn until it succeeds, fn reports a permanent failure, the
// attempt budget runs out, or ctx is canceled. It returns the last error.
func (r retryPolicy) do(ctx context.Context, fn func() (retryable bool, err error)) error {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		retryable, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || attempt == r.attempts {
			return lastErr
		}

		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
