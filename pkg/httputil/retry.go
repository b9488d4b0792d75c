package httputil

import (
	"context"
	"errors"
	"time"

	"github.com/juju/clock"
)

// RetryableError marks a transient failure, such as a network timeout or a
// 5xx response, that a [Backoff] should attempt again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Backoff retries an operation on retryable failures, doubling the wait after
// each one.
type Backoff struct {
	Attempts int
	Delay    time.Duration
	// MaxDelay caps the wait between attempts. Zero leaves it uncapped.
	MaxDelay time.Duration
	// Clock drives the waits; nil means the wall clock.
	Clock clock.Clock
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts are used up. The attempt number passed to fn starts at 1.
// Cancelling ctx during a wait returns ctx.Err().
func (b Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	clk := b.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	attempts := max(b.Attempts, 1)
	delay := b.Delay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(delay):
		}
		delay *= 2
		if b.MaxDelay > 0 && delay > b.MaxDelay {
			delay = b.MaxDelay
		}
	}
	return lastErr
}

// Retry is Backoff{Attempts: attempts, Delay: delay}.Do on the wall clock.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	return Backoff{Attempts: attempts, Delay: delay}.Do(ctx, func(int) error { return fn() })
}

// IsRetryable reports whether err is wrapped in a RetryableError.
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}
