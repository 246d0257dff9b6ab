// Bounded retry with exponential backoff.
//
// Information Hiding:
// - Backoff schedule hidden
// - Error classification hidden behind Permanent
package async

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMaxAttempts is the attempt budget when callers have no opinion.
	DefaultMaxAttempts = 3

	retryBaseDelay = 200 * time.Millisecond
	retryMaxDelay  = 5 * time.Second
)

// permanentError marks an error that must not be retried, e.g. an
// authentication failure or a malformed request the provider rejected.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Retry aborts immediately instead of consuming
// remaining attempts. A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Retry runs fn up to maxAttempts times, sleeping an exponentially
// increasing delay between failures (doubling from a base, capped).
// Errors marked Permanent abort immediately. The last error is returned
// annotated with label for diagnostics. maxAttempts < 1 is treated as
// DefaultMaxAttempts.
func Retry(ctx context.Context, label string, maxAttempts int, fn func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", label, ctx.Err())
			case <-time.After(backoffDelay(attempt)):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if IsPermanent(err) {
			return fmt.Errorf("%s: %w", label, err)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", label, maxAttempts, lastErr)
}

// backoffDelay returns the delay before the given retry attempt (1-based
// for the first retry).
func backoffDelay(attempt int) time.Duration {
	delay := retryBaseDelay << (attempt - 1)
	if delay > retryMaxDelay || delay <= 0 {
		delay = retryMaxDelay
	}
	return delay
}
