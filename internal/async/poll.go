package async

import (
	"context"
	"fmt"
	"time"
)

// PollConfig configures a polling loop for an asynchronous operation
// whose completion must be discovered by repeated status checks.
type PollConfig[T any] struct {
	// Fn performs one status check.
	Fn func(ctx context.Context) (T, error)
	// IsDone reports whether the result represents completion.
	IsDone func(result T) bool
	// Interval is the sleep between checks.
	Interval time.Duration
	// Timeout bounds accumulated wall-clock time since the first check.
	Timeout time.Duration
}

// Poll calls cfg.Fn until cfg.IsDone accepts a result, sleeping
// cfg.Interval between checks. Fails once elapsed time exceeds
// cfg.Timeout or the context is cancelled. Errors from Fn propagate
// immediately; retry around Poll if status checks themselves are flaky.
func Poll[T any](ctx context.Context, cfg PollConfig[T]) (T, error) {
	var zero T
	start := time.Now()
	for {
		result, err := cfg.Fn(ctx)
		if err != nil {
			return zero, err
		}
		if cfg.IsDone(result) {
			return result, nil
		}
		if time.Since(start) > cfg.Timeout {
			return zero, fmt.Errorf("polling timed out after %s", cfg.Timeout)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(cfg.Interval):
		}
	}
}
