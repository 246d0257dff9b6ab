package async

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRetryRetryableExhaustsAttempts(t *testing.T) {
	attempts := 0
	failure := errors.New("connection reset")

	err := Retry(context.Background(), "search", 3, func(ctx context.Context) error {
		attempts++
		return failure
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", attempts)
	}
	if !errors.Is(err, failure) {
		t.Errorf("expected last error in chain, got %v", err)
	}
	if !strings.Contains(err.Error(), "search") {
		t.Errorf("expected label in error, got %v", err)
	}
}

func TestRetryPermanentAbortsImmediately(t *testing.T) {
	attempts := 0
	authFailure := Permanent(errors.New("invalid api key"))

	err := Retry(context.Background(), "render", 5, func(ctx context.Context) error {
		attempts++
		return authFailure
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("permanent error should be attempted exactly once, got %d", attempts)
	}
	if !IsPermanent(err) {
		t.Errorf("permanent classification should survive wrapping: %v", err)
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "poll-status", 3, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryPermanentNil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
	if IsPermanent(errors.New("plain")) {
		t.Error("plain error should not classify as permanent")
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := Retry(ctx, "search", 5, func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected no retries after cancellation, got %d attempts", attempts)
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	if d := backoffDelay(1); d != retryBaseDelay {
		t.Errorf("first retry delay = %s, want %s", d, retryBaseDelay)
	}
	if d := backoffDelay(2); d != 2*retryBaseDelay {
		t.Errorf("second retry delay = %s, want %s", d, 2*retryBaseDelay)
	}
	if d := backoffDelay(30); d != retryMaxDelay {
		t.Errorf("large attempt delay = %s, want ceiling %s", d, retryMaxDelay)
	}
}

func TestRetryDefaultAttempts(t *testing.T) {
	attempts := 0
	_ = Retry(context.Background(), "op", 0, func(ctx context.Context) error {
		attempts++
		return errors.New("x")
	})
	if attempts != DefaultMaxAttempts {
		t.Errorf("expected %d attempts for zero budget, got %d", DefaultMaxAttempts, attempts)
	}
}

func TestRetryBackoffWaits(t *testing.T) {
	start := time.Now()
	_ = Retry(context.Background(), "op", 2, func(ctx context.Context) error {
		return errors.New("transient")
	})
	if elapsed := time.Since(start); elapsed < retryBaseDelay {
		t.Errorf("expected at least one backoff sleep, elapsed %s", elapsed)
	}
}
