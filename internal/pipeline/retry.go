package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/bookweave/internal/oracle"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *oracle.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

// retry runs fn up to MaxRetries times while it fails with a retryable
// error, sleeping wait(attempt) in between.
func retry(ctx context.Context, log *slog.Logger, wait func(int) time.Duration, fn func() error) error {
	var lastErr error
	for attempt := range MaxRetries {
		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) || attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable oracle error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(wait(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
