package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// NewBackoff returns the retry schedule used across the pipeline:
// 1s, 2s, 4s... doubling without jitter, capped at max. Deterministic
// delays keep CI logs reproducible.
func NewBackoff(max time.Duration) *backoff.Backoff {
	return &backoff.Backoff{
		Min:    time.Second,
		Max:    max,
		Factor: 2,
		Jitter: false,
	}
}

// WithRetry runs op up to attempts times, sleeping per the schedule
// between failures. The operation is retried as a whole; respect the
// context to stop early.
func WithRetry(ctx context.Context, attempts int, b *backoff.Backoff, op func(context.Context) error) error {
	if attempts <= 0 {
		attempts = 3
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
