package service

import (
	"context"
	"errors"
	"time"

	"github.com/kapehan/kapehan-backend/internal/app/repository"
	"github.com/kapehan/kapehan-backend/pkg/logger"
)

// retryable reports whether an error is transient at the storage
// boundary. Validation and idempotency errors are never retried.
func retryable(err error) bool {
	return errors.Is(err, repository.ErrVersionConflict) ||
		errors.Is(err, repository.ErrStoreUnavailable)
}

// withRetry re-runs fn on transient storage failures with exponential
// backoff, bounded by attempts. The last error surfaces once the budget
// is exhausted or the context is cancelled.
func withRetry(ctx context.Context, attempts int, baseDelay time.Duration, op string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := baseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		logger.Warn("Transient storage error, retrying", map[string]interface{}{
			"op":      op,
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	logger.Error("Retry budget exhausted", err, map[string]interface{}{
		"op":       op,
		"attempts": attempts,
	})
	return err
}
