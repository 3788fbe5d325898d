package services

import (
	"context"
	"time"

	"github.com/wordmesh/wordmesh-backend/internal/platform/apperr"
	"github.com/wordmesh/wordmesh-backend/internal/platform/logger"
)

const (
	retryAttempts  = 3
	retryBaseDelay = 50 * time.Millisecond
)

// withRetry re-runs an idempotent store step on transient failure with
// bounded doubling backoff. Validation and invariant errors are returned
// immediately; only errors the taxonomy marks retryable are retried.
func withRetry(ctx context.Context, log *logger.Logger, op string, fn func() error) error {
	var err error
	delay := retryBaseDelay
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !apperr.Retryable(err) {
			return err
		}
		if attempt == retryAttempts {
			break
		}
		log.Warn("transient store failure, retrying",
			"op", op,
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
