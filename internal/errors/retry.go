package errors

import (
	"context"
	"errors"
	"time"
)

const (
	retryAttempts   = 3
	retryBaseDelay  = 100 * time.Millisecond
	retryDelayLimit = 5 * time.Second
)

// WithRetry runs fn up to retryAttempts+1 times with doubling backoff.
// Only errors marked retryable are tried again; the rest are returned
// immediately.
func WithRetry(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	delay := retryBaseDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt == retryAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > retryDelayLimit {
			delay = retryDelayLimit
		}
	}
}

// IsRetryable reports whether err is an application error flagged as
// transient.
func IsRetryable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr != nil && appErr.Retryable
}
