package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// The parent context's values are kept but its cancellation is not, so work
// started from a request handler survives the response being written.
//
// Example:
//
//	async.SafeGo(r.Context(), logger, 5*time.Second, "cache invalidation retry", func(ctx context.Context) error {
//	    return store.Delete(ctx, key)
//	})
func SafeGo(parentCtx context.Context, logger logrus.FieldLogger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parentCtx), timeout)
		defer cancel()

		entry := logger.WithField("task", taskName)

		defer func() {
			if r := recover(); r != nil {
				entry.WithFields(logrus.Fields{
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("Panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			entry.WithError(err).Warn("Background task failed")
		}
	}()
}

// RetryPolicy controls Retry backoff
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy retries three times starting at 100ms
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:     3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
	}
}

// Retry calls fn until it succeeds, the attempts are exhausted or ctx is done.
// The delay doubles after every failure up to MaxDelay.
func Retry(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	delay := policy.InitialDelay

	var err error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == policy.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", policy.Attempts, err)
}
