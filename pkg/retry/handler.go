package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rohmanhakim/site-archiver/pkg/failure"
	"github.com/rohmanhakim/site-archiver/pkg/timeutil"
)

// Retry executes the provided function with retry logic.
// It will retry the function up to MaxAttempts times, applying exponential backoff
// with jitter between attempts. Only retryable errors will trigger a retry.
// Context cancellation aborts the backoff sleep and returns immediately with
// a non-retryable cancellation error.
//
// Type parameter T represents the return type of the function being retried.
func Retry[T any](ctx context.Context, retryParam RetryParam, fn func() (T, failure.ClassifiedError)) Result[T] {
	var lastErr failure.ClassifiedError
	var zero T

	if retryParam.MaxAttempts < 1 {
		return newResult(zero, failure.ClassifiedError(&RetryError{
			Message:   "max attempt cannot be 0",
			Cause:     ErrZeroAttempt,
			Retryable: true,
		}), 0)
	}

	// Initialize random number generator with the provided seed
	rng := rand.New(rand.NewSource(retryParam.RandomSeed))

	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return newResult(zero, failure.ClassifiedError(&RetryError{
				Message:   fmt.Sprintf("cancelled before attempt %d: %v", attempt, cerr),
				Cause:     ErrCancelled,
				Retryable: false,
			}), attempt-1)
		}

		result, err := fn()

		// Success case: no error
		if err == nil {
			return newResult(result, nil, attempt)
		}

		lastErr = err

		// Check if the error is retryable
		// We check if the error implements the retryable interface or has Retryable field
		shouldRetry := isErrorRetryable(err)

		// If not retryable, return immediately
		if !shouldRetry {
			return newResult(zero, err, attempt)
		}

		// If this was the last attempt, break and return exhausted error
		if attempt == retryParam.MaxAttempts {
			break
		}

		// Compute delay for the next retry using exponential backoff with jitter
		backoffDelay := timeutil.ExponentialBackoffDelay(
			attempt,
			retryParam.Jitter,
			*rng,
			retryParam.BackoffParam,
		)

		// Sleep for the computed delay, aborting early on cancellation
		timer := time.NewTimer(backoffDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return newResult(zero, failure.ClassifiedError(&RetryError{
				Message:   fmt.Sprintf("cancelled during backoff after attempt %d: %v", attempt, ctx.Err()),
				Cause:     ErrCancelled,
				Retryable: false,
			}), attempt)
		case <-timer.C:
		}
	}

	// Return the "zero value" of T and the final error when reached max attempts
	return newResult(zero, failure.ClassifiedError(&RetryError{
		Message:   fmt.Sprintf("exhausted %d attempts. Last error: %v", retryParam.MaxAttempts, lastErr),
		Cause:     ErrExhaustedAttempts,
		Retryable: true, // This is recoverable at scheduler level
	}), retryParam.MaxAttempts)
}

// isErrorRetryable checks if an error should be retried.
// It uses type assertion to check for the Retryable property.
func isErrorRetryable(err failure.ClassifiedError) bool {
	// Type assert to check if the error has a Retryable field/method
	type hasRetryable interface {
		IsRetryable() bool
	}

	if r, ok := err.(hasRetryable); ok {
		return r.IsRetryable()
	}

	// Errors that carry no retryable marker fall back to their severity
	// classification: recoverable errors retry, fatal ones do not.
	return err.Severity() == failure.SeverityRecoverable
}
