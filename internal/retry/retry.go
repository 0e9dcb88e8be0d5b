package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultMaxAttempts bounds every retried operation unless a policy says otherwise.
const DefaultMaxAttempts = 5

// Policy bounds and instruments the attempts of one operation.
type Policy struct {
	Name        string        // used in TooManyRetriesError, e.g. "readPage"
	MaxAttempts int           // <= 0 means DefaultMaxAttempts
	Delay       time.Duration // wait between attempts; zero retries immediately

	// NonRetryable errors are returned as-is without consuming further attempts.
	NonRetryable func(error) bool

	// OnRetry is an optional hook for logging/metrics, called before each retry.
	OnRetry func(attempt int, err error)
}

// TooManyRetriesError is returned once every attempt has failed. Errors holds
// the failure of each attempt in order.
type TooManyRetriesError struct {
	Name   string
	Errors []error
}

func (e *TooManyRetriesError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%s: too many retries (%d attempts): %s", e.Name, len(e.Errors), strings.Join(msgs, "; "))
}

func (e *TooManyRetriesError) Unwrap() []error {
	return e.Errors
}

// Do invokes op until it succeeds, fails with a non-retryable error, the
// context ends, or the attempt bound is reached.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	errs := make([]error, 0, maxAttempts)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if p.NonRetryable != nil && p.NonRetryable(err) {
			return zero, err
		}
		if errors.Is(err, context.Canceled) {
			return zero, err
		}
		errs = append(errs, err)

		if attempt == maxAttempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return zero, &TooManyRetriesError{Name: p.Name, Errors: errs}
}
