// Package retry runs fallible operations with bounded attempts and
// exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 1 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy configures Do.
type Policy struct {
	MaxAttempts int           // total attempts including the first (default: 3)
	BaseDelay   time.Duration // delay after the first failure (default: 1s)

	// Sleep replaces the real timer, mostly in tests.
	Sleep SleepFunc
	// OnFailure is called after every failed attempt, before any delay.
	OnFailure func(attempt, maxAttempts int, err error)
}

// ExhaustedRetriesError wraps the last error once every attempt has failed.
type ExhaustedRetriesError struct {
	Attempts int
	Cause    error
}

// Error implements the error interface.
func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ExhaustedRetriesError) Unwrap() error {
	return e.Cause
}

// Do calls op until it succeeds or MaxAttempts attempts have failed. The
// delay before attempt k+1 is BaseDelay*2^(k-1); the last failure returns
// immediately as *ExhaustedRetriesError.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.Sleep == nil {
		p.Sleep = Sleep
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if p.OnFailure != nil {
			p.OnFailure(attempt, p.MaxAttempts, err)
		}
		if attempt == p.MaxAttempts {
			break
		}

		if err := p.Sleep(ctx, Backoff(attempt, p.BaseDelay)); err != nil {
			return zero, err
		}
	}

	return zero, &ExhaustedRetriesError{Attempts: p.MaxAttempts, Cause: lastErr}
}

// maxBackoff is returned once doubling would overflow time.Duration.
const maxBackoff = time.Duration(math.MaxInt64)

// Backoff returns the delay that follows failed attempt number attempt
// (1-based): base*2^(attempt-1), saturating at maxBackoff.
func Backoff(attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		if d > maxBackoff/2 {
			return maxBackoff
		}
		d *= 2
	}
	return d
}

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
