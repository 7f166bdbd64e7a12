package util

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds a retry loop. Delay is the pause between attempts;
// with Multiplier > 1 it grows geometrically, otherwise it stays fixed.
// AttemptTimeout, when positive, bounds every individual attempt.
type RetryPolicy struct {
	MaxAttempts    int
	Delay          time.Duration
	Multiplier     float64
	AttemptTimeout time.Duration
}

// Retry calls fn up to maxAttempts times with exponential backoff starting at
// baseDelay. It returns nil on the first successful call, or the last error
// if all attempts fail. The function respects context cancellation between
// retries.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	return RetryWith(ctx, RetryPolicy{MaxAttempts: maxAttempts, Delay: baseDelay, Multiplier: 2},
		func(context.Context, int) error { return fn() }, nil)
}

// RetryWith runs fn under policy. fn receives a context bounded by
// AttemptTimeout and the 1-based attempt number. onFail, if non-nil, is
// invoked after every failed attempt. The last error is returned when every
// attempt fails; a cancelled parent context stops the loop early.
func RetryWith(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context, attempt int) error, onFail func(attempt int, err error)) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := policy.Delay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = runAttempt(ctx, policy.AttemptTimeout, attempt, fn)
		if err == nil {
			return nil
		}
		if onFail != nil {
			onFail(attempt, err)
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return err
		}

		// Don't sleep after the last failed attempt.
		if attempt < attempts && delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return err
			case <-t.C:
			}
			if policy.Multiplier > 1 {
				delay = time.Duration(float64(delay) * policy.Multiplier)
			}
		}
	}
	return err
}

func runAttempt(ctx context.Context, timeout time.Duration, attempt int, fn func(context.Context, int) error) error {
	if timeout <= 0 {
		return fn(ctx, attempt)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(actx, attempt)
}

// Permanent marks err as not worth retrying; RetryWith returns the unwrapped
// error immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }
