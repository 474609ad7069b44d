// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrExhausted is returned when every attempt failed with a retryable error.
// The last failure is wrapped alongside it.
var ErrExhausted = errors.New("retries exhausted")

// Policy configures Do.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	Delay       time.Duration
	// Retryable reports whether a failed attempt may be repeated. A nil
	// Retryable retries every error.
	Retryable func(error) bool
	// OnRetry is called after a failed attempt that will be repeated.
	OnRetry func(attempt int, err error, next time.Duration)
}

// Do calls op until it succeeds, returns a non-retryable error, the context
// ends or MaxAttempts is reached. Non-retryable errors are returned as is.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = func(error) bool { return true }
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		res, err := op(ctx)
		if err != nil && !retryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithMaxElapsedTime(0),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, next time.Duration) {
			p.OnRetry(attempt, err, next)
		}))
	}

	res, err := backoff.Retry(ctx, operation, opts...)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	// backoff checks MaxTries before unwrapping, so a permanent error on
	// the last attempt still carries the wrapper.
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	if retryable(err) && attempt >= maxAttempts {
		return res, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
	}
	return res, err
}
