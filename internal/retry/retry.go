// Package retry runs an operation a bounded number of times while it keeps
// failing with a retryable error.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	// Retryable decides whether err warrants another attempt.
	Retryable func(err error) bool
	// OnRetry is called before sleeping, with the attempt that just failed.
	OnRetry func(attempt int, err error)
}

// linearBackOff waits step, 2×step, 3×step, ...
type linearBackOff struct {
	step time.Duration
	n    int64
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.step * time.Duration(b.n)
}

func (b *linearBackOff) Reset() { b.n = 0 }

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The last error from fn is returned unchanged, also
// when ctx ends during a backoff.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: p.Backoff}, uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	var lastErr error
	op := func() (T, error) {
		attempt++
		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if p.Retryable == nil || !p.Retryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}

	notify := func(err error, _ time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
	}

	result, err := backoff.RetryNotifyWithData(op, b, notify)
	if err != nil {
		var zero T
		return zero, lastErr
	}
	return result, nil
}
