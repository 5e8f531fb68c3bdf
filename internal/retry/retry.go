// Package retry wraps collaborator calls with capped exponential backoff.
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy controls backoff for one call site.
type Policy struct {
	Base       time.Duration // First wait; doubles on each retry.
	Cap        time.Duration // Upper bound on a single wait.
	MaxRetries uint64        // Retries after the first attempt.
	Jitter     time.Duration // Random +/- added to each wait.

	// OnRetry, when set, is called before each wait.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy waits 1s, 2s, 4s (capped at 30s) with jitter, for at most
// three retries.
func DefaultPolicy() Policy {
	return Policy{
		Base:       time.Second,
		Cap:        30 * time.Second,
		MaxRetries: 3,
		Jitter:     250 * time.Millisecond,
	}
}

func (p Policy) backoff() goretry.Backoff {
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	b := goretry.NewExponential(base)
	if p.Cap > 0 {
		b = goretry.WithCappedDuration(p.Cap, b)
	}
	if p.Jitter > 0 {
		b = goretry.WithJitter(p.Jitter, b)
	}
	return goretry.WithMaxRetries(p.MaxRetries, b)
}

// Do calls fn until it succeeds, returns an error that retryable rejects, or
// the retry budget is spent. The last error is returned unwrapped.
func Do[T any](ctx context.Context, p Policy, retryable func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	attempt := 0
	return goretry.DoValue(ctx, p.backoff(), func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		attempt++
		if retryable == nil || !retryable(err) {
			return v, err
		}
		if p.OnRetry != nil && uint64(attempt) <= p.MaxRetries {
			p.OnRetry(attempt, err)
		}
		return v, goretry.RetryableError(err)
	})
}
