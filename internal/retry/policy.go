// Package retry wraps exponential backoff behind an explicit policy object so
// every provider call site shares the same bounded retry behavior.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds how provider calls are retried. The zero value retries
// nothing; use Default for the standard settings.
type Policy struct {
	MaxAttempts     uint64 // Total attempts including the first; 0 means unbounded within MaxElapsed
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// Default returns the retry settings used for all OpenAI calls:
// up to 5 attempts, 500ms initial backoff, 10s cap, 30s total.
func Default() Policy {
	return Policy{
		MaxAttempts:     5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxElapsed:      30 * time.Second,
	}
}

// Do runs op until it succeeds, returns a permanent error, or the policy is
// exhausted. The context cancels waiting between attempts.
func (p Policy) Do(ctx context.Context, op backoff.Operation) error {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = p.MaxElapsed

	var bo backoff.BackOff = backoff.WithContext(b, ctx)
	if p.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(bo, p.MaxAttempts-1)
	}
	return backoff.Retry(op, bo)
}

// Permanent marks err as non-retryable for Do.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
