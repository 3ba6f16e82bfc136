package verify

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrUpstream marks a chain query that failed on every attempt.
var ErrUpstream = errors.New("upstream query failed")

// Default retry configuration.
const (
	DefaultMaxAttempts = 10
	DefaultMinFactor   = 1
	DefaultMaxFactor   = 5
	DefaultRetryUnit   = time.Second
)

// RetryPolicy sleeps attempt * uniform[MinFactor, MaxFactor] units between attempts.
type RetryPolicy struct {
	MaxAttempts int
	MinFactor   int
	MaxFactor   int
	Unit        time.Duration

	// IntN returns a uniform integer in [0, n). Defaults to math/rand/v2.
	IntN func(n int) int
}

// DefaultRetryPolicy returns the production policy: 10 attempts, 1-5 second factor.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		MinFactor:   DefaultMinFactor,
		MaxFactor:   DefaultMaxFactor,
		Unit:        DefaultRetryUnit,
	}
}

// Delay returns the sleep after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	lo, hi := p.MinFactor, p.MaxFactor
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	intN := p.IntN
	if intN == nil {
		intN = rand.IntN
	}
	factor := lo + intN(hi-lo+1)
	return time.Duration(attempt*factor) * p.Unit
}

// attemptBackOff implements backoff.BackOff with the linear-random schedule.
type attemptBackOff struct {
	policy  RetryPolicy
	attempt int
}

func (b *attemptBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.policy.Delay(b.attempt)
}

func (b *attemptBackOff) Reset() {
	b.attempt = 0
}

// RetryNotify is called after each failed attempt that will be retried.
type RetryNotify func(attempt int, err error, next time.Duration)

// Retry runs op until it succeeds, the policy is exhausted or ctx is done.
// Exhaustion is reported as ErrUpstream wrapping the last failure.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error), notify RetryNotify) (T, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempts := 0
	res, err := backoff.Retry(ctx,
		func() (T, error) {
			attempts++
			return op(ctx)
		},
		backoff.WithBackOff(&attemptBackOff{policy: p}),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			if notify != nil {
				notify(attempts, err, next)
			}
		}),
	)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	return res, fmt.Errorf("%w after %d attempts: %w", ErrUpstream, attempts, err)
}
