// Package retry runs an operation under a bounded retry policy with a per-attempt deadline.
package retry

import (
	"context"
	"errors"
	"time"

	retrygo "github.com/avast/retry-go/v4"
)

// Attempt describes the outcome of one try, reported before the policy moves on.
type Attempt struct {
	Number    int
	Max       int
	Err       error // nil on success
	Elapsed   time.Duration
	WillRetry bool
}

// Policy bounds an operation: at most MaxRetries+1 attempts, each under AttemptTimeout,
// separated by a fixed Delay. Only errors accepted by Retryable are retried.
type Policy struct {
	MaxRetries     int
	Delay          time.Duration
	AttemptTimeout time.Duration
	Retryable      func(error) bool
	OnAttempt      func(Attempt)
}

// MaxAttempts is the total number of tries the policy allows.
func (p Policy) MaxAttempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts are used up,
// or ctx is done. It returns the value, the number of attempts made and the last error.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, int, error) {
	var (
		zero     T
		attempts int
		lastErr  error
	)
	limit := p.MaxAttempts()

	val, err := retrygo.DoWithData(
		func() (T, error) {
			attempts++
			n := attempts

			actx, cancel := ctx, context.CancelFunc(func() {})
			if p.AttemptTimeout > 0 {
				actx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
			}
			start := time.Now()
			v, err := fn(actx, n)
			cancel()

			a := Attempt{Number: n, Max: limit, Err: err, Elapsed: time.Since(start)}
			if err == nil {
				p.report(a)
				return v, nil
			}

			lastErr = err
			retry := ctx.Err() == nil && p.retryable(err)
			a.WillRetry = retry && n < limit
			p.report(a)
			if !retry {
				return zero, retrygo.Unrecoverable(err)
			}
			return zero, err
		},
		retrygo.Context(ctx),
		retrygo.Attempts(uint(limit)),
		retrygo.Delay(p.Delay),
		retrygo.DelayType(retrygo.FixedDelay),
		retrygo.LastErrorOnly(true),
	)
	if err != nil {
		if ctx.Err() != nil && lastErr != nil && !errors.Is(lastErr, ctx.Err()) {
			err = errors.Join(ctx.Err(), lastErr)
		} else if lastErr != nil && ctx.Err() == nil {
			err = lastErr
		}
		return zero, attempts, err
	}
	return val, attempts, nil
}

func (p Policy) report(a Attempt) {
	if p.OnAttempt != nil {
		p.OnAttempt(a)
	}
}
