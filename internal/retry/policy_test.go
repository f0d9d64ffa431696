package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	var reports []Attempt
	p := Policy{MaxRetries: 2, Delay: time.Millisecond, OnAttempt: func(a Attempt) { reports = append(reports, a) }}

	v, n, err := Do(context.Background(), p, func(ctx context.Context, attempt int) (string, error) {
		if attempt < 3 {
			return "", errFlaky
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, n)

	require.Len(t, reports, 3)
	assert.True(t, reports[0].WillRetry)
	assert.True(t, reports[1].WillRetry)
	assert.NoError(t, reports[2].Err)
	assert.Equal(t, 3, reports[2].Max)
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	var calls int32
	var last Attempt
	p := Policy{MaxRetries: 2, Delay: time.Millisecond, OnAttempt: func(a Attempt) { last = a }}

	_, n, err := Do(context.Background(), p, func(ctx context.Context, attempt int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.False(t, last.WillRetry)
}

func TestDoDoesNotRetryFatal(t *testing.T) {
	fatal := errors.New("auth")
	var calls int
	p := Policy{
		MaxRetries: 5,
		Retryable:  func(err error) bool { return !errors.Is(err, fatal) },
	}
	_, n, err := Do(context.Background(), p, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, fatal
	})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, calls)
}

func TestDoAttemptTimeoutCancelsCall(t *testing.T) {
	var calls int32
	p := Policy{MaxRetries: 2, Delay: time.Millisecond, AttemptTimeout: 20 * time.Millisecond}

	start := time.Now()
	_, n, err := Do(context.Background(), p, func(ctx context.Context, attempt int) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDoStopsWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	p := Policy{MaxRetries: 10, Delay: 50 * time.Millisecond}

	_, _, err := Do(ctx, p, func(ctx context.Context, attempt int) (int, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			cancel()
		}
		return 0, errFlaky
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMaxAttempts(t *testing.T) {
	assert.Equal(t, 1, Policy{}.MaxAttempts())
	assert.Equal(t, 3, Policy{MaxRetries: 2}.MaxAttempts())
	assert.Equal(t, 1, Policy{MaxRetries: -4}.MaxAttempts())
}
