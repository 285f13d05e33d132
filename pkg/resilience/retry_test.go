package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsWithoutRetrying(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultRetryConfig(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestRetry_RetryIfFalseStopsImmediately(t *testing.T) {
	boom := errors.New("no retry")
	calls := 0
	cfg := RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		RetryIf:        func(error) bool { return false },
	}
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancelledStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	err := Retry(ctx, cfg, func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestRetryWithCircuitBreaker_OpensAndStopsCallingFn(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", FailureThreshold: 1, Timeout: time.Minute})
	boom := errors.New("boom")
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

	err := RetryWithCircuitBreaker(context.Background(), cb, cfg, func(context.Context) error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "circuit should open after the first failure and short-circuit remaining attempts")
	assert.Equal(t, StateOpen, cb.State())
}

func TestExponentialBackoff_CapsAtMax(t *testing.T) {
	d := ExponentialBackoff(10, time.Millisecond, 50*time.Millisecond, 0)
	assert.Equal(t, 50*time.Millisecond, d)
}

func TestExponentialBackoff_GrowsWithAttempt(t *testing.T) {
	d0 := ExponentialBackoff(0, 10*time.Millisecond, time.Second, 0)
	d1 := ExponentialBackoff(1, 10*time.Millisecond, time.Second, 0)
	assert.Equal(t, 10*time.Millisecond, d0)
	assert.Equal(t, 20*time.Millisecond, d1)
}

func TestWithTimeout_PropagatesDeadlineExceeded(t *testing.T) {
	fn := WithTimeout(5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	err := fn(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
