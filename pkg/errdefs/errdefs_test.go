package errdefs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorWrappingAndClassification(t *testing.T) {
	cause := errors.New("socket closed")
	err := Wrap(KindExecution, CodeServiceUnavailable, "directory call failed", cause)

	assert.True(t, IsKind(err, KindExecution))
	assert.False(t, IsKind(err, KindStorage))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "directory call failed")
	assert.Contains(t, err.Error(), CodeServiceUnavailable)

	// classification survives another fmt.Errorf wrap
	wrapped := fmt.Errorf("outer: %w", err)
	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeServiceUnavailable, e.Code)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(New(KindValidation, CodeNotFound, "user missing")))
	assert.False(t, IsNotFound(New(KindValidation, CodeDuplicate, "two matches")))
	assert.False(t, IsNotFound(errors.New("plain")))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(New(KindExecution, CodeRateLimited, "throttled")))
	assert.True(t, IsTransient(New(KindNetwork, CodeConnectionTimeout, "timeout")))
	assert.False(t, IsTransient(New(KindValidation, CodeNotFound, "missing")))
	assert.False(t, IsTransient(errors.New("plain")))
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	retries, err := Retry(context.Background(), RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		func() error {
			calls++
			return New(KindValidation, CodeNotFound, "missing")
		})
	require.Error(t, err)
	assert.Equal(t, 0, retries)
	assert.Equal(t, 1, calls)
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	calls := 0
	retries, err := Retry(context.Background(), RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		func() error {
			calls++
			if calls < 3 {
				return New(KindExecution, CodeRateLimited, "throttled")
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 2, retries)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsBudget(t *testing.T) {
	retries, err := Retry(context.Background(), RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		func() error {
			return New(KindExecution, CodeServiceUnavailable, "down")
		})
	require.Error(t, err)
	assert.Equal(t, 2, retries)
}

func TestRetryHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, RetryPolicy{MaxRetries: 5, BaseDelay: time.Minute, MaxDelay: time.Minute},
		func() error {
			return New(KindExecution, CodeRateLimited, "throttled")
		})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelayBackoffIsCapped(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 4 * time.Second}
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 4*time.Second, p.Delay(10))
}

func TestSuggestionFallback(t *testing.T) {
	err := New(Kind("unknown"), "unknown_code", "mystery")
	assert.NotEmpty(t, err.Suggestion())
}
