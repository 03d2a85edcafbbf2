package errdefs

import (
	"context"
	"time"
)

// RetryPolicy controls exponential backoff for transient failures
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy matches the executor defaults: base 1s, cap 60s, 2 retries
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   60 * time.Second,
	}
}

// Delay computes the backoff delay before the given attempt (1-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if d > p.MaxDelay || d <= 0 {
		return p.MaxDelay
	}
	return d
}

// IsTransient reports whether err should be retried
func IsTransient(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Code {
	case CodeRateLimited, CodeServiceUnavailable, CodeTimeout,
		CodeConnectionTimeout, CodeRequestTimeout:
		return true
	}
	return false
}

// Retry runs fn with the policy's backoff, stopping on the first
// non-transient error or when the context is cancelled. Returns the number
// of retries performed alongside the final error.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) (int, error) {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) || attempt >= policy.MaxRetries {
			return attempt, err
		}
		select {
		case <-time.After(policy.Delay(attempt + 1)):
		case <-ctx.Done():
			return attempt, ctx.Err()
		}
	}
}
