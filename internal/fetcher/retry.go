package fetcher

import (
	"math/rand"
	"time"
)

// RetryPolicy is the backoff schedule applied to transient failures.
//
// Design decision: we keep the policy as a standalone value rather than
// fields on the Fetcher so that tests can exercise the schedule in
// isolation and so there is exactly one place where backoff arithmetic
// lives.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Each subsequent
	// retry doubles it.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration

	// Jitter adds up to 10% random extra delay to avoid retry
	// storms when many workers back off at once. Disabled in tests
	// for determinism.
	Jitter bool
}

// DefaultRetryPolicy returns the retry schedule used by the scan
// pipeline: three attempts, 500ms base, 8s cap, jitter on.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Jitter:      true,
	}
}

// Delay returns the backoff delay before the given retry attempt.
// Attempt 0 is the first retry (after the initial failure).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter && delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay)/10 + 1))
	}
	return delay
}

// retryableStatus reports whether an HTTP status code warrants a retry.
// 429 signals rate limiting; 5xx signals a server-side fault that may
// clear. All other statuses are final.
func retryableStatus(code int) bool {
	return code == 429 || (code >= 500 && code <= 599)
}
