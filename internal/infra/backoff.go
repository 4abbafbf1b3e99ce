package infra

import (
	"math/rand"
	"time"
)

const (
	// Standard backoff constants for exchange REST retries
	baseDelay = 100 * time.Millisecond
	maxDelay  = 10 * time.Second
)

// CalculateBackoff returns the exponential backoff duration for a given
// retry count: baseDelay * 2^retryCount, capped at maxDelay.
// If retryCount is negative, it returns baseDelay.
func CalculateBackoff(retryCount int) time.Duration {
	if retryCount < 0 {
		return baseDelay
	}

	// 2^30 already exceeds any sane delay; cap early to avoid overflow.
	if retryCount > 30 {
		return maxDelay
	}

	backoff := baseDelay * time.Duration(1<<retryCount)

	if backoff > maxDelay {
		return maxDelay
	}

	return backoff
}

// CalculateBackoffWithJitter adds ±25% random jitter to the exponential
// backoff, spreading retries from concurrent callers.
func CalculateBackoffWithJitter(retryCount int) time.Duration {
	backoff := CalculateBackoff(retryCount)
	jitter := time.Duration(rand.Int63n(int64(backoff)/2+1)) - backoff/4
	return backoff + jitter
}
