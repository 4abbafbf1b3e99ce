package infra

import (
	"testing"
	"time"
)

func TestRateLimiter_TryAcquire(t *testing.T) {
	// 2 tokens, 10/second refill
	rl := NewRateLimiter(2, 10)

	if !rl.TryAcquire() {
		t.Error("expected first TryAcquire to succeed")
	}
	if !rl.TryAcquire() {
		t.Error("expected second TryAcquire to succeed")
	}

	// Bucket empty
	if rl.TryAcquire() {
		t.Error("expected third TryAcquire to fail")
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	// 1 token, 10/second refill
	rl := NewRateLimiter(1, 10)

	if !rl.TryAcquire() {
		t.Error("expected first TryAcquire to succeed")
	}
	if rl.TryAcquire() {
		t.Error("expected immediate TryAcquire to fail")
	}

	// 100ms = 1 token at 10/s
	time.Sleep(120 * time.Millisecond)

	if !rl.TryAcquire() {
		t.Error("expected TryAcquire to succeed after refill")
	}
}

func TestRateLimiter_Wait(t *testing.T) {
	// 1 token, 100/second refill (fast for testing)
	rl := NewRateLimiter(1, 100)

	rl.Wait()

	// Second Wait should block ~10ms
	start := time.Now()
	rl.Wait()
	elapsed := time.Since(start)

	if elapsed < 5*time.Millisecond {
		t.Errorf("expected Wait to block, but elapsed=%v", elapsed)
	}
}

func TestDeribitLimiters_Initialized(t *testing.T) {
	private := GetDeribitPrivateLimiter()
	public := GetDeribitPublicLimiter()

	if private == nil {
		t.Error("private limiter is nil")
	}
	if public == nil {
		t.Error("public limiter is nil")
	}
	if private == public {
		t.Error("private and public limiters should be different instances")
	}
}
