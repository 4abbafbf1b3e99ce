package infra

import (
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{-1, 100 * time.Millisecond},
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{6, 6400 * time.Millisecond},
		{7, 10 * time.Second},   // capped
		{100, 10 * time.Second}, // still capped, no overflow
	}

	for _, tt := range tests {
		if got := CalculateBackoff(tt.retryCount); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %s, want %s", tt.retryCount, got, tt.want)
		}
	}
}

func TestCalculateBackoffWithJitter(t *testing.T) {
	// Jitter is ±25% around the deterministic value.
	for retry := 0; retry < 5; retry++ {
		base := CalculateBackoff(retry)
		lo := base - base/4
		hi := base + base/4

		for i := 0; i < 20; i++ {
			got := CalculateBackoffWithJitter(retry)
			if got < lo || got > hi {
				t.Errorf("CalculateBackoffWithJitter(%d) = %s, want within [%s, %s]",
					retry, got, lo, hi)
			}
		}
	}
}
