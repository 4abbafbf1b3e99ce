package deribit

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func countingFetch(fetches *int, ttl time.Duration) func(context.Context) (string, time.Duration, error) {
	return func(ctx context.Context) (string, time.Duration, error) {
		*fetches++
		return fmt.Sprintf("tok%d", *fetches), ttl, nil
	}
}

func TestTokenCache_CachesUntilInvalidated(t *testing.T) {
	var cache tokenCache
	var fetches int
	fetch := countingFetch(&fetches, time.Hour)
	ctx := context.Background()

	tok, err := cache.get(ctx, fetch)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if tok != "tok1" {
		t.Errorf("token = %q, want tok1", tok)
	}

	tok, _ = cache.get(ctx, fetch)
	if tok != "tok1" || fetches != 1 {
		t.Errorf("second get refetched: token=%q fetches=%d", tok, fetches)
	}

	cache.invalidate()

	tok, _ = cache.get(ctx, fetch)
	if tok != "tok2" || fetches != 2 {
		t.Errorf("get after invalidate did not refetch: token=%q fetches=%d", tok, fetches)
	}
}

func TestTokenCache_RefetchesNearExpiry(t *testing.T) {
	var cache tokenCache
	var fetches int
	// TTL inside the 30s safety margin: never considered fresh.
	fetch := countingFetch(&fetches, 10*time.Second)
	ctx := context.Background()

	cache.get(ctx, fetch)
	cache.get(ctx, fetch)

	if fetches != 2 {
		t.Errorf("fetches = %d, want 2 (short-lived token must refetch)", fetches)
	}
}

func TestTokenCache_FetchError(t *testing.T) {
	var cache tokenCache
	wantErr := fmt.Errorf("venue down")
	fetch := func(ctx context.Context) (string, time.Duration, error) {
		return "", 0, wantErr
	}

	if _, err := cache.get(context.Background(), fetch); err != wantErr {
		t.Errorf("get error = %v, want %v", err, wantErr)
	}
}
