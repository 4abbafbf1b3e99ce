package deribit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// tokenCache holds a transient OAuth access token for private endpoints.
// Tokens are refreshed on demand shortly before expiry; the cache carries
// no state worth persisting.
type tokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// get returns the cached access token, fetching a fresh one through
// fetch when the cached token is missing or about to expire.
func (t *tokenCache) get(ctx context.Context, fetch func(context.Context) (string, time.Duration, error)) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// 30s safety margin so a token never expires mid-request.
	if t.token != "" && time.Until(t.expiresAt) > 30*time.Second {
		return t.token, nil
	}

	token, ttl, err := fetch(ctx)
	if err != nil {
		return "", err
	}

	t.token = token
	t.expiresAt = time.Now().Add(ttl)
	return token, nil
}

// invalidate drops the cached token, forcing a refresh on next use.
func (t *tokenCache) invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
}

// fetchToken performs the public/auth client_credentials exchange.
func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	q := url.Values{}
	q.Set("grant_type", "client_credentials")
	q.Set("client_id", c.accessKey)
	q.Set("client_secret", c.secretKey)

	authURL := c.baseURL + "/api/v2/public/auth?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authURL, nil)
	if err != nil {
		return "", 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("auth failed with status %d: %s", resp.StatusCode, body)
	}

	var envelope rpcResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", 0, fmt.Errorf("auth response parse failed: %w", err)
	}
	if envelope.Error != nil {
		return "", 0, fmt.Errorf("auth rejected: %d %s", envelope.Error.Code, envelope.Error.Message)
	}

	var result authResult
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		return "", 0, fmt.Errorf("auth result parse failed: %w", err)
	}
	if result.AccessToken == "" {
		return "", 0, fmt.Errorf("auth response missing access token")
	}

	return result.AccessToken, time.Duration(result.ExpiresIn) * time.Second, nil
}
