package deribit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"pulse_exec/internal/domain"
	"pulse_exec/internal/infra"

	"github.com/shopspring/decimal"
)

const (
	maxRetries = 3
)

// Client is the Deribit REST gateway. Calls to 429/5xx responses are
// retried with exponential backoff and jitter; private endpoints
// authenticate through a cached OAuth token; all calls go through a
// token-bucket rate limiter and a shared circuit breaker.
type Client struct {
	baseURL    string
	accessKey  string
	secretKey  string
	httpClient *http.Client
	auth       tokenCache

	privateLimiter *infra.RateLimiter
	publicLimiter  *infra.RateLimiter
	breaker        *infra.CircuitBreaker
}

// NewClient creates a Deribit REST client from the application config.
func NewClient(cfg *infra.Config) *Client {
	return &Client{
		baseURL:   cfg.API.Deribit.RestURL,
		accessKey: cfg.API.Deribit.AccessKey,
		secretKey: cfg.API.Deribit.SecretKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		privateLimiter: infra.GetDeribitPrivateLimiter(),
		publicLimiter:  infra.GetDeribitPublicLimiter(),
		breaker:        infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("deribit-rest")),
	}
}

// PlaceOrder submits an order via private/buy or private/sell.
// The client order id travels as the Deribit "label" so exchange-side
// events can be correlated back to the registry.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) domain.ExecutionResult {
	params := map[string]any{
		"instrument_name": req.Symbol,
		"amount":          req.Amount,
		"type":            deribitOrderType(req.Type),
	}
	if req.Type == domain.TypeLimit {
		params["price"] = req.Price
	}
	if req.ClientOrderID != "" {
		params["label"] = req.ClientOrderID
	}

	endpoint := "/api/v2/private/buy"
	if req.Side == domain.SideSell {
		endpoint = "/api/v2/private/sell"
	}

	resp, result := c.callPrivate(ctx, endpoint, params)
	if !result.Success {
		return result
	}

	var payload placeOrderResult
	if err := json.Unmarshal(resp, &payload); err != nil {
		result.Success = false
		result.ErrorMessage = fmt.Sprintf("response parse failed: %v", err)
		return result
	}
	if payload.Order.OrderID == "" {
		result.Success = false
		result.ErrorMessage = "response missing order id"
		return result
	}

	result.ExchangeOrderID = payload.Order.OrderID
	return result
}

// CancelOrder cancels a resting order via private/cancel.
func (c *Client) CancelOrder(ctx context.Context, exchangeOrderID string) domain.ExecutionResult {
	_, result := c.callPrivate(ctx, "/api/v2/private/cancel", map[string]any{
		"order_id": exchangeOrderID,
	})
	result.ExchangeOrderID = exchangeOrderID
	return result
}

// ModifyOrder edits price and amount of a resting order via private/edit.
func (c *Client) ModifyOrder(ctx context.Context, exchangeOrderID string, price, amount float64) domain.ExecutionResult {
	_, result := c.callPrivate(ctx, "/api/v2/private/edit", map[string]any{
		"order_id": exchangeOrderID,
		"price":    price,
		"amount":   amount,
	})
	result.ExchangeOrderID = exchangeOrderID
	return result
}

// GetOrderState fetches the venue-side state of an order.
func (c *Client) GetOrderState(ctx context.Context, exchangeOrderID string) (string, float64, error) {
	endpoint := "/api/v2/private/get_order_state?" + url.Values{"order_id": {exchangeOrderID}}.Encode()
	resp, result := c.callPrivateGet(ctx, endpoint)
	if !result.Success {
		return "", 0, fmt.Errorf("get_order_state failed: %s", result.ErrorMessage)
	}

	var payload orderData
	if err := json.Unmarshal(resp, &payload); err != nil {
		return "", 0, fmt.Errorf("order state parse failed: %w", err)
	}
	return payload.OrderState, payload.FilledAmount, nil
}

// GetOrderBook fetches a 10-level depth snapshot via public/get_order_book.
func (c *Client) GetOrderBook(ctx context.Context, symbol string) (domain.OrderBook, error) {
	q := url.Values{}
	q.Set("instrument_name", symbol)
	q.Set("depth", "10")
	endpoint := "/api/v2/public/get_order_book?" + q.Encode()

	c.publicLimiter.Wait()
	resp, result := c.executeWithRetry(ctx, endpoint, http.MethodGet, nil, "")
	if !result.Success {
		return domain.OrderBook{}, fmt.Errorf("get_order_book failed: %s", result.ErrorMessage)
	}

	var payload orderBookResult
	if err := json.Unmarshal(resp, &payload); err != nil {
		return domain.OrderBook{}, fmt.Errorf("orderbook parse failed: %w", err)
	}

	book := domain.OrderBook{
		Symbol:         symbol,
		TimestampUnixM: payload.Timestamp * 1000, // ms -> us
	}
	var err error
	if book.Bids, err = parseLevels(payload.Bids); err != nil {
		return domain.OrderBook{}, fmt.Errorf("bid levels: %w", err)
	}
	if book.Asks, err = parseLevels(payload.Asks); err != nil {
		return domain.OrderBook{}, fmt.Errorf("ask levels: %w", err)
	}
	return book, nil
}

// parseLevels converts [price, amount] number pairs to decimal levels,
// keeping full precision from the wire.
func parseLevels(raw [][]json.Number) ([]domain.Level, error) {
	levels := make([]domain.Level, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		price, err := decimal.NewFromString(pair[0].String())
		if err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(pair[1].String())
		if err != nil {
			return nil, err
		}
		levels = append(levels, domain.Level{Price: price, Amount: amount})
	}
	return levels, nil
}

// callPrivate POSTs a JSON-RPC request to a private endpoint.
func (c *Client) callPrivate(ctx context.Context, endpoint string, params map[string]any) (json.RawMessage, domain.ExecutionResult) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, domain.ExecutionResult{ErrorMessage: fmt.Sprintf("request marshal failed: %v", err)}
	}

	token, err := c.auth.get(ctx, c.fetchToken)
	if err != nil {
		return nil, domain.ExecutionResult{ErrorMessage: fmt.Sprintf("auth failed: %v", err)}
	}

	c.privateLimiter.Wait()
	return c.executeWithRetry(ctx, endpoint, http.MethodPost, body, token)
}

// callPrivateGet GETs a private endpoint (query params in the URL).
func (c *Client) callPrivateGet(ctx context.Context, endpoint string) (json.RawMessage, domain.ExecutionResult) {
	token, err := c.auth.get(ctx, c.fetchToken)
	if err != nil {
		return nil, domain.ExecutionResult{ErrorMessage: fmt.Sprintf("auth failed: %v", err)}
	}

	c.privateLimiter.Wait()
	return c.executeWithRetry(ctx, endpoint, http.MethodGet, nil, token)
}

// executeWithRetry performs the HTTP call, retrying 429 and 5xx responses
// with exponential backoff plus jitter. 4xx responses other than 429 are
// not retried: the request itself is wrong.
func (c *Client) executeWithRetry(ctx context.Context, endpoint, method string, body []byte, token string) (json.RawMessage, domain.ExecutionResult) {
	var result domain.ExecutionResult

	if !c.breaker.Allow() {
		result.ErrorMessage = "circuit breaker open"
		return nil, result
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		raw, status, err := c.do(ctx, endpoint, method, body, token)
		result.HTTPStatus = status

		if err == nil && status == http.StatusUnauthorized {
			// Stale token. Drop it so the next call re-authenticates.
			c.auth.invalidate()
		}

		if err == nil && status >= 200 && status < 300 {
			var envelope rpcResponse
			if jsonErr := json.Unmarshal(raw, &envelope); jsonErr != nil {
				c.breaker.RecordFailure()
				result.ErrorMessage = fmt.Sprintf("response parse failed: %v", jsonErr)
				return nil, result
			}
			if envelope.Error != nil {
				c.breaker.RecordFailure()
				result.ErrorMessage = fmt.Sprintf("%d %s", envelope.Error.Code, envelope.Error.Message)
				return nil, result
			}
			c.breaker.RecordSuccess()
			result.Success = true
			return envelope.Result, result
		}

		if err != nil {
			result.ErrorMessage = err.Error()
		} else {
			result.ErrorMessage = fmt.Sprintf("http status %d", status)
		}

		shouldRetry := (err != nil || status == http.StatusTooManyRequests || status >= 500) && attempt < maxRetries
		if !shouldRetry {
			break
		}

		delay := infra.CalculateBackoffWithJitter(attempt)
		slog.Warn("Deribit request retrying",
			slog.String("endpoint", endpoint),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay))

		select {
		case <-ctx.Done():
			result.ErrorMessage = ctx.Err().Error()
			c.breaker.RecordFailure()
			return nil, result
		case <-time.After(delay):
		}
	}

	c.breaker.RecordFailure()
	return nil, result
}

// do performs a single HTTP round trip.
func (c *Client) do(ctx context.Context, endpoint, method string, body []byte, token string) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

func deribitOrderType(t domain.OrderType) string {
	if t == domain.TypeMarket {
		return "market"
	}
	return "limit"
}
