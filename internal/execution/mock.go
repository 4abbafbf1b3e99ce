package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"pulse_exec/internal/domain"
)

// MockGateway is a safe implementation that only logs calls and
// acknowledges everything.
type MockGateway struct {
	counter atomic.Uint64
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) PlaceOrder(ctx context.Context, req domain.OrderRequest) domain.ExecutionResult {
	exchangeOrderID := fmt.Sprintf("MOCK_%d", m.counter.Add(1))
	slog.Info("MOCK GATEWAY: Place Order",
		slog.String("client_order_id", req.ClientOrderID),
		slog.String("symbol", req.Symbol),
		slog.String("side", string(req.Side)),
		slog.Float64("price", req.Price),
		slog.Float64("amount", req.Amount),
	)
	return domain.ExecutionResult{Success: true, ExchangeOrderID: exchangeOrderID}
}

func (m *MockGateway) CancelOrder(ctx context.Context, exchangeOrderID string) domain.ExecutionResult {
	slog.Info("MOCK GATEWAY: Cancel Order", slog.String("exchange_order_id", exchangeOrderID))
	return domain.ExecutionResult{Success: true, ExchangeOrderID: exchangeOrderID}
}

func (m *MockGateway) ModifyOrder(ctx context.Context, exchangeOrderID string, price, amount float64) domain.ExecutionResult {
	slog.Info("MOCK GATEWAY: Modify Order",
		slog.String("exchange_order_id", exchangeOrderID),
		slog.Float64("price", price),
		slog.Float64("amount", amount),
	)
	return domain.ExecutionResult{Success: true, ExchangeOrderID: exchangeOrderID}
}

func (m *MockGateway) GetOrderBook(ctx context.Context, symbol string) (domain.OrderBook, error) {
	slog.Info("MOCK GATEWAY: Get OrderBook", slog.String("symbol", symbol))
	return domain.OrderBook{Symbol: symbol}, nil
}
