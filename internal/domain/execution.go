package domain

import "context"

// ExecutionResult is the outcome of one exchange call.
type ExecutionResult struct {
	Success         bool
	ExchangeOrderID string
	ErrorMessage    string
	HTTPStatus      int
}

// Gateway is the contract the workflow layer expects from an execution
// venue. It abstracts away the difference between paper trading, a mock,
// and the live exchange. The order registry never calls this directly;
// workflow code sequences registry calls around it.
type Gateway interface {
	// PlaceOrder submits a new order to the venue.
	PlaceOrder(ctx context.Context, req OrderRequest) ExecutionResult

	// CancelOrder cancels an order by its exchange-assigned id.
	CancelOrder(ctx context.Context, exchangeOrderID string) ExecutionResult

	// ModifyOrder changes price and amount of a resting order.
	ModifyOrder(ctx context.Context, exchangeOrderID string, price, amount float64) ExecutionResult

	// GetOrderBook fetches a depth snapshot for a symbol.
	GetOrderBook(ctx context.Context, symbol string) (OrderBook, error)
}
