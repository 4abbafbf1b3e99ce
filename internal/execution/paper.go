package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pulse_exec/internal/domain"

	"github.com/shopspring/decimal"
)

// paperOrder is a simulated resting order on the venue side.
type paperOrder struct {
	req    domain.OrderRequest
	price  float64
	amount float64
	filled bool
}

// PaperGateway simulates an exchange that acknowledges every order
// immediately. MARKET orders fill on arrival; LIMIT orders rest until
// canceled. Useful for demos and for exercising the full workflow
// without touching the real venue.
type PaperGateway struct {
	mu        sync.Mutex
	orders    map[string]*paperOrder // keyed by exchange order id
	counter   uint64
	markPrice decimal.Decimal // synthetic reference price for orderbooks
}

// NewPaperGateway creates a paper venue with the given reference price
// used to synthesize orderbook snapshots.
func NewPaperGateway(markPrice float64) *PaperGateway {
	return &PaperGateway{
		orders:    make(map[string]*paperOrder),
		markPrice: decimal.NewFromFloat(markPrice),
	}
}

func (p *PaperGateway) PlaceOrder(ctx context.Context, req domain.OrderRequest) domain.ExecutionResult {
	if req.Amount <= 0 {
		return domain.ExecutionResult{ErrorMessage: "amount must be positive"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.counter++
	exchangeOrderID := fmt.Sprintf("PAPER_%d", p.counter)
	p.orders[exchangeOrderID] = &paperOrder{
		req:    req,
		price:  req.Price,
		amount: req.Amount,
		filled: req.Type == domain.TypeMarket,
	}

	return domain.ExecutionResult{Success: true, ExchangeOrderID: exchangeOrderID}
}

func (p *PaperGateway) CancelOrder(ctx context.Context, exchangeOrderID string) domain.ExecutionResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[exchangeOrderID]
	if !ok {
		return domain.ExecutionResult{ErrorMessage: fmt.Sprintf("order not found: %s", exchangeOrderID)}
	}
	if order.filled {
		return domain.ExecutionResult{ErrorMessage: fmt.Sprintf("cannot cancel filled order: %s", exchangeOrderID)}
	}

	delete(p.orders, exchangeOrderID)
	return domain.ExecutionResult{Success: true, ExchangeOrderID: exchangeOrderID}
}

func (p *PaperGateway) ModifyOrder(ctx context.Context, exchangeOrderID string, price, amount float64) domain.ExecutionResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[exchangeOrderID]
	if !ok {
		return domain.ExecutionResult{ErrorMessage: fmt.Sprintf("order not found: %s", exchangeOrderID)}
	}
	if order.filled {
		return domain.ExecutionResult{ErrorMessage: fmt.Sprintf("cannot modify filled order: %s", exchangeOrderID)}
	}

	order.price = price
	order.amount = amount
	return domain.ExecutionResult{Success: true, ExchangeOrderID: exchangeOrderID}
}

// GetOrderBook synthesizes a 5-level book around the mark price with a
// fixed 0.05% tick between levels.
func (p *PaperGateway) GetOrderBook(ctx context.Context, symbol string) (domain.OrderBook, error) {
	p.mu.Lock()
	mark := p.markPrice
	p.mu.Unlock()

	tick := mark.Mul(decimal.NewFromFloat(0.0005))
	amount := decimal.NewFromInt(10)

	book := domain.OrderBook{
		Symbol:         symbol,
		TimestampUnixM: time.Now().UnixMicro(),
	}
	for i := 1; i <= 5; i++ {
		offset := tick.Mul(decimal.NewFromInt(int64(i)))
		book.Bids = append(book.Bids, domain.Level{Price: mark.Sub(offset), Amount: amount})
		book.Asks = append(book.Asks, domain.Level{Price: mark.Add(offset), Amount: amount})
	}
	return book, nil
}

// SetMarkPrice updates the synthetic reference price.
func (p *PaperGateway) SetMarkPrice(price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markPrice = decimal.NewFromFloat(price)
}

// RestingOrders returns the number of unfilled simulated orders.
func (p *PaperGateway) RestingOrders() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, order := range p.orders {
		if !order.filled {
			n++
		}
	}
	return n
}
