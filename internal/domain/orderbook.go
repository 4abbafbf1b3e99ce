package domain

import "github.com/shopspring/decimal"

// Level is one price level of an orderbook side.
type Level struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// OrderBook is a point-in-time depth snapshot fetched from the exchange.
// Bids are sorted best (highest) first, asks best (lowest) first.
type OrderBook struct {
	Symbol         string
	Bids           []Level
	Asks           []Level
	TimestampUnixM int64
}

// Spread returns best ask minus best bid, or zero when either side is empty.
func (b *OrderBook) Spread() decimal.Decimal {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return decimal.Zero
	}
	return b.Asks[0].Price.Sub(b.Bids[0].Price)
}

// MidPrice returns the midpoint of best bid and best ask, or zero when
// either side is empty.
func (b *OrderBook) MidPrice() decimal.Decimal {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return decimal.Zero
	}
	return b.Bids[0].Price.Add(b.Asks[0].Price).Div(decimal.NewFromInt(2))
}
