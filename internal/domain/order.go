package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEnumValue is returned when a side, type, or state string cannot
// be parsed. Parsing is the only boundary where malformed input is fatal to
// the request; everything else in the order core reports via return values.
var ErrInvalidEnumValue = errors.New("invalid enum value")

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType distinguishes limit and market orders.
type OrderType string

const (
	TypeLimit  OrderType = "LIMIT"
	TypeMarket OrderType = "MARKET"
)

// OrderState is the lifecycle state of an order.
//
// PENDING means "known locally, not yet acknowledged by the exchange";
// it is neither active nor terminal.
type OrderState string

const (
	StatePending  OrderState = "PENDING"
	StateOpen     OrderState = "OPEN"
	StatePartial  OrderState = "PARTIAL"
	StateFilled   OrderState = "FILLED"
	StateCanceled OrderState = "CANCELED"
	StateRejected OrderState = "REJECTED"
)

// ParseSide parses a side string case-insensitively.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	default:
		return "", fmt.Errorf("%w: side %q", ErrInvalidEnumValue, s)
	}
}

// ParseOrderType parses an order type string case-insensitively.
func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LIMIT":
		return TypeLimit, nil
	case "MARKET":
		return TypeMarket, nil
	default:
		return "", fmt.Errorf("%w: order type %q", ErrInvalidEnumValue, s)
	}
}

// ParseOrderState parses a state string case-insensitively.
// "CANCELLED" is accepted as an alias for CANCELED.
func ParseOrderState(s string) (OrderState, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING":
		return StatePending, nil
	case "OPEN":
		return StateOpen, nil
	case "PARTIAL":
		return StatePartial, nil
	case "FILLED":
		return StateFilled, nil
	case "CANCELED", "CANCELLED":
		return StateCanceled, nil
	case "REJECTED":
		return StateRejected, nil
	default:
		return "", fmt.Errorf("%w: order state %q", ErrInvalidEnumValue, s)
	}
}

// OrderRequest is the immutable description of desired trade intent.
// Price is meaningful only for LIMIT orders; it may be carried but is
// ignored for MARKET orders. Amount must be > 0.
type OrderRequest struct {
	Symbol        string
	Side          Side
	Price         float64
	Amount        float64
	Type          OrderType
	ClientOrderID string // optional; empty means the registry synthesizes one
}

// Order is the mutable lifecycle record owned by the order registry.
// ClientOrderID is the registry's primary key and immutable once created.
// ExchangeOrderID is write-once: the first non-empty value sticks.
type Order struct {
	ClientOrderID   string
	ExchangeOrderID string
	Request         OrderRequest
	State           OrderState
	FilledAmount    float64
	CreatedUnixM    int64 // Unix microseconds, set once
	UpdatedUnixM    int64 // Unix microseconds, refreshed on every mutation
	ErrorMessage    string
}

// IsTerminal reports whether no further business-meaningful progress is
// expected for the order.
func (o *Order) IsTerminal() bool {
	return o.State == StateFilled || o.State == StateCanceled || o.State == StateRejected
}

// IsActive reports whether the order is currently live at the exchange.
func (o *Order) IsActive() bool {
	return o.State == StateOpen || o.State == StatePartial
}
