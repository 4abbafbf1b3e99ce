package execution

import (
	"context"
	"testing"

	"pulse_exec/internal/domain"
)

func TestPaperGateway_PlaceAndCancel(t *testing.T) {
	gw := NewPaperGateway(50000)
	ctx := context.Background()

	result := gw.PlaceOrder(ctx, domain.OrderRequest{
		Symbol: "BTC-PERPETUAL",
		Side:   domain.SideBuy,
		Price:  49000,
		Amount: 10,
		Type:   domain.TypeLimit,
	})
	if !result.Success {
		t.Fatalf("PlaceOrder failed: %s", result.ErrorMessage)
	}
	if result.ExchangeOrderID == "" {
		t.Fatal("missing exchange order id")
	}
	if gw.RestingOrders() != 1 {
		t.Errorf("resting = %d, want 1", gw.RestingOrders())
	}

	cancel := gw.CancelOrder(ctx, result.ExchangeOrderID)
	if !cancel.Success {
		t.Fatalf("CancelOrder failed: %s", cancel.ErrorMessage)
	}
	if gw.RestingOrders() != 0 {
		t.Errorf("resting = %d after cancel, want 0", gw.RestingOrders())
	}

	// Canceling twice fails: the order is gone.
	if gw.CancelOrder(ctx, result.ExchangeOrderID).Success {
		t.Error("second cancel should fail")
	}
}

func TestPaperGateway_RejectsNonPositiveAmount(t *testing.T) {
	gw := NewPaperGateway(50000)

	result := gw.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTC-PERPETUAL",
		Side:   domain.SideBuy,
		Type:   domain.TypeLimit,
	})
	if result.Success {
		t.Fatal("zero amount should be rejected")
	}
}

func TestPaperGateway_MarketFillsImmediately(t *testing.T) {
	gw := NewPaperGateway(50000)
	ctx := context.Background()

	result := gw.PlaceOrder(ctx, domain.OrderRequest{
		Symbol: "BTC-PERPETUAL",
		Side:   domain.SideSell,
		Amount: 5,
		Type:   domain.TypeMarket,
	})
	if !result.Success {
		t.Fatalf("PlaceOrder failed: %s", result.ErrorMessage)
	}
	if gw.RestingOrders() != 0 {
		t.Error("market order should not rest")
	}

	// Filled orders cannot be canceled or modified.
	if gw.CancelOrder(ctx, result.ExchangeOrderID).Success {
		t.Error("cancel of filled order should fail")
	}
	if gw.ModifyOrder(ctx, result.ExchangeOrderID, 51000, 5).Success {
		t.Error("modify of filled order should fail")
	}
}

func TestPaperGateway_ModifyOrder(t *testing.T) {
	gw := NewPaperGateway(50000)
	ctx := context.Background()

	result := gw.PlaceOrder(ctx, domain.OrderRequest{
		Symbol: "BTC-PERPETUAL",
		Side:   domain.SideBuy,
		Price:  49000,
		Amount: 10,
		Type:   domain.TypeLimit,
	})
	if !gw.ModifyOrder(ctx, result.ExchangeOrderID, 49500, 8).Success {
		t.Error("modify of resting order should succeed")
	}
	if gw.ModifyOrder(ctx, "PAPER_404", 1, 1).Success {
		t.Error("modify of unknown order should fail")
	}
}

func TestPaperGateway_OrderBook(t *testing.T) {
	gw := NewPaperGateway(50000)

	book, err := gw.GetOrderBook(context.Background(), "BTC-PERPETUAL")
	if err != nil {
		t.Fatalf("GetOrderBook failed: %v", err)
	}
	if len(book.Bids) != 5 || len(book.Asks) != 5 {
		t.Fatalf("levels: bids=%d asks=%d, want 5/5", len(book.Bids), len(book.Asks))
	}

	// Best bid below the mark, best ask above, positive spread.
	if !book.Bids[0].Price.LessThan(book.Asks[0].Price) {
		t.Error("best bid should be below best ask")
	}
	if !book.Spread().IsPositive() {
		t.Errorf("spread = %s, want positive", book.Spread())
	}
	if book.MidPrice().String() != "50000" {
		t.Errorf("mid = %s, want 50000", book.MidPrice())
	}
}
