package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"pulse_exec/internal/domain"
)

func testOrder(clientID string, state domain.OrderState) domain.Order {
	now := time.Now().UnixMicro()
	return domain.Order{
		ClientOrderID: clientID,
		Request: domain.OrderRequest{
			Symbol:        "BTC-PERPETUAL",
			Side:          domain.SideBuy,
			Price:         50000,
			Amount:        10,
			Type:          domain.TypeLimit,
			ClientOrderID: clientID,
		},
		State:        state,
		CreatedUnixM: now,
		UpdatedUnixM: now,
	}
}

func TestOrderWriter_WriteAndRead(t *testing.T) {
	dbPath := "test_orders.db"
	defer os.Remove(dbPath)
	defer os.Remove(dbPath + "-wal")
	defer os.Remove(dbPath + "-shm")

	writer, err := NewOrderWriter(dbPath, 16)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	ctx := context.Background()
	writer.Start(ctx)

	order := testOrder("W1", domain.StatePending)
	order.ErrorMessage = ""
	if !writer.Enqueue(order) {
		t.Fatal("Enqueue rejected with empty queue")
	}

	// Later snapshot of the same order replaces the earlier one.
	updated := order
	updated.State = domain.StateFilled
	updated.FilledAmount = 10
	updated.ExchangeOrderID = "EX1"
	if !writer.Enqueue(updated) {
		t.Fatal("Enqueue rejected second snapshot")
	}

	writer.Stop() // drains the queue

	reader, err := NewOrderWriter(dbPath, 16)
	if err != nil {
		t.Fatalf("Failed to reopen db: %v", err)
	}
	defer reader.Stop()
	reader.Start(ctx)

	got, err := reader.ReadOrder(ctx, "W1")
	if err != nil {
		t.Fatalf("ReadOrder failed: %v", err)
	}
	if got.State != domain.StateFilled {
		t.Errorf("state = %s, want FILLED", got.State)
	}
	if got.FilledAmount != 10 {
		t.Errorf("filled = %v, want 10", got.FilledAmount)
	}
	if got.ExchangeOrderID != "EX1" {
		t.Errorf("exchange id = %q, want EX1", got.ExchangeOrderID)
	}
	if got.Request.Symbol != "BTC-PERPETUAL" || got.Request.Side != domain.SideBuy {
		t.Errorf("request fields lost: %+v", got.Request)
	}
}

func TestOrderWriter_EnqueueWhenStopped(t *testing.T) {
	dbPath := "test_stopped.db"
	defer os.Remove(dbPath)
	defer os.Remove(dbPath + "-wal")
	defer os.Remove(dbPath + "-shm")

	writer, err := NewOrderWriter(dbPath, 4)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	// Never started: every enqueue is a counted drop.
	if writer.Enqueue(testOrder("S1", domain.StatePending)) {
		t.Error("Enqueue should fail before Start")
	}
	if writer.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", writer.Dropped())
	}

	writer.Start(context.Background())
	writer.Stop()

	if writer.Enqueue(testOrder("S2", domain.StatePending)) {
		t.Error("Enqueue should fail after Stop")
	}
	if writer.Dropped() != 2 {
		t.Errorf("Dropped = %d, want 2", writer.Dropped())
	}
}

func TestOrderWriter_DrainOnStop(t *testing.T) {
	dbPath := "test_drain.db"
	defer os.Remove(dbPath)
	defer os.Remove(dbPath + "-wal")
	defer os.Remove(dbPath + "-shm")

	writer, err := NewOrderWriter(dbPath, 64)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	ctx := context.Background()
	writer.Start(ctx)

	for i := 0; i < 50; i++ {
		order := testOrder("D"+string(rune('A'+i%26))+string(rune('A'+i/26)), domain.StateOpen)
		if !writer.Enqueue(order) {
			t.Fatalf("Enqueue %d rejected", i)
		}
	}
	writer.Stop()

	reader, err := NewOrderWriter(dbPath, 16)
	if err != nil {
		t.Fatalf("Failed to reopen db: %v", err)
	}
	defer reader.Stop()
	reader.Start(ctx)

	if _, err := reader.ReadOrder(ctx, "DAA"); err != nil {
		t.Errorf("first queued order not persisted: %v", err)
	}
	if _, err := reader.ReadOrder(ctx, "DXB"); err != nil {
		t.Errorf("last queued order not persisted: %v", err)
	}
}

func TestOrderWriter_StartIdempotent(t *testing.T) {
	dbPath := "test_idem.db"
	defer os.Remove(dbPath)
	defer os.Remove(dbPath + "-wal")
	defer os.Remove(dbPath + "-shm")

	writer, err := NewOrderWriter(dbPath, 4)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	ctx := context.Background()
	writer.Start(ctx)
	writer.Start(ctx) // no-op
	writer.Stop()
	writer.Stop() // no-op
}
