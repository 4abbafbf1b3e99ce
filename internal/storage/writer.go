package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"pulse_exec/internal/domain"

	_ "github.com/glebarez/go-sqlite"
)

// DefaultQueueCapacity bounds the write queue when the config does not
// say otherwise.
const DefaultQueueCapacity = 10000

// OrderWriter persists order snapshots to SQLite through a bounded queue
// drained by a single writer goroutine. Enqueue never blocks: a full
// queue drops the snapshot and bumps a counter. The in-memory registry
// stays authoritative regardless of persistence lag.
type OrderWriter struct {
	db      *sql.DB
	queue   chan domain.Order
	dropped atomic.Uint64
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrderWriter opens (or creates) the SQLite database at dbPath with
// WAL mode enabled and prepares the schema.
func NewOrderWriter(dbPath string, queueCapacity int) (*OrderWriter, error) {
	if queueCapacity <= 0 {
		queueCapacity = DefaultQueueCapacity
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			client_order_id TEXT PRIMARY KEY,
			exchange_order_id TEXT,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			price REAL NOT NULL,
			amount REAL NOT NULL,
			order_type TEXT NOT NULL,
			state TEXT NOT NULL,
			filled_amount REAL DEFAULT 0.0,
			created_unix_us INTEGER NOT NULL,
			updated_unix_us INTEGER NOT NULL,
			error_message TEXT
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create orders table: %w", err)
	}

	return &OrderWriter{
		db:    db,
		queue: make(chan domain.Order, queueCapacity),
	}, nil
}

// Start launches the writer goroutine. Calling Start twice is a no-op.
func (w *OrderWriter) Start(ctx context.Context) {
	if w.running.Swap(true) {
		return
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.writeLoop(ctx)
}

// Stop drains the queue, stops the writer goroutine, and closes the
// database. Safe to call more than once.
func (w *OrderWriter) Stop() {
	if !w.running.Swap(false) {
		return
	}

	w.cancel()
	w.wg.Wait()
	w.db.Close()
}

// Enqueue hands an order snapshot to the writer. It reports false when
// the queue is full or the writer is stopped; the snapshot is dropped
// either way.
func (w *OrderWriter) Enqueue(order domain.Order) bool {
	if !w.running.Load() {
		w.dropped.Add(1)
		return false
	}

	select {
	case w.queue <- order:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Dropped returns the number of snapshots rejected so far.
func (w *OrderWriter) Dropped() uint64 {
	return w.dropped.Load()
}

func (w *OrderWriter) writeLoop(ctx context.Context) {
	defer w.wg.Done()

	slog.Info("Order writer started")

	for {
		select {
		case <-ctx.Done():
			w.drain()
			slog.Info("Order writer stopped", slog.Uint64("dropped", w.dropped.Load()))
			return
		case order := <-w.queue:
			if err := w.writeOrder(order); err != nil {
				slog.Error("Order write failed",
					slog.String("client_order_id", order.ClientOrderID),
					slog.Any("error", err))
			}
		}
	}
}

// drain flushes whatever is still queued at shutdown.
func (w *OrderWriter) drain() {
	for {
		select {
		case order := <-w.queue:
			if err := w.writeOrder(order); err != nil {
				slog.Error("Order write failed during drain",
					slog.String("client_order_id", order.ClientOrderID),
					slog.Any("error", err))
			}
		default:
			return
		}
	}
}

// writeOrder upserts one snapshot. Later snapshots of the same order
// replace earlier ones, so the table always holds the newest state seen.
func (w *OrderWriter) writeOrder(order domain.Order) error {
	_, err := w.db.Exec(`
		INSERT OR REPLACE INTO orders
		(client_order_id, exchange_order_id, symbol, side, price, amount, order_type,
		 state, filled_amount, created_unix_us, updated_unix_us, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		order.ClientOrderID,
		order.ExchangeOrderID,
		order.Request.Symbol,
		string(order.Request.Side),
		order.Request.Price,
		order.Request.Amount,
		string(order.Request.Type),
		string(order.State),
		order.FilledAmount,
		order.CreatedUnixM,
		order.UpdatedUnixM,
		order.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert order: %w", err)
	}
	return nil
}

// ReadOrder loads one persisted snapshot, mainly for inspection and tests.
func (w *OrderWriter) ReadOrder(ctx context.Context, clientOrderID string) (domain.Order, error) {
	var (
		order     domain.Order
		side      string
		orderType string
		state     string
	)
	err := w.db.QueryRowContext(ctx, `
		SELECT client_order_id, exchange_order_id, symbol, side, price, amount,
		       order_type, state, filled_amount, created_unix_us, updated_unix_us, error_message
		FROM orders WHERE client_order_id = ?`, clientOrderID).Scan(
		&order.ClientOrderID,
		&order.ExchangeOrderID,
		&order.Request.Symbol,
		&side,
		&order.Request.Price,
		&order.Request.Amount,
		&orderType,
		&state,
		&order.FilledAmount,
		&order.CreatedUnixM,
		&order.UpdatedUnixM,
		&order.ErrorMessage,
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to read order %s: %w", clientOrderID, err)
	}
	order.Request.ClientOrderID = order.ClientOrderID
	order.Request.Side = domain.Side(side)
	order.Request.Type = domain.OrderType(orderType)
	order.State = domain.OrderState(state)
	return order, nil
}
