package deribit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pulse_exec/internal/domain"
	"pulse_exec/internal/engine"
	"pulse_exec/internal/infra"

	"github.com/gorilla/websocket"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsReadTimeout      = 60 * time.Second
	wsPingInterval     = 30 * time.Second
	wsMaxRetries       = 10
)

// OrderUpdater is the slice of the order registry the worker needs to
// apply venue-side events.
type OrderUpdater interface {
	HasOrder(clientOrderID string) bool
	UpdateOrder(clientOrderID string, newState domain.OrderState, opts engine.UpdateOptions) bool
}

// OrdersWorker subscribes to Deribit's user.orders channel over
// websocket and maps each notification onto a registry update. Orders
// are correlated through the label field, which carries the client
// order id set at submission.
type OrdersWorker struct {
	wsURL     string
	accessKey string
	secretKey string
	registry  OrderUpdater

	conn       *websocket.Conn
	mu         sync.RWMutex
	writeMu    sync.Mutex
	connected  bool
	reqID      atomic.Int64
	cancel     context.CancelFunc
	pingCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewOrdersWorker creates a worker that feeds registry from the
// configured Deribit websocket endpoint.
func NewOrdersWorker(cfg *infra.Config, registry OrderUpdater) *OrdersWorker {
	return &OrdersWorker{
		wsURL:     cfg.API.Deribit.WSURL,
		accessKey: cfg.API.Deribit.AccessKey,
		secretKey: cfg.API.Deribit.SecretKey,
		registry:  registry,
	}
}

// Connect starts the websocket connection with automatic reconnection.
func (w *OrdersWorker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.connectionLoop(ctx)

	return nil
}

func (w *OrdersWorker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Deribit orders worker panic recovered", slog.Any("panic", r))
		}
	}()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("Deribit orders connection loop stopped")
			return
		default:
		}

		err := w.connect(ctx)
		if err != nil {
			slog.Warn("Deribit orders connection failed",
				slog.Any("error", err),
				slog.Int("retry", retryCount))

			delay := infra.CalculateBackoffWithJitter(retryCount)
			retryCount++
			if retryCount > wsMaxRetries {
				retryCount = 0
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retryCount = 0
		w.readLoop(ctx)
	}
}

func (w *OrdersWorker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	// The ping loop lives exactly as long as this connection; a
	// reconnect gets its own.
	pingCtx, pingCancel := context.WithCancel(ctx)

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.pingCancel = pingCancel
	w.mu.Unlock()

	if err := w.authenticate(); err != nil {
		w.closeConnection()
		return fmt.Errorf("auth failed: %w", err)
	}

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return fmt.Errorf("subscribe failed: %w", err)
	}

	go w.pingLoop(pingCtx)

	slog.Info("Deribit orders websocket connected")
	return nil
}

func (w *OrdersWorker) authenticate() error {
	return w.send("public/auth", map[string]any{
		"grant_type":    "client_credentials",
		"client_id":     w.accessKey,
		"client_secret": w.secretKey,
	})
}

func (w *OrdersWorker) subscribe() error {
	return w.send("private/subscribe", map[string]any{
		"channels": []string{"user.orders.any.any.raw"},
	})
}

func (w *OrdersWorker) send(method string, params map[string]any) error {
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      w.reqID.Add(1),
		Method:  method,
		Params:  params,
	}
	msg, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return w.threadSafeWrite(websocket.TextMessage, msg)
}

func (w *OrdersWorker) threadSafeWrite(messageType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("connection is nil")
	}

	return conn.WriteMessage(messageType, data)
}

func (w *OrdersWorker) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Deribit orders pingLoop panic recovered", slog.Any("panic", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.send("public/test", nil); err != nil {
				slog.Warn("Deribit orders ping failed", slog.Any("error", err))
			}
		}
	}
}

func (w *OrdersWorker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Deribit orders read error", slog.Any("error", err))
			}
			w.closeConnection()
			return
		}

		w.handleMessage(message)
	}
}

func (w *OrdersWorker) handleMessage(message []byte) {
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err != nil {
		return
	}

	if notif.Method != "subscription" || !strings.HasPrefix(notif.Params.Channel, "user.orders.") {
		return
	}

	var data orderData
	if err := json.Unmarshal(notif.Params.Data, &data); err != nil {
		slog.Warn("Deribit order notification parse failed", slog.Any("error", err))
		return
	}

	w.applyOrderEvent(data)
}

// applyOrderEvent translates one venue notification into a registry
// update. Events for orders this process never created are dropped.
func (w *OrdersWorker) applyOrderEvent(data orderData) {
	if data.Label == "" || !w.registry.HasOrder(data.Label) {
		return
	}

	state, ok := mapOrderState(data.OrderState, data.FilledAmount)
	if !ok {
		slog.Warn("Unknown venue order state",
			slog.String("order_state", data.OrderState),
			slog.String("exchange_order_id", data.OrderID))
		return
	}

	w.registry.UpdateOrder(data.Label, state, engine.UpdateOptions{
		ExchangeOrderID: data.OrderID,
		FilledAmount:    data.FilledAmount,
	})
}

// mapOrderState maps Deribit order_state strings onto lifecycle states.
// An open order with a nonzero fill is PARTIAL.
func mapOrderState(venueState string, filledAmount float64) (domain.OrderState, bool) {
	switch strings.ToLower(venueState) {
	case "open":
		if filledAmount > 0 {
			return domain.StatePartial, true
		}
		return domain.StateOpen, true
	case "filled":
		return domain.StateFilled, true
	case "cancelled", "canceled":
		return domain.StateCanceled, true
	case "rejected":
		return domain.StateRejected, true
	case "untriggered":
		return domain.StatePending, true
	default:
		return "", false
	}
}

func (w *OrdersWorker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pingCancel != nil {
		w.pingCancel()
		w.pingCancel = nil
	}
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// Disconnect closes the connection.
func (w *OrdersWorker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
	slog.Info("Deribit orders websocket disconnected")
}

// IsConnected returns connection status.
func (w *OrdersWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}
