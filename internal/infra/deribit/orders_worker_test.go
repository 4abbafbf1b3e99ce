package deribit

import (
	"context"
	"testing"

	"pulse_exec/internal/domain"
	"pulse_exec/internal/engine"
)

type fakeUpdater struct {
	known   map[string]bool
	updates []appliedUpdate
}

type appliedUpdate struct {
	clientOrderID string
	state         domain.OrderState
	opts          engine.UpdateOptions
}

func (f *fakeUpdater) HasOrder(clientOrderID string) bool {
	return f.known[clientOrderID]
}

func (f *fakeUpdater) UpdateOrder(clientOrderID string, newState domain.OrderState, opts engine.UpdateOptions) bool {
	f.updates = append(f.updates, appliedUpdate{clientOrderID, newState, opts})
	return true
}

func TestMapOrderState(t *testing.T) {
	tests := []struct {
		venueState string
		filled     float64
		want       domain.OrderState
		ok         bool
	}{
		{"open", 0, domain.StateOpen, true},
		{"open", 3, domain.StatePartial, true},
		{"OPEN", 0, domain.StateOpen, true},
		{"filled", 10, domain.StateFilled, true},
		{"cancelled", 0, domain.StateCanceled, true},
		{"canceled", 0, domain.StateCanceled, true},
		{"rejected", 0, domain.StateRejected, true},
		{"untriggered", 0, domain.StatePending, true},
		{"archive", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.venueState, func(t *testing.T) {
			got, ok := mapOrderState(tt.venueState, tt.filled)
			if ok != tt.ok {
				t.Fatalf("mapOrderState(%q, %v) ok = %v, want %v", tt.venueState, tt.filled, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("mapOrderState(%q, %v) = %v, want %v", tt.venueState, tt.filled, got, tt.want)
			}
		})
	}
}

func TestOrdersWorker_HandleMessage(t *testing.T) {
	updater := &fakeUpdater{known: map[string]bool{"ORD1": true}}
	w := &OrdersWorker{registry: updater}

	msg := []byte(`{
		"method": "subscription",
		"params": {
			"channel": "user.orders.BTC-PERPETUAL.raw",
			"data": {"order_id":"ETH-55","order_state":"open","filled_amount":2,"label":"ORD1"}
		}
	}`)
	w.handleMessage(msg)

	if len(updater.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updater.updates))
	}
	up := updater.updates[0]
	if up.clientOrderID != "ORD1" {
		t.Errorf("client order id = %q", up.clientOrderID)
	}
	if up.state != domain.StatePartial {
		t.Errorf("state = %v, want PARTIAL (open with fill)", up.state)
	}
	if up.opts.ExchangeOrderID != "ETH-55" || up.opts.FilledAmount != 2 {
		t.Errorf("opts = %+v", up.opts)
	}
}

func TestOrdersWorker_DropsForeignAndMalformed(t *testing.T) {
	updater := &fakeUpdater{known: map[string]bool{"ORD1": true}}
	w := &OrdersWorker{registry: updater}

	messages := [][]byte{
		// order this process never created
		[]byte(`{"method":"subscription","params":{"channel":"user.orders.BTC-PERPETUAL.raw","data":{"order_id":"X","order_state":"open","label":"FOREIGN"}}}`),
		// no label at all
		[]byte(`{"method":"subscription","params":{"channel":"user.orders.BTC-PERPETUAL.raw","data":{"order_id":"X","order_state":"open"}}}`),
		// unrelated channel
		[]byte(`{"method":"subscription","params":{"channel":"ticker.BTC-PERPETUAL.raw","data":{}}}`),
		// rpc response, not a notification
		[]byte(`{"id":1,"result":{}}`),
		// unknown venue state
		[]byte(`{"method":"subscription","params":{"channel":"user.orders.BTC-PERPETUAL.raw","data":{"order_id":"X","order_state":"archive","label":"ORD1"}}}`),
		// not json
		[]byte(`garbage`),
	}
	for _, msg := range messages {
		w.handleMessage(msg)
	}

	if len(updater.updates) != 0 {
		t.Errorf("updates = %d, want 0: %+v", len(updater.updates), updater.updates)
	}
}

func TestOrdersWorker_CloseConnectionStopsPingLoop(t *testing.T) {
	w := &OrdersWorker{}

	pingCtx, pingCancel := context.WithCancel(context.Background())
	w.mu.Lock()
	w.connected = true
	w.pingCancel = pingCancel
	w.mu.Unlock()

	w.closeConnection()

	select {
	case <-pingCtx.Done():
	default:
		t.Error("ping context still live after closeConnection")
	}
	if w.IsConnected() {
		t.Error("worker still reports connected")
	}

	// Idempotent with nothing to tear down.
	w.closeConnection()
}
