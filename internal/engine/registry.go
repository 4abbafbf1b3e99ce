package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"pulse_exec/internal/domain"

	"github.com/google/uuid"
)

// Sink consumes finalized order snapshots asynchronously.
// Enqueue must be safe from any goroutine, must not block beyond a short
// critical section, and reports backpressure via the boolean return only.
type Sink interface {
	Enqueue(order domain.Order) bool
}

// UpdateCallback is invoked synchronously on every create/update with a
// copy of the order. Callbacks for a single order are strictly ordered;
// they run under that order's lock, so they must be fast.
type UpdateCallback func(domain.Order)

// IDScheme selects how client order ids are synthesized when the caller
// does not supply one.
type IDScheme string

const (
	// IDSchemeCounter composes an atomic counter with the current
	// timestamp. Not collision-proof across process restarts.
	IDSchemeCounter IDScheme = "counter"
	// IDSchemeUUID uses random UUIDv4 ids, unique across restarts.
	IDSchemeUUID IDScheme = "uuid"
)

// Options configures registry policy knobs.
type Options struct {
	// IDScheme selects the synthesized-id scheme. Empty means counter.
	IDScheme IDScheme
	// RejectTerminalTransitions makes UpdateOrder refuse transitions out
	// of FILLED/CANCELED/REJECTED. Off by default: transition legality is
	// left to callers.
	RejectTerminalTransitions bool
}

// orderEntry bundles an order with the mutex that serializes its updates.
// Entries are never removed, so a pointer taken under the map lock stays
// valid after the lock is released.
type orderEntry struct {
	mu    sync.Mutex
	order domain.Order
}

// Registry is the single source of truth for all order state and the only
// component permitted to mutate an Order after creation.
//
// Locking is two-tier: mu protects the two maps and is held only for
// lookups and inserts; each entry's mutex serializes that order's full
// mutate -> enqueue -> notify sequence. The only nesting is mu inside an
// entry mutex when recording a new exchange id, consistently in that
// order everywhere.
type Registry struct {
	mu          sync.Mutex
	byClientID  map[string]*orderEntry
	byVenueID   map[string]string // exchange order id -> client order id
	cbMu        sync.Mutex
	callbacks   []UpdateCallback
	counter     atomic.Uint64
	sink        Sink
	opts        Options
	sinkDropped atomic.Uint64
}

// NewRegistry creates an order registry writing snapshots to sink.
// sink may be nil (no persistence).
func NewRegistry(sink Sink, opts Options) *Registry {
	if opts.IDScheme == "" {
		opts.IDScheme = IDSchemeCounter
	}
	return &Registry{
		byClientID: make(map[string]*orderEntry),
		byVenueID:  make(map[string]string),
		sink:       sink,
		opts:       opts,
	}
}

// UpdateOptions carries the optional fields of an order update.
// Zero values mean "not supplied": an empty ExchangeOrderID records
// nothing, a FilledAmount <= 0 preserves the prior fill, an empty
// ErrorMessage preserves the prior message.
type UpdateOptions struct {
	ExchangeOrderID string
	FilledAmount    float64
	ErrorMessage    string
}

// CreateOrder registers a new order in state PENDING and returns its
// client order id, or "" if the id is already taken (the idempotency
// guard: resubmitting the same id is a no-op failure, never an
// overwrite). The snapshot is enqueued to the sink and callbacks fire
// before CreateOrder returns.
func (r *Registry) CreateOrder(req domain.OrderRequest) string {
	clientOrderID := req.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = r.generateClientOrderID()
		req.ClientOrderID = clientOrderID
	}

	nowUnixM := time.Now().UnixMicro()
	order := domain.Order{
		ClientOrderID: clientOrderID,
		Request:       req,
		State:         domain.StatePending,
		CreatedUnixM:  nowUnixM,
		UpdatedUnixM:  nowUnixM,
	}
	entry := &orderEntry{order: order}

	r.mu.Lock()
	if _, exists := r.byClientID[clientOrderID]; exists {
		r.mu.Unlock()
		slog.Error("Duplicate client order id rejected", slog.String("client_order_id", clientOrderID))
		return ""
	}
	r.byClientID[clientOrderID] = entry
	r.mu.Unlock()

	slog.Info("Order created",
		slog.String("client_order_id", clientOrderID),
		slog.String("symbol", req.Symbol),
		slog.String("side", string(req.Side)))

	// Side effects run outside the map lock, on the creation-time
	// snapshot. A concurrent update that races the insert produces its
	// own persist/notify for the newer state.
	r.persist(order)
	r.notify(order)

	return clientOrderID
}

// UpdateOrder applies a state change to an existing order. It returns
// false if the order is unknown, or if the terminal-transition guard is
// enabled and the order is already terminal.
//
// The full mutate -> persist -> notify sequence runs under the order's
// lock, so callbacks observe updates to one order in exactly the order
// the calls were issued and never see a half-applied update.
func (r *Registry) UpdateOrder(clientOrderID string, newState domain.OrderState, opts UpdateOptions) bool {
	r.mu.Lock()
	entry, ok := r.byClientID[clientOrderID]
	r.mu.Unlock()
	if !ok {
		slog.Error("Order not found", slog.String("client_order_id", clientOrderID))
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if r.opts.RejectTerminalTransitions && entry.order.IsTerminal() {
		slog.Warn("Update of terminal order rejected",
			slog.String("client_order_id", clientOrderID),
			slog.String("state", string(entry.order.State)),
			slog.String("new_state", string(newState)))
		return false
	}

	entry.order.State = newState
	entry.order.UpdatedUnixM = time.Now().UnixMicro()

	// Exchange id is write-once: first write wins, later values are
	// ignored. This makes submission retries harmless.
	if opts.ExchangeOrderID != "" && entry.order.ExchangeOrderID == "" {
		entry.order.ExchangeOrderID = opts.ExchangeOrderID
		r.mu.Lock()
		r.byVenueID[opts.ExchangeOrderID] = clientOrderID
		r.mu.Unlock()
	}

	// A fill amount of zero carries no information; keep the prior fill
	// across pure state changes.
	if opts.FilledAmount > 0 {
		entry.order.FilledAmount = opts.FilledAmount
	}

	if opts.ErrorMessage != "" {
		entry.order.ErrorMessage = opts.ErrorMessage
	}

	slog.Info("Order updated",
		slog.String("client_order_id", clientOrderID),
		slog.String("state", string(newState)))

	r.persist(entry.order)
	r.notify(entry.order)

	return true
}

// GetOrder returns a point-in-time copy of the order. The copy is
// internally consistent but may be stale by the time the caller acts.
func (r *Registry) GetOrder(clientOrderID string) (domain.Order, bool) {
	r.mu.Lock()
	entry, ok := r.byClientID[clientOrderID]
	r.mu.Unlock()
	if !ok {
		return domain.Order{}, false
	}

	entry.mu.Lock()
	order := entry.order
	entry.mu.Unlock()
	return order, true
}

// GetOrderByExchangeID resolves an exchange order id through the reverse
// index and returns a copy of the order.
func (r *Registry) GetOrderByExchangeID(exchangeOrderID string) (domain.Order, bool) {
	r.mu.Lock()
	clientOrderID, ok := r.byVenueID[exchangeOrderID]
	r.mu.Unlock()
	if !ok {
		return domain.Order{}, false
	}
	return r.GetOrder(clientOrderID)
}

// HasOrder reports whether a client order id is registered.
func (r *Registry) HasOrder(clientOrderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byClientID[clientOrderID]
	return ok
}

// ActiveOrders returns copies of all orders in OPEN or PARTIAL state.
// Each order is consistent as of the moment it was visited; the slice as
// a whole is not an atomic snapshot of the registry.
func (r *Registry) ActiveOrders() []domain.Order {
	return r.collect(func(o *domain.Order) bool { return o.IsActive() })
}

// AllOrders returns copies of every registered order.
func (r *Registry) AllOrders() []domain.Order {
	return r.collect(func(o *domain.Order) bool { return true })
}

func (r *Registry) collect(keep func(*domain.Order) bool) []domain.Order {
	r.mu.Lock()
	entries := make([]*orderEntry, 0, len(r.byClientID))
	for _, entry := range r.byClientID {
		entries = append(entries, entry)
	}
	r.mu.Unlock()

	orders := make([]domain.Order, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		if keep(&entry.order) {
			orders = append(orders, entry.order)
		}
		entry.mu.Unlock()
	}
	return orders
}

// MarkForCancel reports whether the order exists and is currently
// cancelable (OPEN or PARTIAL). It performs no mutation: the caller is
// responsible for the exchange call and the subsequent UpdateOrder.
func (r *Registry) MarkForCancel(clientOrderID string) bool {
	order, ok := r.GetOrder(clientOrderID)
	if !ok {
		return false
	}
	if !order.IsActive() {
		slog.Warn("Cannot cancel inactive order",
			slog.String("client_order_id", clientOrderID),
			slog.String("state", string(order.State)))
		return false
	}
	return true
}

// RegisterUpdateCallback appends a callback invoked on every future
// create and update, in registration order. Past events are not replayed.
func (r *Registry) RegisterUpdateCallback(cb UpdateCallback) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// SinkDropped returns the number of snapshots the sink refused.
func (r *Registry) SinkDropped() uint64 {
	return r.sinkDropped.Load()
}

func (r *Registry) persist(order domain.Order) {
	if r.sink == nil {
		return
	}
	if !r.sink.Enqueue(order) {
		// Local state stays authoritative; persistence lag is counted,
		// never surfaced to the caller.
		r.sinkDropped.Add(1)
		slog.Warn("Durable sink rejected order snapshot",
			slog.String("client_order_id", order.ClientOrderID))
	}
}

func (r *Registry) notify(order domain.Order) {
	r.cbMu.Lock()
	callbacks := r.callbacks
	r.cbMu.Unlock()

	for _, cb := range callbacks {
		cb(order)
	}
}

func (r *Registry) generateClientOrderID() string {
	if r.opts.IDScheme == IDSchemeUUID {
		return "ORDER_" + uuid.NewString()
	}
	counter := r.counter.Add(1)
	return fmt.Sprintf("ORDER_%d_%d", time.Now().UnixMilli(), counter)
}
