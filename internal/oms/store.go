package oms

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"oms_go/internal/domain"
)

// statusRank orders the order lifecycle so that status can never regress.
// Terminal states share the top rank and absorb everything.
var statusRank = map[string]int{
	domain.StatusUnsubmitted:     0,
	domain.StatusPending:         1,
	domain.StatusNew:             2,
	domain.StatusPartiallyFilled: 3,
	domain.StatusFilled:          4,
	domain.StatusCancelled:       4,
	domain.StatusRejected:        4,
}

// entry pairs a record with its own lock so event application is
// linearized per order without serializing the whole store.
//
// execCumQty/execCumValue accumulate the execution-stream fills only.
// The order stream reports the same fills as a cumulative figure, so the
// record's CumExecQty is the maximum of the two, never their sum.
type entry struct {
	mu           sync.Mutex
	order        domain.Order
	execCumQty   decimal.Decimal
	execCumValue decimal.Decimal
}

// OrderStore is the authoritative map of order-link-id to order record.
// The outer RWMutex guards the map shape only; each record carries its own
// critical section. Safe for concurrent use from stream handlers and the
// query surface.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]*entry
}

// NewOrderStore creates an empty store.
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*entry)}
}

// Put inserts a new provisional record. A collision with a live link id is
// a store-corruption condition and is surfaced as ErrDuplicateOrder.
func (s *OrderStore) Put(order domain.Order) error {
	if order.OrderLinkID == "" {
		return &domain.ValidationError{Field: "orderLinkId", Reason: "empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.OrderLinkID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateOrder, order.OrderLinkID)
	}
	s.orders[order.OrderLinkID] = &entry{order: order}
	return nil
}

// Get returns a copy of the record for the given link id.
func (s *OrderStore) Get(orderLinkID string) (domain.Order, bool) {
	e := s.lookup(orderLinkID)
	if e == nil {
		return domain.Order{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order, true
}

// Status returns the current lifecycle status for the given link id.
func (s *OrderStore) Status(orderLinkID string) (string, bool) {
	o, ok := s.Get(orderLinkID)
	return o.Status, ok
}

// Remove evicts a record. Terminal orders are kept until the caller does
// this explicitly, so final statuses stay inspectable.
func (s *OrderStore) Remove(orderLinkID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, orderLinkID)
}

// MarkPending transitions a locally created order from Unsubmitted to
// pending-ack once its command is on the wire.
func (s *OrderStore) MarkPending(orderLinkID string) error {
	e := s.lookup(orderLinkID)
	if e == nil {
		return domain.ErrUnknownOrder
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.order.Status != domain.StatusUnsubmitted {
		return nil
	}
	e.order.Status = domain.StatusPending
	return nil
}

// CancelLocal cancels an order that never reached the exchange. Only
// Unsubmitted and pending-ack orders qualify; anything acknowledged needs a
// wire cancel and its own cancellation event.
func (s *OrderStore) CancelLocal(orderLinkID string) error {
	e := s.lookup(orderLinkID)
	if e == nil {
		return domain.ErrUnknownOrder
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.order.Status {
	case domain.StatusUnsubmitted, domain.StatusPending:
		e.order.Status = domain.StatusCancelled
		return nil
	default:
		return domain.ErrTerminalState
	}
}

// ApplyOrderUpdate merges a pushed order-status event into the store.
// Unknown link ids are adopted as exchange-originated orders. Events older
// than the last applied one, or targeting terminal orders, are dropped.
func (s *OrderStore) ApplyOrderUpdate(update domain.Order) (domain.Order, bool, error) {
	if update.OrderLinkID == "" {
		return domain.Order{}, false, &domain.ValidationError{Field: "orderLinkId", Reason: "empty"}
	}

	e, adopted := s.lookupOrAdopt(update.OrderLinkID)
	e.mu.Lock()
	defer e.mu.Unlock()

	o := &e.order
	if adopted {
		*o = update
		return *o, true, nil
	}
	if o.IsTerminal() {
		return *o, false, domain.ErrTerminalState
	}
	if update.UpdatedTime != 0 && update.UpdatedTime < o.UpdatedTime {
		return *o, false, domain.ErrStaleEvent
	}
	if statusRank[update.Status] < statusRank[o.Status] {
		return *o, false, domain.ErrStaleEvent
	}

	if o.OrderID == "" {
		o.OrderID = update.OrderID
	}
	if !update.Price.IsZero() {
		o.Price = update.Price
	}
	if !update.Qty.IsZero() {
		o.Qty = update.Qty
	}
	if update.TimeInForce != "" {
		o.TimeInForce = update.TimeInForce
	}
	// Cumulative figures never move backwards.
	if update.CumExecQty.GreaterThan(o.CumExecQty) {
		o.CumExecQty = update.CumExecQty
		o.CumExecValue = update.CumExecValue
	}
	o.Status = update.Status
	if update.UpdatedTime > o.UpdatedTime {
		o.UpdatedTime = update.UpdatedTime
	}
	return *o, false, nil
}

// ApplyExecution folds a fill into its order: cumulative quantities grow
// monotonically and the status follows partial/full fill semantics.
// Fills for unknown orders adopt a minimal record.
func (s *OrderStore) ApplyExecution(exec domain.Execution) (domain.Order, bool, error) {
	linkID := exec.OrderLinkID
	if linkID == "" {
		linkID = s.linkIDForOrderID(exec.OrderID)
	}
	if linkID == "" {
		return domain.Order{}, false, &domain.ValidationError{Field: "orderLinkId", Reason: "no local order and no link id on execution"}
	}

	e, adopted := s.lookupOrAdopt(linkID)
	e.mu.Lock()
	defer e.mu.Unlock()

	o := &e.order
	if adopted {
		*o = domain.Order{
			OrderLinkID: linkID,
			OrderID:     exec.OrderID,
			Symbol:      exec.Symbol,
			Category:    exec.Category,
			Side:        exec.Side,
			Status:      domain.StatusNew,
		}
	}
	if o.IsTerminal() {
		return *o, adopted, domain.ErrTerminalState
	}

	// The order stream reports the same fill as a cumulative cumExecQty
	// and may have applied it already. Accumulate the execution stream on
	// its own and take the larger figure, so a fill seen on both streams
	// counts once regardless of arrival order.
	e.execCumQty = e.execCumQty.Add(exec.Qty)
	e.execCumValue = e.execCumValue.Add(exec.Value())
	if e.execCumQty.GreaterThan(o.CumExecQty) {
		o.CumExecQty = e.execCumQty
		o.CumExecValue = e.execCumValue
	}
	if o.Qty.IsPositive() && o.CumExecQty.GreaterThan(o.Qty) {
		o.CumExecQty = o.Qty
	}
	if o.Qty.IsPositive() && o.CumExecQty.GreaterThanOrEqual(o.Qty) {
		o.Status = domain.StatusFilled
	} else {
		o.Status = domain.StatusPartiallyFilled
	}
	if exec.ExecTime > o.UpdatedTime {
		o.UpdatedTime = exec.ExecTime
	}
	return *o, adopted, nil
}

// ReconcileSnapshot diffs the exchange-reported open-order set against
// local state after a reconnect. Snapshot orders are adopted or refreshed;
// local open orders absent from the snapshot are closed as Cancelled, so
// the active set equals what the exchange reports.
func (s *OrderStore) ReconcileSnapshot(open []domain.Order) {
	seen := make(map[string]bool, len(open))
	for _, o := range open {
		if o.OrderLinkID == "" {
			continue
		}
		seen[o.OrderLinkID] = true
		e, adopted := s.lookupOrAdopt(o.OrderLinkID)
		e.mu.Lock()
		if adopted {
			e.order = o
		} else if !e.order.IsTerminal() {
			if e.order.OrderID == "" {
				e.order.OrderID = o.OrderID
			}
			e.order.Status = o.Status
			if o.CumExecQty.GreaterThan(e.order.CumExecQty) {
				e.order.CumExecQty = o.CumExecQty
				e.order.CumExecValue = o.CumExecValue
			}
			if o.UpdatedTime > e.order.UpdatedTime {
				e.order.UpdatedTime = o.UpdatedTime
			}
		}
		e.mu.Unlock()
	}

	s.mu.RLock()
	stale := make([]*entry, 0)
	for linkID, e := range s.orders {
		if !seen[linkID] {
			stale = append(stale, e)
		}
	}
	s.mu.RUnlock()

	for _, e := range stale {
		e.mu.Lock()
		if e.order.IsOpen() || e.order.Status == domain.StatusUnsubmitted {
			e.order.Status = domain.StatusCancelled
		}
		e.mu.Unlock()
	}
}

// ActiveOrders returns a copy of every non-terminal record keyed by link id.
func (s *OrderStore) ActiveOrders() map[string]domain.Order {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.orders))
	for _, e := range s.orders {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make(map[string]domain.Order)
	for _, e := range entries {
		e.mu.Lock()
		if !e.order.IsTerminal() {
			out[e.order.OrderLinkID] = e.order
		}
		e.mu.Unlock()
	}
	return out
}

// Active reports whether any non-terminal order exists.
func (s *OrderStore) Active() bool {
	return len(s.ActiveOrders()) > 0
}

// CancelAllLocal cancels every order the exchange has not acknowledged and
// returns their link ids. Used on shutdown so no command is leaked as
// permanently Unsubmitted.
func (s *OrderStore) CancelAllLocal() []string {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.orders))
	for _, e := range s.orders {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var cancelled []string
	for _, e := range entries {
		e.mu.Lock()
		switch e.order.Status {
		case domain.StatusUnsubmitted, domain.StatusPending:
			e.order.Status = domain.StatusCancelled
			cancelled = append(cancelled, e.order.OrderLinkID)
		}
		e.mu.Unlock()
	}
	return cancelled
}

func (s *OrderStore) lookup(orderLinkID string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orders[orderLinkID]
}

// lookupOrAdopt returns the entry for linkID, creating an empty one when
// absent. The second return reports whether a new entry was created.
func (s *OrderStore) lookupOrAdopt(orderLinkID string) (*entry, bool) {
	s.mu.RLock()
	e := s.orders[orderLinkID]
	s.mu.RUnlock()
	if e != nil {
		return e, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e = s.orders[orderLinkID]; e != nil {
		return e, false
	}
	e = &entry{}
	s.orders[orderLinkID] = e
	return e, true
}

func (s *OrderStore) linkIDForOrderID(orderID string) string {
	if orderID == "" {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for linkID, e := range s.orders {
		e.mu.Lock()
		match := e.order.OrderID == orderID
		e.mu.Unlock()
		if match {
			return linkID
		}
	}
	return ""
}
