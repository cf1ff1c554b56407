package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"oms_go/internal/accounting"
	"oms_go/internal/domain"
	"oms_go/internal/event"
	"oms_go/internal/infra"
	"oms_go/internal/infra/storage"
	"oms_go/internal/oms"
)

// Reconciler is the single-threaded event processor. All stream workers
// feed one inbox; applying events from exactly one goroutine keeps the
// cross-component ordering fixed per execution: order state first, then
// position, then session accounting.
type Reconciler struct {
	inbox chan event.Event

	store    *oms.OrderStore
	position *oms.PositionTracker
	session  *accounting.SessionBook
	journal  *storage.Journal // nil = journaling disabled

	seenFills map[string]struct{}

	logger *slog.Logger
}

// NewReconciler creates a reconciler over the given shared state. journal
// may be nil.
func NewReconciler(inboxSize int, store *oms.OrderStore, position *oms.PositionTracker, session *accounting.SessionBook, journal *storage.Journal) *Reconciler {
	return &Reconciler{
		inbox:     make(chan event.Event, inboxSize),
		store:     store,
		position:  position,
		session:   session,
		journal:   journal,
		seenFills: make(map[string]struct{}),
		logger:    slog.Default().With("module", "reconciler"),
	}
}

// Inbox returns the event channel. Stream workers send events here.
func (r *Reconciler) Inbox() chan<- event.Event {
	return r.inbox
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("reconciler started")

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", rec))
			r.DumpState("panic_dump.json")
			panic(fmt.Sprintf("HALTED: %v", rec))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopping")
			return
		case ev := <-r.inbox:
			start := time.Now()
			r.processEvent(ev)
			infra.GlobalMetrics.RecordEvent(time.Since(start).Nanoseconds())
		}
	}
}

func (r *Reconciler) processEvent(ev event.Event) {
	switch e := ev.(type) {
	case *event.OrderUpdateEvent:
		r.handleOrderUpdate(e)
		event.ReleaseOrderUpdateEvent(e)
	case *event.ExecutionEvent:
		r.handleExecution(e)
		event.ReleaseExecutionEvent(e)
	case *event.PositionUpdateEvent:
		r.handlePositionUpdate(e)
		event.ReleasePositionUpdateEvent(e)
	case *event.OrderSnapshotEvent:
		r.store.ReconcileSnapshot(e.Orders)
		r.logger.Info("order snapshot reconciled", slog.Int("open", len(e.Orders)))
	case *event.PositionSnapshotEvent:
		r.position.ApplySnapshot(e.SignedQty)
		r.logger.Info("position snapshot applied", slog.String("qty", e.SignedQty.String()))
	default:
		r.logger.Warn("unknown event type", slog.Any("type", ev.GetType()))
	}
}

func (r *Reconciler) handleOrderUpdate(e *event.OrderUpdateEvent) {
	order, adopted, err := r.store.ApplyOrderUpdate(e.Order)
	switch {
	case err == nil:
		if adopted {
			infra.GlobalMetrics.RecordAdopted()
			r.logger.Info("untracked order adopted",
				slog.String("orderLinkId", order.OrderLinkID),
				slog.String("status", order.Status))
		}
		if order.Status == domain.StatusFilled {
			infra.GlobalMetrics.RecordOrderFilled()
		}
	case errors.Is(err, domain.ErrTerminalState):
		// Regression attempt against a closed order. Expected under
		// duplicate delivery; dropped.
		infra.GlobalMetrics.RecordConflict()
		r.logger.Debug("order update dropped, terminal state",
			slog.String("orderLinkId", e.Order.OrderLinkID))
	case errors.Is(err, domain.ErrStaleEvent):
		infra.GlobalMetrics.RecordDuplicate()
	default:
		infra.GlobalMetrics.RecordError()
		r.logger.Warn("malformed order update dropped", slog.Any("error", err))
	}
}

func (r *Reconciler) handleExecution(e *event.ExecutionEvent) {
	exec := e.Exec
	if exec.ExecID == "" || !exec.Qty.IsPositive() {
		infra.GlobalMetrics.RecordError()
		r.logger.Warn("malformed execution dropped",
			slog.String("execId", exec.ExecID), slog.String("orderId", exec.OrderID))
		return
	}

	key := exec.DedupKey()
	if _, dup := r.seenFills[key]; dup {
		infra.GlobalMetrics.RecordDuplicate()
		return
	}
	r.seenFills[key] = struct{}{}

	// Order state first. A fill landing after the order stream already
	// closed the order is not a conflict for accounting purposes; the
	// (orderId, execId) dedup is the accounting gate.
	order, adopted, err := r.store.ApplyExecution(exec)
	switch {
	case err == nil:
		if adopted {
			infra.GlobalMetrics.RecordAdopted()
		}
		if order.Status == domain.StatusFilled {
			infra.GlobalMetrics.RecordOrderFilled()
		}
	case errors.Is(err, domain.ErrTerminalState):
		r.logger.Debug("execution for closed order",
			slog.String("orderLinkId", order.OrderLinkID), slog.String("execId", exec.ExecID))
	default:
		infra.GlobalMetrics.RecordError()
		r.logger.Warn("execution not applied to order state", slog.Any("error", err))
	}

	// Then the derived aggregates, in fixed order.
	newPos := r.position.ApplyFill(exec.Qty, exec.Side)
	pnl, _, drawdown := r.session.ApplyExecution(exec)

	r.logger.Debug("execution applied",
		slog.String("execId", exec.ExecID),
		slog.String("side", exec.Side),
		slog.String("qty", exec.Qty.String()),
		slog.String("position", newPos.String()),
		slog.String("pnl", pnl.String()),
		slog.String("drawdown", drawdown.String()))

	if r.journal != nil {
		rec := &storage.FillRecord{
			ExecID:      exec.ExecID,
			OrderID:     exec.OrderID,
			OrderLinkID: exec.OrderLinkID,
			Symbol:      exec.Symbol,
			Category:    exec.Category,
			Side:        exec.Side,
			Price:       exec.Price.String(),
			Qty:         exec.Qty.String(),
			IsMaker:     exec.IsMaker,
			ExecTime:    exec.ExecTime,
		}
		if err := r.journal.SaveFill(rec); err != nil {
			infra.GlobalMetrics.RecordError()
			r.logger.Error("fill journal write failed", slog.Any("error", err))
		}
	}
}

// handlePositionUpdate cross-checks the pushed position figure against the
// derived one. Position is derived exclusively from fills; the stream value
// is used for divergence detection, not as a write path.
func (r *Reconciler) handlePositionUpdate(e *event.PositionUpdateEvent) {
	local := r.position.Position()
	if !local.Equal(e.SignedQty) {
		r.logger.Warn("position divergence",
			slog.String("local", local.String()),
			slog.String("exchange", e.SignedQty.String()))
	}
}

// DumpState writes the reconciler's view of the world to a file (for
// post-mortem).
func (r *Reconciler) DumpState(filename string) {
	r.logger.Info("dumping internal state", slog.String("file", filename))

	data := struct {
		ActiveOrders map[string]domain.Order `json:"active_orders"`
		Position     string                  `json:"position"`
		Pnl          string                  `json:"pnl"`
		MaxPnl       string                  `json:"max_pnl"`
		Drawdown     string                  `json:"drawdown"`
		SeenFills    int                     `json:"seen_fills"`
	}{
		ActiveOrders: r.store.ActiveOrders(),
		Position:     r.position.Position().String(),
		Pnl:          r.session.Pnl().String(),
		MaxPnl:       r.session.MaxPnl().String(),
		Drawdown:     r.session.Drawdown().String(),
		SeenFills:    len(r.seenFills),
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		r.logger.Error("failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		r.logger.Error("failed to write state dump", slog.Any("error", err))
	}
}
