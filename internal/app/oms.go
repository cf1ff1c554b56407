package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"oms_go/internal/accounting"
	"oms_go/internal/domain"
	"oms_go/internal/engine"
	"oms_go/internal/event"
	"oms_go/internal/infra"
	"oms_go/internal/infra/bybit"
	"oms_go/internal/infra/storage"
	"oms_go/internal/oms"
)

// OMS ties the order store, position tracker, session book, reconciler,
// command gateway and stream workers into one order-management instance
// for a single symbol/category pair.
//
// All mutation flows through exactly two paths: stream events via the
// reconciler, and commands via the gateway. The accessors read consistent
// snapshots.
type OMS struct {
	cfg *infra.Config

	store     *oms.OrderStore
	position  *oms.PositionTracker
	session   *accounting.SessionBook
	journal   *storage.Journal
	rec       *engine.Reconciler
	gateway   *oms.Gateway
	limiter   *infra.RateLimiter
	signer    *bybit.Signer
	snapshots *bybit.SnapshotClient
	trade     *bybit.TradeWorker

	seq    uint64
	logger *slog.Logger

	mu      sync.Mutex
	workers []*bybit.PrivateWorker
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewOMS builds an OMS from configuration. journal may be nil.
func NewOMS(cfg *infra.Config, journal *storage.Journal) *OMS {
	b := &cfg.API.Bybit

	store := oms.NewOrderStore()
	position := oms.NewPositionTracker()
	session := accounting.NewSessionBook(cfg.Fees.Maker, cfg.Fees.Taker)
	rec := engine.NewReconciler(1024, store, position, session, journal)
	limiter := infra.NewRateLimiter(b.APIRate)
	signer := bybit.NewSigner(b.APIKey, b.APISecret)
	trade := bybit.NewTradeWorker(b.WSTradeURL, signer)
	gateway := oms.NewGateway(b.Symbol, b.Category, store, limiter, trade)
	snapshots := bybit.NewSnapshotClient(b.RestURL, b.Symbol, b.Category, signer)

	return &OMS{
		cfg:       cfg,
		store:     store,
		position:  position,
		session:   session,
		journal:   journal,
		rec:       rec,
		gateway:   gateway,
		limiter:   limiter,
		signer:    signer,
		snapshots: snapshots,
		trade:     trade,
		logger:    slog.Default().With("module", "oms"),
	}
}

// Connect starts the reconciler loop, the command channel and the three
// private stream workers, then requests the initial snapshots.
func (o *OMS) Connect(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.rec.Run(runCtx)
	}()

	if err := o.trade.Connect(runCtx); err != nil {
		cancel()
		return err
	}

	b := &o.cfg.API.Bybit
	onConnected := func() {
		go o.requestSnapshots(runCtx)
	}
	o.workers = []*bybit.PrivateWorker{
		bybit.NewPrivateWorker(bybit.StreamOrder, b.WSPrivateURL, b.Symbol, b.Category, o.signer, o.rec.Inbox(), &o.seq, onConnected),
		bybit.NewPrivateWorker(bybit.StreamExecution, b.WSPrivateURL, b.Symbol, b.Category, o.signer, o.rec.Inbox(), &o.seq, nil),
		bybit.NewPrivateWorker(bybit.StreamPosition, b.WSPrivateURL, b.Symbol, b.Category, o.signer, o.rec.Inbox(), &o.seq, nil),
	}
	for _, w := range o.workers {
		if err := w.Connect(runCtx); err != nil {
			cancel()
			return err
		}
	}

	o.running = true
	o.logger.Info("oms connected",
		slog.String("symbol", b.Symbol), slog.String("category", b.Category))
	return nil
}

// requestSnapshots pulls the exchange-side truth and feeds it through the
// inbox, so snapshot application is serialized with live events.
func (o *OMS) requestSnapshots(ctx context.Context) {
	err := infra.Retry(ctx, 3, time.Second, func() error {
		orders, err := o.snapshots.OpenOrders(ctx)
		if err != nil {
			return err
		}
		pos, err := o.snapshots.Position(ctx)
		if err != nil {
			return err
		}

		now := time.Now().UnixMilli()
		// The inbox may be full while the reconciler drains a backlog;
		// never outlive the run context waiting on it.
		select {
		case o.rec.Inbox() <- &event.OrderSnapshotEvent{
			BaseEvent: event.BaseEvent{Seq: event.NextSeq(&o.seq), Ts: now},
			Orders:    orders,
		}:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case o.rec.Inbox() <- &event.PositionSnapshotEvent{
			BaseEvent: event.BaseEvent{Seq: event.NextSeq(&o.seq), Ts: now},
			Symbol:    o.cfg.API.Bybit.Symbol,
			SignedQty: pos,
		}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		o.logger.Error("snapshot reconciliation failed", slog.Any("error", err))
	}
}

// stop cancels the run context and waits for every worker goroutine and
// the reconciler loop to fully exit.
func (o *OMS) stop() {
	if !o.running {
		return
	}
	o.cancel()
	for _, w := range o.workers {
		w.Disconnect()
	}
	o.trade.Disconnect()
	o.wg.Wait()
	o.workers = nil
	o.running = false
}

// Reconnect stops all stream contexts, waits for them to exit, replaces
// the connections and resumes. Local state is kept and reconciled against
// the fresh snapshots rather than dropped.
func (o *OMS) Reconnect(ctx context.Context) error {
	o.mu.Lock()
	o.stop()
	o.mu.Unlock()
	return o.Connect(ctx)
}

// Kill terminates all stream contexts and cancels every local order the
// exchange never acknowledged, so nothing is leaked as permanently
// Unsubmitted. A final session snapshot is journaled when enabled.
func (o *OMS) Kill() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stop()

	if cancelled := o.store.CancelAllLocal(); len(cancelled) > 0 {
		o.logger.Info("unacknowledged orders cancelled locally",
			slog.Int("count", len(cancelled)))
	}

	if o.journal != nil {
		snap := &storage.SessionSnapshot{
			Symbol:   o.cfg.API.Bybit.Symbol,
			Pnl:      o.session.Pnl().String(),
			MaxPnl:   o.session.MaxPnl().String(),
			Drawdown: o.session.Drawdown().String(),
			Position: o.position.Position().String(),
		}
		if err := o.journal.SaveSnapshot(snap); err != nil {
			o.logger.Error("session snapshot write failed", slog.Any("error", err))
		}
	}
	o.logger.Info("oms killed")
}

// CreateOrder validates and dispatches a new order, returning its link id.
func (o *OMS) CreateOrder(ctx context.Context, params oms.CreateOrderParams) (string, error) {
	return o.gateway.CreateOrder(ctx, params)
}

// AmendOrder dispatches an amendment for an active order.
func (o *OMS) AmendOrder(ctx context.Context, params oms.AmendOrderParams) error {
	return o.gateway.AmendOrder(ctx, params)
}

// CancelOrder dispatches a cancel, or cancels locally when the exchange
// never saw the order.
func (o *OMS) CancelOrder(ctx context.Context, orderLinkID string) error {
	return o.gateway.CancelOrder(ctx, orderLinkID)
}

// CancelAll cancels every non-terminal order.
func (o *OMS) CancelAll(ctx context.Context) error {
	return o.gateway.CancelAll(ctx)
}

// Active reports whether any non-terminal order exists.
func (o *OMS) Active() bool {
	return o.store.Active()
}

// ActiveOrders returns a copy of every non-terminal order keyed by link id.
func (o *OMS) ActiveOrders() map[string]domain.Order {
	return o.store.ActiveOrders()
}

// OrderStatus returns the lifecycle status for a link id.
func (o *OMS) OrderStatus(orderLinkID string) (string, bool) {
	return o.store.Status(orderLinkID)
}

// RemoveStatus evicts an order record. Terminal orders are retained until
// this is called, so final statuses stay inspectable.
func (o *OMS) RemoveStatus(orderLinkID string) {
	o.store.Remove(orderLinkID)
}

// Position returns the signed net position.
func (o *OMS) Position() decimal.Decimal {
	return o.position.Position()
}

// Side returns the side of the last executed fill.
func (o *OMS) Side() string {
	return o.position.LastSide()
}

// Pnl returns the session net profit (loss).
func (o *OMS) Pnl() decimal.Decimal {
	return o.session.Pnl()
}

// MaxPnl returns the session maximum net profit.
func (o *OMS) MaxPnl() decimal.Decimal {
	return o.session.MaxPnl()
}

// Drawdown returns the session maximum drawdown.
func (o *OMS) Drawdown() decimal.Decimal {
	return o.session.Drawdown()
}

// WinRate returns the session win rate, and false before the first match.
func (o *OMS) WinRate() (decimal.Decimal, bool) {
	return o.session.WinRate()
}

// Summary renders the session metrics report.
func (o *OMS) Summary() string {
	return o.session.Summary()
}
