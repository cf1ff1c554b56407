package oms

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"oms_go/internal/domain"
	"oms_go/internal/infra"
)

// acquireTimeout bounds how long a command may queue behind the rate
// limiter before it fails with backpressure.
const acquireTimeout = 2 * time.Second

// CommandSender carries a fully-formed wire command to the exchange. The
// return reports transmission only; the business outcome arrives later as
// a stream event.
type CommandSender interface {
	Send(ctx context.Context, op string, args map[string]any) error
}

// CreateOrderParams enumerates the recognized fields for order creation.
type CreateOrderParams struct {
	Side        string
	OrderType   string
	Qty         decimal.Decimal
	Price       decimal.Decimal // required for Limit
	TimeInForce string
	OrderLinkID string // generated when empty
}

// AmendOrderParams enumerates the recognized fields for order amendment.
// Zero-valued fields are left untouched on the exchange.
type AmendOrderParams struct {
	OrderLinkID string
	Qty         decimal.Decimal
	Price       decimal.Decimal
}

// Gateway validates, rate-limits and dispatches mutating order commands,
// recording a provisional store entry before each create so the order is
// observable while its acknowledgement is in flight.
type Gateway struct {
	symbol   string
	category string
	store    *OrderStore
	limiter  *infra.RateLimiter
	sender   CommandSender

	linkPrefix string
	linkSeq    atomic.Uint64
	logger     *slog.Logger
}

// NewGateway creates a gateway bound to one symbol/category pair. The
// limiter must be the OMS-wide instance.
func NewGateway(symbol, category string, store *OrderStore, limiter *infra.RateLimiter, sender CommandSender) *Gateway {
	return &Gateway{
		symbol:     symbol,
		category:   category,
		store:      store,
		limiter:    limiter,
		sender:     sender,
		linkPrefix: newLinkPrefix(),
		logger:     slog.Default().With("module", "gateway"),
	}
}

// newLinkPrefix derives a short url-safe session prefix for generated
// order link ids.
func newLinkPrefix() string {
	id := uuid.New()
	enc := base64.RawURLEncoding.EncodeToString(id[:])
	if len(enc) > 10 {
		enc = enc[:10]
	}
	return enc
}

// nextLinkID generates a collision-free order link id for this store.
func (g *Gateway) nextLinkID() string {
	for {
		id := fmt.Sprintf("%s-%d", g.linkPrefix, g.linkSeq.Add(1))
		if _, exists := g.store.Get(id); !exists {
			return id
		}
	}
}

// CreateOrder validates and dispatches a new order, returning its link id.
// The provisional record is written before the wire send so the order is
// queryable as Unsubmitted, then pending-ack once transmitted.
func (g *Gateway) CreateOrder(ctx context.Context, params CreateOrderParams) (string, error) {
	if err := validateCreate(params); err != nil {
		return "", err
	}

	linkID := params.OrderLinkID
	if linkID == "" {
		linkID = g.nextLinkID()
	}

	if err := g.limiter.Acquire(ctx, acquireTimeout); err != nil {
		return "", err
	}

	order := domain.Order{
		OrderLinkID: linkID,
		Symbol:      g.symbol,
		Category:    g.category,
		Side:        params.Side,
		OrderType:   params.OrderType,
		Price:       params.Price,
		Qty:         params.Qty,
		TimeInForce: params.TimeInForce,
		Status:      domain.StatusUnsubmitted,
	}
	if err := g.store.Put(order); err != nil {
		return "", err
	}

	args := map[string]any{
		"symbol":      g.symbol,
		"category":    g.category,
		"side":        params.Side,
		"orderType":   params.OrderType,
		"qty":         params.Qty.String(),
		"orderLinkId": linkID,
	}
	if params.OrderType == domain.OrderTypeLimit {
		args["price"] = params.Price.String()
	}
	if params.TimeInForce != "" {
		args["timeInForce"] = params.TimeInForce
	}

	if err := g.sender.Send(ctx, "order.create", args); err != nil {
		// The record stays Unsubmitted; callers see the failure and the
		// order can be cancelled locally without a round trip.
		g.logger.Warn("order create transmission failed",
			slog.String("orderLinkId", linkID), slog.Any("error", err))
		return linkID, err
	}

	infra.GlobalMetrics.RecordCommand()
	g.store.MarkPending(linkID)
	return linkID, nil
}

// AmendOrder dispatches an amendment for an active order.
func (g *Gateway) AmendOrder(ctx context.Context, params AmendOrderParams) error {
	if params.OrderLinkID == "" {
		return &domain.ValidationError{Field: "orderLinkId", Reason: "required"}
	}
	if params.Qty.IsZero() && params.Price.IsZero() {
		return &domain.ValidationError{Field: "qty/price", Reason: "nothing to amend"}
	}
	order, ok := g.store.Get(params.OrderLinkID)
	if !ok {
		return domain.ErrUnknownOrder
	}
	if order.IsTerminal() {
		return domain.ErrTerminalState
	}

	if err := g.limiter.Acquire(ctx, acquireTimeout); err != nil {
		return err
	}

	args := map[string]any{
		"symbol":      g.symbol,
		"category":    g.category,
		"orderLinkId": params.OrderLinkID,
	}
	if !params.Qty.IsZero() {
		args["qty"] = params.Qty.String()
	}
	if !params.Price.IsZero() {
		args["price"] = params.Price.String()
	}

	if err := g.sender.Send(ctx, "order.amend", args); err != nil {
		return err
	}
	infra.GlobalMetrics.RecordCommand()
	return nil
}

// CancelOrder dispatches a cancel for an active order. Orders the exchange
// never acknowledged are cancelled locally with no round trip.
func (g *Gateway) CancelOrder(ctx context.Context, orderLinkID string) error {
	order, ok := g.store.Get(orderLinkID)
	if !ok {
		return domain.ErrUnknownOrder
	}
	if order.IsTerminal() {
		return domain.ErrTerminalState
	}

	if order.Status == domain.StatusUnsubmitted {
		return g.store.CancelLocal(orderLinkID)
	}

	if err := g.limiter.Acquire(ctx, acquireTimeout); err != nil {
		return err
	}

	args := map[string]any{
		"symbol":      g.symbol,
		"category":    g.category,
		"orderLinkId": orderLinkID,
	}
	if order.OrderID != "" {
		args["orderId"] = order.OrderID
	}

	if err := g.sender.Send(ctx, "order.cancel", args); err != nil {
		return err
	}
	infra.GlobalMetrics.RecordCommand()
	return nil
}

// CancelAll cancels every non-terminal order. The first transmission
// failure aborts the sweep.
func (g *Gateway) CancelAll(ctx context.Context) error {
	for linkID := range g.store.ActiveOrders() {
		if err := g.CancelOrder(ctx, linkID); err != nil {
			return fmt.Errorf("cancel %s: %w", linkID, err)
		}
	}
	return nil
}

func validateCreate(p CreateOrderParams) error {
	switch p.Side {
	case domain.SideBuy, domain.SideSell:
	default:
		return &domain.ValidationError{Field: "side", Reason: "must be Buy or Sell"}
	}
	switch p.OrderType {
	case domain.OrderTypeLimit, domain.OrderTypeMarket:
	default:
		return &domain.ValidationError{Field: "orderType", Reason: "must be Limit or Market"}
	}
	if !p.Qty.IsPositive() {
		return &domain.ValidationError{Field: "qty", Reason: "must be positive"}
	}
	if p.OrderType == domain.OrderTypeLimit && !p.Price.IsPositive() {
		return &domain.ValidationError{Field: "price", Reason: "required for Limit orders"}
	}
	return nil
}
