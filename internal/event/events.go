package event

import (
	"sync/atomic"

	"github.com/shopspring/decimal"

	"oms_go/internal/domain"
)

// Type tags the event variants the reconciler dispatches on.
type Type string

const (
	TypeOrderUpdate      Type = "ORDER_UPDATE"
	TypeExecution        Type = "EXECUTION"
	TypePositionUpdate   Type = "POSITION_UPDATE"
	TypeOrderSnapshot    Type = "ORDER_SNAPSHOT"
	TypePositionSnapshot Type = "POSITION_SNAPSHOT"
)

// Event is the unit pushed through the reconciler inbox.
type Event interface {
	GetSeq() uint64
	GetTs() int64
	GetType() Type
}

// BaseEvent carries the fields common to all variants.
type BaseEvent struct {
	Seq uint64 `json:"seq"` // local ingestion sequence
	Ts  int64  `json:"ts"`  // exchange ms timestamp
}

func (e *BaseEvent) GetSeq() uint64 { return e.Seq }
func (e *BaseEvent) GetTs() int64   { return e.Ts }

// OrderUpdateEvent is one pushed order-status change.
type OrderUpdateEvent struct {
	BaseEvent
	Order domain.Order `json:"order"`
}

func (e *OrderUpdateEvent) GetType() Type { return TypeOrderUpdate }

// ExecutionEvent is one trade fill.
type ExecutionEvent struct {
	BaseEvent
	Exec domain.Execution `json:"exec"`
}

func (e *ExecutionEvent) GetType() Type { return TypeExecution }

// PositionUpdateEvent is a pushed position figure from the position stream.
type PositionUpdateEvent struct {
	BaseEvent
	Symbol    string          `json:"symbol"`
	SignedQty decimal.Decimal `json:"signedQty"`
}

func (e *PositionUpdateEvent) GetType() Type { return TypePositionUpdate }

// OrderSnapshotEvent carries the exchange-reported set of open orders,
// requested after (re)connect. The reconciler diffs it against local state.
type OrderSnapshotEvent struct {
	BaseEvent
	Orders []domain.Order `json:"orders"`
}

func (e *OrderSnapshotEvent) GetType() Type { return TypeOrderSnapshot }

// PositionSnapshotEvent replaces the derived position after (re)connect.
type PositionSnapshotEvent struct {
	BaseEvent
	Symbol    string          `json:"symbol"`
	SignedQty decimal.Decimal `json:"signedQty"`
}

func (e *PositionSnapshotEvent) GetType() Type { return TypePositionSnapshot }

// NextSeq increments and returns the shared ingestion sequence counter.
func NextSeq(seq *uint64) uint64 {
	return atomic.AddUint64(seq, 1)
}
