package event

import (
	"sync"

	"github.com/shopspring/decimal"

	"oms_go/internal/domain"
)

// Pools for high-frequency event allocation. Stream workers acquire, the
// reconciler releases after processing, keeping GC pressure off the hotpath.
//
// Usage:
//
//	ev := AcquireExecutionEvent()
//	ev.Exec = fill
//	// ... send through the inbox ...
//	ReleaseExecutionEvent(ev) // return to pool after processing
var executionPool = sync.Pool{
	New: func() interface{} {
		return &ExecutionEvent{}
	},
}

// AcquireExecutionEvent gets an ExecutionEvent from the pool.
// The returned event has zero values and must be initialized.
func AcquireExecutionEvent() *ExecutionEvent {
	return executionPool.Get().(*ExecutionEvent)
}

// ReleaseExecutionEvent returns an ExecutionEvent to the pool.
// The event is reset to zero values before being pooled.
func ReleaseExecutionEvent(ev *ExecutionEvent) {
	if ev == nil {
		return
	}
	ev.Seq = 0
	ev.Ts = 0
	ev.Exec = domain.Execution{}

	executionPool.Put(ev)
}

// OrderUpdateEvent pool
var orderUpdatePool = sync.Pool{
	New: func() interface{} {
		return &OrderUpdateEvent{}
	},
}

// AcquireOrderUpdateEvent gets an OrderUpdateEvent from the pool.
func AcquireOrderUpdateEvent() *OrderUpdateEvent {
	return orderUpdatePool.Get().(*OrderUpdateEvent)
}

// ReleaseOrderUpdateEvent returns an OrderUpdateEvent to the pool.
func ReleaseOrderUpdateEvent(ev *OrderUpdateEvent) {
	if ev == nil {
		return
	}
	ev.Seq = 0
	ev.Ts = 0
	ev.Order = domain.Order{}

	orderUpdatePool.Put(ev)
}

// PositionUpdateEvent pool
var positionUpdatePool = sync.Pool{
	New: func() interface{} {
		return &PositionUpdateEvent{}
	},
}

// AcquirePositionUpdateEvent gets a PositionUpdateEvent from the pool.
func AcquirePositionUpdateEvent() *PositionUpdateEvent {
	return positionUpdatePool.Get().(*PositionUpdateEvent)
}

// ReleasePositionUpdateEvent returns a PositionUpdateEvent to the pool.
func ReleasePositionUpdateEvent(ev *PositionUpdateEvent) {
	if ev == nil {
		return
	}
	ev.Seq = 0
	ev.Ts = 0
	ev.Symbol = ""
	ev.SignedQty = decimal.Zero

	positionUpdatePool.Put(ev)
}
