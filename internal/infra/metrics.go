package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	eventsProcessed   atomic.Uint64
	duplicatesDropped atomic.Uint64
	conflictsDropped  atomic.Uint64
	ordersAdopted     atomic.Uint64
	ordersFilled      atomic.Uint64
	commandsSent      atomic.Uint64
	errorsTotal       atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordEvent records an event processing with latency.
func (m *Metrics) RecordEvent(latencyNs int64) {
	m.eventsProcessed.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordDuplicate records a deduplicated execution event.
func (m *Metrics) RecordDuplicate() {
	m.duplicatesDropped.Add(1)
}

// RecordConflict records an event dropped for targeting a terminal order.
func (m *Metrics) RecordConflict() {
	m.conflictsDropped.Add(1)
}

// RecordAdopted records an exchange-originated order adopted into the store.
func (m *Metrics) RecordAdopted() {
	m.ordersAdopted.Add(1)
}

// RecordOrderFilled records a fully filled order.
func (m *Metrics) RecordOrderFilled() {
	m.ordersFilled.Add(1)
}

// RecordCommand records an outbound command dispatch.
func (m *Metrics) RecordCommand() {
	m.commandsSent.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// Snapshot captures current metric values for reporting.
type MetricsSnapshot struct {
	EventsProcessed   uint64
	DuplicatesDropped uint64
	ConflictsDropped  uint64
	OrdersAdopted     uint64
	OrdersFilled      uint64
	CommandsSent      uint64
	ErrorsTotal       uint64
	AvgLatency        time.Duration
	ActiveConnections int32
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		EventsProcessed:   m.eventsProcessed.Load(),
		DuplicatesDropped: m.duplicatesDropped.Load(),
		ConflictsDropped:  m.conflictsDropped.Load(),
		OrdersAdopted:     m.ordersAdopted.Load(),
		OrdersFilled:      m.ordersFilled.Load(),
		CommandsSent:      m.commandsSent.Load(),
		ErrorsTotal:       m.errorsTotal.Load(),
		ActiveConnections: m.activeConnections.Load(),
	}
	if n := m.latencyCount.Load(); n > 0 {
		s.AvgLatency = time.Duration(m.latencySumNs.Load() / int64(n))
	}
	return s
}
