package oms

import (
	"sync"

	"github.com/shopspring/decimal"

	"oms_go/internal/domain"
)

// PositionTracker derives the signed net position from accepted fills.
// Positive is long, negative is short. It has no source of truth of its
// own: the figure is purely the sum of fills, replaced wholesale by
// exchange snapshots on reconnect. Duplicate fills must be suppressed
// upstream before they reach this component.
type PositionTracker struct {
	mu        sync.RWMutex
	signedQty decimal.Decimal
	lastSide  string
}

// NewPositionTracker creates a flat tracker.
func NewPositionTracker() *PositionTracker {
	return &PositionTracker{signedQty: decimal.Zero}
}

// ApplyFill adds fill quantity signed by side and returns the new position.
func (t *PositionTracker) ApplyFill(qty decimal.Decimal, side string) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch side {
	case domain.SideBuy:
		t.signedQty = t.signedQty.Add(qty)
	case domain.SideSell:
		t.signedQty = t.signedQty.Sub(qty)
	}
	t.lastSide = side
	return t.signedQty
}

// ApplySnapshot replaces the derived position with an exchange-reported one.
func (t *PositionTracker) ApplySnapshot(signedQty decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.signedQty = signedQty
}

// Position returns the current signed position.
func (t *PositionTracker) Position() decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.signedQty
}

// LastSide returns the side of the last applied fill, or "" before any.
func (t *PositionTracker) LastSide() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastSide
}
