package oms

import (
	"testing"

	"github.com/shopspring/decimal"

	"oms_go/internal/domain"
)

func TestPositionTracker_SignedAccumulation(t *testing.T) {
	p := NewPositionTracker()

	got := p.ApplyFill(decimal.NewFromFloat(1.5), domain.SideBuy)
	if !got.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("expected 1.5, got %s", got)
	}

	got = p.ApplyFill(decimal.NewFromFloat(2.5), domain.SideSell)
	if !got.Equal(decimal.NewFromInt(-1)) {
		t.Errorf("expected -1, got %s", got)
	}

	if p.LastSide() != domain.SideSell {
		t.Errorf("expected last side Sell, got %q", p.LastSide())
	}
}

func TestPositionTracker_RoundTrip(t *testing.T) {
	p := NewPositionTracker()
	before := p.Position()

	q := decimal.NewFromFloat(0.37)
	p.ApplyFill(q, domain.SideBuy)
	p.ApplyFill(q, domain.SideSell)

	if !p.Position().Equal(before) {
		t.Errorf("buy then sell of equal qty must round-trip exactly: before %s, after %s", before, p.Position())
	}
}

func TestPositionTracker_Snapshot(t *testing.T) {
	p := NewPositionTracker()
	p.ApplyFill(decimal.NewFromInt(3), domain.SideBuy)

	p.ApplySnapshot(decimal.NewFromFloat(-0.5))
	if !p.Position().Equal(decimal.NewFromFloat(-0.5)) {
		t.Errorf("snapshot must replace derived position, got %s", p.Position())
	}
}
