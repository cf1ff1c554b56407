package accounting

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"oms_go/internal/domain"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func fill(execID, side, price, qty string, maker bool) domain.Execution {
	return domain.Execution{
		ExecID:  execID,
		OrderID: "ord-" + execID,
		Symbol:  "BTCUSDT",
		Side:    side,
		Price:   d(price),
		Qty:     d(qty),
		IsMaker: maker,
	}
}

func newTestBook() *SessionBook {
	return NewSessionBook(d("0.0002"), d("0.00055"))
}

func assertFigures(t *testing.T, b *SessionBook, pnl, maxPnl, drawdown string) {
	t.Helper()
	if got := b.Pnl(); !got.Equal(d(pnl)) {
		t.Errorf("pnl = %s, want %s", got, pnl)
	}
	if got := b.MaxPnl(); !got.Equal(d(maxPnl)) {
		t.Errorf("max pnl = %s, want %s", got, maxPnl)
	}
	if got := b.Drawdown(); !got.Equal(d(drawdown)) {
		t.Errorf("drawdown = %s, want %s", got, drawdown)
	}
}

func TestSessionBook_SingleMakerBuy(t *testing.T) {
	b := newTestBook()

	// Buy 1.0 @ 100, maker fee 2 bps: the fee alone drives pnl negative
	// and opens a drawdown off the zero peak.
	b.ApplyExecution(fill("e1", domain.SideBuy, "100", "1", true))

	assertFigures(t, b, "-0.02", "0", "0.02")

	if _, ok := b.WinRate(); ok {
		t.Error("win rate should be unavailable before the first matched lot")
	}
}

func TestSessionBook_FIFORoundTrip(t *testing.T) {
	b := newTestBook()

	b.ApplyExecution(fill("e1", domain.SideBuy, "100", "1", true))
	pnl, _, _ := b.ApplyExecution(fill("e2", domain.SideSell, "110", "1", true))

	// gross 10, fees 0.02 + 0.022
	if want := d("9.958"); !pnl.Equal(want) {
		t.Fatalf("pnl = %s, want %s", pnl, want)
	}
	assertFigures(t, b, "9.958", "9.958", "0.02")

	rate, ok := b.WinRate()
	if !ok || !rate.Equal(decimal.NewFromInt(1)) {
		t.Errorf("win rate = %s, %v, want 1, true", rate, ok)
	}
}

func TestSessionBook_FIFOOrdering(t *testing.T) {
	b := newTestBook()

	// Two buys at different prices; the sell must match the earliest buy
	// first, not the cheapest.
	b.ApplyExecution(fill("e1", domain.SideBuy, "110", "1", true))
	b.ApplyExecution(fill("e2", domain.SideBuy, "90", "1", true))
	b.ApplyExecution(fill("e3", domain.SideSell, "100", "1", true))

	// gross 100-110 = -10, fees (110+90+100) * 0.0002 = 0.06
	assertFigures(t, b, "-10.06", "0", "10.06")

	// Second sell consumes the 90 lot.
	b.ApplyExecution(fill("e4", domain.SideSell, "100", "1", true))

	// gross +10, fee 0.02
	assertFigures(t, b, "-0.08", "0", "10.06")
}

func TestSessionBook_PartialLotMatching(t *testing.T) {
	// Zero fees keep the spread arithmetic exact.
	b := NewSessionBook(decimal.Zero, decimal.Zero)

	b.ApplyExecution(fill("e1", domain.SideBuy, "100", "3", true))
	b.ApplyExecution(fill("e2", domain.SideSell, "105", "1", true))
	assertFigures(t, b, "5", "5", "0")

	// The remaining 2.0 of the buy lot matches against a bigger sell; the
	// sell remainder stays queued.
	b.ApplyExecution(fill("e3", domain.SideSell, "95", "3", true))
	assertFigures(t, b, "-5", "5", "10")

	b.ApplyExecution(fill("e4", domain.SideBuy, "90", "1", true))
	assertFigures(t, b, "0", "5", "10")
}

func TestSessionBook_TakerFeeRate(t *testing.T) {
	b := newTestBook()

	b.ApplyExecution(fill("e1", domain.SideBuy, "100", "1", false))

	// 100 * 0.00055
	assertFigures(t, b, "-0.055", "0", "0.055")
}

func TestSessionBook_DrawdownSeesSameStepPeak(t *testing.T) {
	b := NewSessionBook(decimal.Zero, decimal.Zero)

	// Profit first, then a losing round trip. The drawdown must be
	// measured from the new peak set by the winning trade.
	b.ApplyExecution(fill("e1", domain.SideBuy, "100", "1", true))
	b.ApplyExecution(fill("e2", domain.SideSell, "120", "1", true))
	assertFigures(t, b, "20", "20", "0")

	b.ApplyExecution(fill("e3", domain.SideBuy, "100", "1", true))
	b.ApplyExecution(fill("e4", domain.SideSell, "70", "1", true))
	assertFigures(t, b, "-10", "20", "30")
}

func TestSessionBook_WinRate(t *testing.T) {
	b := NewSessionBook(decimal.Zero, decimal.Zero)

	b.ApplyExecution(fill("e1", domain.SideBuy, "100", "1", true))
	b.ApplyExecution(fill("e2", domain.SideSell, "110", "1", true)) // win
	b.ApplyExecution(fill("e3", domain.SideBuy, "100", "1", true))
	b.ApplyExecution(fill("e4", domain.SideSell, "90", "1", true)) // loss
	b.ApplyExecution(fill("e5", domain.SideBuy, "100", "1", true))
	b.ApplyExecution(fill("e6", domain.SideSell, "100", "1", true)) // flat counts as win

	rate, ok := b.WinRate()
	if !ok {
		t.Fatal("win rate should be available after matches")
	}
	want := d("2").Div(d("3"))
	if !rate.Equal(want) {
		t.Errorf("win rate = %s, want %s", rate, want)
	}
}

func TestSessionBook_Summary(t *testing.T) {
	b := newTestBook()

	out := b.Summary()
	if !strings.Contains(out, "Session Metrics") {
		t.Errorf("summary missing header:\n%s", out)
	}
	if !strings.Contains(out, "n/a") {
		t.Errorf("summary should report n/a win rate before any match:\n%s", out)
	}

	b.ApplyExecution(fill("e1", domain.SideBuy, "100", "1", true))
	b.ApplyExecution(fill("e2", domain.SideSell, "110", "1", true))

	out = b.Summary()
	for _, want := range []string{"1.0000", "9.9580", "0.0200"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
