// Package accounting tracks session realized P&L net of transaction costs
// from the execution stream, with FIFO lot matching between buys and sells.
package accounting

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"oms_go/internal/domain"
)

// lot is one unmatched fill remainder in a FIFO queue.
type lot struct {
	price decimal.Decimal
	qty   decimal.Decimal
}

// SessionBook computes running realized P&L, its running maximum and the
// maximum peak-to-trough drawdown over one trading session.
//
// Fees are charged per fill the moment it arrives; realized profit is the
// gross spread of FIFO-matched buy/sell lots. A win is a matched lot pair
// with non-negative gross profit. Duplicate fills must be suppressed
// upstream.
type SessionBook struct {
	mu sync.RWMutex

	makerRate decimal.Decimal
	takerRate decimal.Decimal

	buys  []lot
	sells []lot

	pnl      decimal.Decimal
	maxPnl   decimal.Decimal
	drawdown decimal.Decimal
	wins     int
	matched  int
}

// NewSessionBook creates an empty book with the given fee schedule
// (fractional rates, e.g. 0.0002 for 2 bps).
func NewSessionBook(makerRate, takerRate decimal.Decimal) *SessionBook {
	return &SessionBook{
		makerRate: makerRate,
		takerRate: takerRate,
		pnl:       decimal.Zero,
		maxPnl:    decimal.Zero,
		drawdown:  decimal.Zero,
	}
}

// ApplyExecution folds one accepted fill into the session figures and
// returns the updated pnl, max pnl and drawdown.
func (b *SessionBook) ApplyExecution(exec domain.Execution) (pnl, maxPnl, drawdown decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Transaction cost accrues on every fill regardless of matching.
	rate := b.takerRate
	if exec.IsMaker {
		rate = b.makerRate
	}
	b.pnl = b.pnl.Sub(exec.Value().Mul(rate))

	switch exec.Side {
	case domain.SideBuy:
		b.buys = append(b.buys, lot{price: exec.Price, qty: exec.Qty})
	case domain.SideSell:
		b.sells = append(b.sells, lot{price: exec.Price, qty: exec.Qty})
	}

	b.matchLots()

	// Peak before trough: the drawdown of this step must see the max pnl
	// of this same step.
	b.maxPnl = decimal.Max(b.maxPnl, b.pnl)
	b.drawdown = decimal.Max(b.drawdown, b.maxPnl.Sub(b.pnl))

	return b.pnl, b.maxPnl, b.drawdown
}

// matchLots consumes the FIFO queues while both sides have quantity,
// realizing the gross spread of each matched slice.
func (b *SessionBook) matchLots() {
	for len(b.buys) > 0 && len(b.sells) > 0 {
		buy := &b.buys[0]
		sell := &b.sells[0]

		q := decimal.Min(buy.qty, sell.qty)
		gross := sell.price.Sub(buy.price).Mul(q)
		b.pnl = b.pnl.Add(gross)

		b.matched++
		if !gross.IsNegative() {
			b.wins++
		}

		buy.qty = buy.qty.Sub(q)
		sell.qty = sell.qty.Sub(q)
		if buy.qty.IsZero() {
			b.buys = b.buys[1:]
		}
		if sell.qty.IsZero() {
			b.sells = b.sells[1:]
		}
	}
}

// Pnl returns the session net profit (loss).
func (b *SessionBook) Pnl() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pnl
}

// MaxPnl returns the session maximum net profit observed.
func (b *SessionBook) MaxPnl() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.maxPnl
}

// Drawdown returns the session maximum peak-to-trough decline.
func (b *SessionBook) Drawdown() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.drawdown
}

// WinRate returns wins over matched lot pairs, and false before the first
// match.
func (b *SessionBook) WinRate() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.matched == 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(int64(b.wins)).Div(decimal.NewFromInt(int64(b.matched))), true
}

// Summary renders the session metrics as an aligned text table.
//
//	Session Metrics                          Value
//	---------------------------------------------
//	Session win rate                        0.5100
//	Session profit (loss)                 100.0000
//	Session maximum profit                200.0000
//	Session maximum drawdown              100.0000
func (b *SessionBook) Summary() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	winRate := "n/a"
	if b.matched > 0 {
		r := decimal.NewFromInt(int64(b.wins)).Div(decimal.NewFromInt(int64(b.matched)))
		winRate = r.StringFixed(4)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-30s %15s\n", "Session Metrics", "Value")
	sb.WriteString(strings.Repeat("-", 46))
	sb.WriteByte('\n')
	fmt.Fprintf(&sb, "%-30s %15s\n", "Session win rate", winRate)
	fmt.Fprintf(&sb, "%-30s %15s\n", "Session profit (loss)", b.pnl.StringFixed(4))
	fmt.Fprintf(&sb, "%-30s %15s\n", "Session maximum profit", b.maxPnl.StringFixed(4))
	fmt.Fprintf(&sb, "%-30s %15s\n", "Session maximum drawdown", b.drawdown.StringFixed(4))
	return sb.String()
}
