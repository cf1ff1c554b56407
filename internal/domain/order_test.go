package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderStateClassification(t *testing.T) {
	tests := []struct {
		status   string
		open     bool
		terminal bool
	}{
		{StatusUnsubmitted, false, false},
		{StatusPending, true, false},
		{StatusNew, true, false},
		{StatusPartiallyFilled, true, false},
		{StatusFilled, false, true},
		{StatusCancelled, false, true},
		{StatusRejected, false, true},
	}

	for _, tt := range tests {
		name := tt.status
		if name == StatusPending {
			name = "Pending"
		}
		t.Run(name, func(t *testing.T) {
			o := Order{Status: tt.status}
			if got := o.IsOpen(); got != tt.open {
				t.Errorf("IsOpen() = %v, want %v", got, tt.open)
			}
			if got := o.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestOrderLeavesQty(t *testing.T) {
	o := Order{
		Qty:        decimal.RequireFromString("0.01"),
		CumExecQty: decimal.RequireFromString("0.003"),
	}
	if want := "0.007"; o.LeavesQty().String() != want {
		t.Errorf("LeavesQty() = %s, want %s", o.LeavesQty(), want)
	}
}

func TestExecutionDedupKey(t *testing.T) {
	a := Execution{ExecID: "e1", OrderID: "o1"}
	b := Execution{ExecID: "e1", OrderID: "o2"}
	if a.DedupKey() == b.DedupKey() {
		t.Error("fills on different orders must not collide")
	}
}
