package bybit

import (
	"encoding/json"
	"testing"

	"oms_go/internal/domain"
)

func TestWsOrderToDomain(t *testing.T) {
	raw := `{
		"orderLinkId": "a1b2c3d4e5-1",
		"orderId": "f5e1-4711",
		"symbol": "BTCUSDT",
		"category": "linear",
		"side": "Buy",
		"orderType": "Limit",
		"price": "65000.5",
		"qty": "0.01",
		"timeInForce": "GTC",
		"orderStatus": "PartiallyFilled",
		"cumExecQty": "0.005",
		"cumExecValue": "325.0025",
		"leavesQty": "0.005",
		"updatedTime": "1700000001234"
	}`

	var w wsOrder
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		t.Fatal(err)
	}
	o := w.toDomain()

	if o.OrderLinkID != "a1b2c3d4e5-1" || o.OrderID != "f5e1-4711" {
		t.Errorf("ids = %q/%q", o.OrderLinkID, o.OrderID)
	}
	if o.Status != domain.StatusPartiallyFilled {
		t.Errorf("status = %q, want %q", o.Status, domain.StatusPartiallyFilled)
	}
	if o.Price.String() != "65000.5" || o.Qty.String() != "0.01" {
		t.Errorf("price/qty = %s/%s", o.Price, o.Qty)
	}
	if o.CumExecQty.String() != "0.005" {
		t.Errorf("cumExecQty = %s", o.CumExecQty)
	}
	if o.UpdatedTime != 1700000001234 {
		t.Errorf("updatedTime = %d", o.UpdatedTime)
	}
	if want := "0.005"; o.LeavesQty().String() != want {
		t.Errorf("leavesQty = %s, want %s", o.LeavesQty(), want)
	}
}

func TestWsExecutionToDomain(t *testing.T) {
	var w wsExecution
	raw := `{
		"execId": "e-1",
		"orderId": "o-1",
		"orderLinkId": "l-1",
		"symbol": "BTCUSDT",
		"side": "Sell",
		"execPrice": "64999.9",
		"execQty": "0.002",
		"isMaker": true,
		"execTime": "1700000002000"
	}`
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		t.Fatal(err)
	}
	e := w.toDomain()

	if e.ExecID != "e-1" || e.OrderID != "o-1" {
		t.Errorf("ids = %q/%q", e.ExecID, e.OrderID)
	}
	if !e.IsMaker {
		t.Error("isMaker lost")
	}
	if want := "129.9998"; e.Value().String() != want {
		t.Errorf("value = %s, want %s", e.Value(), want)
	}
	if e.ExecTime != 1700000002000 {
		t.Errorf("execTime = %d", e.ExecTime)
	}
}

func TestWsPositionSignedQty(t *testing.T) {
	tests := []struct {
		name string
		side string
		size string
		want string
	}{
		{"long", domain.SideBuy, "0.5", "0.5"},
		{"short", domain.SideSell, "0.5", "-0.5"},
		{"flat", "", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := wsPosition{Side: tt.side, Size: tt.size}
			if got := w.signedQty(); got.String() != tt.want {
				t.Errorf("signedQty = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseHelpers(t *testing.T) {
	if !parseDecimal("").IsZero() || !parseDecimal("garbage").IsZero() {
		t.Error("unparseable decimals should fall back to zero")
	}
	if parseMillis("") != 0 || parseMillis("x") != 0 {
		t.Error("unparseable timestamps should fall back to zero")
	}
	if got := parseDecimal("-1.25"); got.String() != "-1.25" {
		t.Errorf("parseDecimal = %s", got)
	}
	if got := parseMillis("1700000000000"); got != 1700000000000 {
		t.Errorf("parseMillis = %d", got)
	}
}
