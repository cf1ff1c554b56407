package domain

import "github.com/shopspring/decimal"

// Order is the local view of a single exchange order, keyed by OrderLinkID.
// Quantities and prices are decimal to avoid float drift over partial fills.
type Order struct {
	OrderLinkID  string          `json:"orderLinkId"` // primary key, immutable
	OrderID      string          `json:"orderId"`     // set on first exchange ack
	Symbol       string          `json:"symbol"`
	Category     string          `json:"category"`
	Side         string          `json:"side"`      // "Buy", "Sell"
	OrderType    string          `json:"orderType"` // "Limit", "Market"
	Price        decimal.Decimal `json:"price"`
	Qty          decimal.Decimal `json:"qty"`
	TimeInForce  string          `json:"timeInForce"`
	Status       string          `json:"orderStatus"`
	CumExecQty   decimal.Decimal `json:"cumExecQty"`
	CumExecValue decimal.Decimal `json:"cumExecValue"`
	UpdatedTime  int64           `json:"updatedTime"` // exchange ms timestamp of last applied event
}

const (
	SideBuy  = "Buy"
	SideSell = "Sell"

	OrderTypeLimit  = "Limit"
	OrderTypeMarket = "Market"

	// Status strings follow the exchange's own vocabulary so pushed
	// order updates can be applied without translation.
	StatusUnsubmitted     = "Unsubmitted" // created locally, not yet on the wire
	StatusPending         = ""            // sent, awaiting exchange ack
	StatusNew             = "New"
	StatusPartiallyFilled = "PartiallyFilled"
	StatusFilled          = "Filled"
	StatusCancelled       = "Cancelled"
	StatusRejected        = "Rejected"
)

// IsOpen reports whether the order still has working quantity on the exchange.
func (o *Order) IsOpen() bool {
	switch o.Status {
	case StatusPending, StatusNew, StatusPartiallyFilled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the order reached a final state. Terminal
// orders absorb all further transitions.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// LeavesQty returns the unfilled remainder.
func (o *Order) LeavesQty() decimal.Decimal {
	return o.Qty.Sub(o.CumExecQty)
}
