package domain

import "github.com/shopspring/decimal"

// Execution is a single trade fill reported by the exchange. The
// (OrderID, ExecID) pair is unique and used for duplicate suppression.
type Execution struct {
	ExecID      string          `json:"execId"`
	OrderID     string          `json:"orderId"`
	OrderLinkID string          `json:"orderLinkId"`
	Symbol      string          `json:"symbol"`
	Category    string          `json:"category"`
	Side        string          `json:"side"`
	Price       decimal.Decimal `json:"execPrice"`
	Qty         decimal.Decimal `json:"execQty"`
	IsMaker     bool            `json:"isMaker"`
	ExecTime    int64           `json:"execTime"` // exchange ms timestamp
}

// Value returns the quote-currency notional of the fill.
func (e *Execution) Value() decimal.Decimal {
	return e.Price.Mul(e.Qty)
}

// DedupKey identifies this fill across redelivery.
func (e *Execution) DedupKey() string {
	return e.OrderID + "|" + e.ExecID
}
