package bybit

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"oms_go/internal/domain"
)

const (
	maxRetries   = 10
	baseDelay    = 1 * time.Second
	maxDelay     = 60 * time.Second
	pingInterval = 20 * time.Second
	readTimeout  = 60 * time.Second

	recvWindow = "8000"
)

// wsRequest is the op envelope for auth/subscribe/ping frames.
type wsRequest struct {
	Op   string `json:"op"`
	Args []any  `json:"args,omitempty"`
}

// wsCommand is the trade-channel envelope for order.create/amend/cancel.
type wsCommand struct {
	Header map[string]string `json:"header"`
	Op     string            `json:"op"`
	Args   []any             `json:"args"`
}

// wsAck covers both op responses on the private streams ("success") and
// command acknowledgements on the trade stream ("retCode").
type wsAck struct {
	Op      string `json:"op"`
	Success *bool  `json:"success,omitempty"`
	RetCode *int   `json:"retCode,omitempty"`
	RetMsg  string `json:"retMsg,omitempty"`
	ConnID  string `json:"connId,omitempty"`
}

// streamMessage is the topic-data envelope of a private push.
type streamMessage struct {
	Topic        string          `json:"topic"`
	CreationTime int64           `json:"creationTime"`
	Data         json.RawMessage `json:"data"`
}

// wsOrder is one order payload on the order topic. Numeric fields arrive
// as strings.
type wsOrder struct {
	OrderLinkID  string `json:"orderLinkId"`
	OrderID      string `json:"orderId"`
	Symbol       string `json:"symbol"`
	Category     string `json:"category"`
	Side         string `json:"side"`
	OrderType    string `json:"orderType"`
	Price        string `json:"price"`
	Qty          string `json:"qty"`
	TimeInForce  string `json:"timeInForce"`
	OrderStatus  string `json:"orderStatus"`
	CumExecQty   string `json:"cumExecQty"`
	CumExecValue string `json:"cumExecValue"`
	LeavesQty    string `json:"leavesQty"`
	UpdatedTime  string `json:"updatedTime"`
}

func (w *wsOrder) toDomain() domain.Order {
	return domain.Order{
		OrderLinkID:  w.OrderLinkID,
		OrderID:      w.OrderID,
		Symbol:       w.Symbol,
		Category:     w.Category,
		Side:         w.Side,
		OrderType:    w.OrderType,
		Price:        parseDecimal(w.Price),
		Qty:          parseDecimal(w.Qty),
		TimeInForce:  w.TimeInForce,
		Status:       w.OrderStatus,
		CumExecQty:   parseDecimal(w.CumExecQty),
		CumExecValue: parseDecimal(w.CumExecValue),
		UpdatedTime:  parseMillis(w.UpdatedTime),
	}
}

// wsExecution is one fill payload on the fast execution topic.
type wsExecution struct {
	ExecID      string `json:"execId"`
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
	Symbol      string `json:"symbol"`
	Category    string `json:"category"`
	Side        string `json:"side"`
	ExecPrice   string `json:"execPrice"`
	ExecQty     string `json:"execQty"`
	IsMaker     bool   `json:"isMaker"`
	ExecTime    string `json:"execTime"`
}

func (w *wsExecution) toDomain() domain.Execution {
	return domain.Execution{
		ExecID:      w.ExecID,
		OrderID:     w.OrderID,
		OrderLinkID: w.OrderLinkID,
		Symbol:      w.Symbol,
		Category:    w.Category,
		Side:        w.Side,
		Price:       parseDecimal(w.ExecPrice),
		Qty:         parseDecimal(w.ExecQty),
		IsMaker:     w.IsMaker,
		ExecTime:    parseMillis(w.ExecTime),
	}
}

// wsPosition is one entry on the position topic. Size is unsigned; Side
// carries the direction ("Buy" = long, "Sell" = short, "" = flat).
type wsPosition struct {
	Symbol      string `json:"symbol"`
	Category    string `json:"category"`
	Side        string `json:"side"`
	Size        string `json:"size"`
	UpdatedTime string `json:"updatedTime"`
}

func (w *wsPosition) signedQty() decimal.Decimal {
	size := parseDecimal(w.Size)
	if w.Side == domain.SideSell {
		return size.Neg()
	}
	return size
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseMillis(s string) int64 {
	if s == "" {
		return 0
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return ms
}
