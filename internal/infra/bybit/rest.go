package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"oms_go/internal/domain"
)

// SnapshotClient fetches the exchange-side truth over REST. It exists for
// one purpose: after (re)connect the local state is reconciled against the
// open-order and position snapshots rather than trusted blindly.
type SnapshotClient struct {
	baseURL    string
	symbol     string
	category   string
	httpClient *http.Client
	signer     *Signer
	logger     *slog.Logger
}

// NewSnapshotClient creates a snapshot client for one symbol/category pair.
func NewSnapshotClient(baseURL, symbol, category string, signer *Signer) *SnapshotClient {
	return &SnapshotClient{
		baseURL:  baseURL,
		symbol:   symbol,
		category: category,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		signer: signer,
		logger: slog.Default().With("module", "snapshot_client"),
	}
}

type restEnvelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// OpenOrders returns the exchange-reported set of open orders.
func (c *SnapshotClient) OpenOrders(ctx context.Context) ([]domain.Order, error) {
	query := url.Values{}
	query.Set("category", c.category)
	query.Set("symbol", c.symbol)

	var result struct {
		List []wsOrder `json:"list"`
	}
	if err := c.get(ctx, "/v5/order/realtime", query.Encode(), &result); err != nil {
		return nil, fmt.Errorf("open order snapshot failed: %w", err)
	}

	orders := make([]domain.Order, 0, len(result.List))
	for _, row := range result.List {
		o := row.toDomain()
		o.Category = c.category
		orders = append(orders, o)
	}
	return orders, nil
}

// Position returns the exchange-reported signed position.
func (c *SnapshotClient) Position(ctx context.Context) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("category", c.category)
	query.Set("symbol", c.symbol)

	var result struct {
		List []wsPosition `json:"list"`
	}
	if err := c.get(ctx, "/v5/position/list", query.Encode(), &result); err != nil {
		return decimal.Zero, fmt.Errorf("position snapshot failed: %w", err)
	}

	signed := decimal.Zero
	for _, row := range result.List {
		if row.Symbol != c.symbol {
			continue
		}
		signed = signed.Add(row.signedQty())
	}
	return signed, nil
}

// get handles auth headers and envelope parsing.
func (c *SnapshotClient) get(ctx context.Context, path, queryString string, out any) error {
	reqURL := c.baseURL + path
	if queryString != "" {
		reqURL += "?" + queryString
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	for k, v := range c.signer.RESTHeaders(recvWindow, queryString) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewTransportError("get", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api error: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	var envelope restEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if envelope.RetCode != 0 {
		return fmt.Errorf("business error: retCode=%d retMsg=%s", envelope.RetCode, envelope.RetMsg)
	}

	return json.Unmarshal(envelope.Result, out)
}
