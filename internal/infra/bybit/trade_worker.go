package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"oms_go/internal/domain"
	"oms_go/internal/infra"
)

// TradeWorker maintains the command channel: an authenticated websocket to
// the trade endpoint over which order.create/amend/cancel are issued. The
// acknowledgement here covers transmission and gateway-level acceptance
// only; the business outcome arrives on the private streams.
type TradeWorker struct {
	url    string
	signer *Signer

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewTradeWorker creates the command channel worker.
func NewTradeWorker(url string, signer *Signer) *TradeWorker {
	return &TradeWorker{
		url:    url,
		signer: signer,
	}
}

// Connect starts the connection loop.
func (w *TradeWorker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *TradeWorker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	delay := baseDelay
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			retryCount++
			infra.GlobalMetrics.RecordError()
			if retryCount >= maxRetries {
				slog.Error("trade channel giving up",
					slog.Int("retries", retryCount), slog.Any("error", err))
				return
			}
			slog.Warn("trade channel connection failed", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		} else {
			retryCount = 0
			delay = baseDelay
			w.readLoop(ctx)
		}
	}
}

func (w *TradeWorker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return domain.NewTransportError("dial", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	req := wsRequest{Op: "auth", Args: w.signer.WSAuthArgs()}
	b, _ := json.Marshal(req)
	if err := w.threadSafeWrite(websocket.TextMessage, b); err != nil {
		w.closeConnection()
		return err
	}

	go w.pingLoop(ctx)
	infra.GlobalMetrics.IncrementConnections()
	slog.Info("trade channel connected")
	return nil
}

func (w *TradeWorker) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	ping, _ := json.Marshal(wsRequest{Op: "ping"})
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.IsConnected() {
				return
			}
			w.threadSafeWrite(websocket.TextMessage, ping)
		}
	}
}

func (w *TradeWorker) readLoop(ctx context.Context) {
	defer infra.GlobalMetrics.DecrementConnections()
	for {
		select {
		case <-ctx.Done():
			w.closeConnection()
			return
		default:
		}
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("trade channel read failed", slog.Any("error", err))
			w.closeConnection()
			return
		}
		w.handleAck(msg)
	}
}

// handleAck surfaces gateway-level rejections. Business rejects reach the
// order record through its own status transition, so nothing is raised.
func (w *TradeWorker) handleAck(msg []byte) {
	var ack wsAck
	if err := json.Unmarshal(msg, &ack); err != nil {
		return
	}
	if ack.RetCode != nil && *ack.RetCode != 0 {
		infra.GlobalMetrics.RecordError()
		slog.Warn("trade command rejected",
			slog.String("op", ack.Op), slog.Int("retCode", *ack.RetCode), slog.String("retMsg", ack.RetMsg))
	}
	if ack.Success != nil && !*ack.Success {
		infra.GlobalMetrics.RecordError()
		slog.Error("trade channel op rejected",
			slog.String("op", ack.Op), slog.String("retMsg", ack.RetMsg))
	}
}

// Send implements the command-send primitive used by the gateway. The
// header timestamps bind the command to the exchange's receive window.
func (w *TradeWorker) Send(ctx context.Context, op string, args map[string]any) error {
	if !w.IsConnected() {
		return domain.ErrNotConnected
	}

	cmd := wsCommand{
		Header: map[string]string{
			"X-BAPI-TIMESTAMP":   fmt.Sprintf("%d", time.Now().UnixMilli()),
			"X-BAPI-RECV-WINDOW": recvWindow,
		},
		Op:   op,
		Args: []any{args},
	}
	b, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	if err := w.threadSafeWrite(websocket.TextMessage, b); err != nil {
		return domain.NewTransportError("write", err)
	}
	return nil
}

func (w *TradeWorker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return domain.ErrNotConnected
	}
	return w.conn.WriteMessage(msgType, data)
}

// IsConnected reports whether the socket is live.
func (w *TradeWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *TradeWorker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// Disconnect stops the worker and waits for its goroutines to exit.
func (w *TradeWorker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
