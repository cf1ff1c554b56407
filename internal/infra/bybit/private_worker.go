package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"oms_go/internal/domain"
	"oms_go/internal/event"
	"oms_go/internal/infra"
)

// StreamKind selects which private topic a worker subscribes to.
type StreamKind string

const (
	StreamOrder     StreamKind = "order"
	StreamExecution StreamKind = "execution"
	StreamPosition  StreamKind = "position"
)

// PrivateWorker maintains one authenticated private-stream connection and
// turns pushed payloads into typed events for the reconciler inbox.
type PrivateWorker struct {
	kind     StreamKind
	topic    string
	url      string
	symbol   string
	category string
	signer   *Signer
	inbox    chan<- event.Event
	seq      *uint64

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// onConnected fires after auth+subscribe succeed, on connect and every
	// reconnect. The OMS uses it to request fresh snapshots.
	onConnected func()
}

// NewPrivateWorker creates a worker for one stream kind. The fast
// execution topic is per-category.
func NewPrivateWorker(kind StreamKind, url, symbol, category string, signer *Signer, inbox chan<- event.Event, seq *uint64, onConnected func()) *PrivateWorker {
	topic := string(kind)
	if kind == StreamExecution {
		topic = fmt.Sprintf("execution.fast.%s", category)
	}
	return &PrivateWorker{
		kind:        kind,
		topic:       topic,
		url:         url,
		symbol:      symbol,
		category:    category,
		signer:      signer,
		inbox:       inbox,
		seq:         seq,
		onConnected: onConnected,
	}
}

// Connect starts the connection loop.
func (w *PrivateWorker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

// connectionLoop retries with exponential backoff up to maxRetries
// consecutive failures, then gives up and leaves the worker disconnected.
func (w *PrivateWorker) connectionLoop(ctx context.Context) {
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
				slog.Error("stream worker giving up",
					slog.String("topic", w.topic), slog.Int("retries", retryCount), slog.Any("error", err))
				return
			}
			slog.Warn("stream connection failed",
				slog.String("topic", w.topic), slog.Any("error", err))
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

func (w *PrivateWorker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return domain.NewTransportError("dial", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	if err := w.authorize(); err != nil {
		w.closeConnection()
		return err
	}
	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return err
	}

	go w.pingLoop(ctx)
	infra.GlobalMetrics.IncrementConnections()
	slog.Info("stream connected", slog.String("topic", w.topic))
	if w.onConnected != nil {
		w.onConnected()
	}
	return nil
}

func (w *PrivateWorker) authorize() error {
	req := wsRequest{Op: "auth", Args: w.signer.WSAuthArgs()}
	b, _ := json.Marshal(req)
	return w.threadSafeWrite(websocket.TextMessage, b)
}

func (w *PrivateWorker) subscribe() error {
	req := wsRequest{Op: "subscribe", Args: []any{w.topic}}
	b, _ := json.Marshal(req)
	return w.threadSafeWrite(websocket.TextMessage, b)
}

// pingLoop keeps the connection alive with the exchange's op-level ping.
func (w *PrivateWorker) pingLoop(ctx context.Context) {
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

func (w *PrivateWorker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return domain.ErrNotConnected
	}
	return w.conn.WriteMessage(msgType, data)
}

func (w *PrivateWorker) readLoop(ctx context.Context) {
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
			slog.Warn("stream read failed", slog.String("topic", w.topic), slog.Any("error", err))
			w.closeConnection()
			return
		}
		w.handleMessage(msg)
	}
}

func (w *PrivateWorker) handleMessage(msg []byte) {
	// Op responses (auth/subscribe/pong) carry "success" instead of a topic.
	var ack wsAck
	if err := json.Unmarshal(msg, &ack); err == nil && ack.Success != nil {
		if !*ack.Success {
			// Auth rejection never recovers by retrying with the same
			// credentials; surface it loudly.
			slog.Error("stream op rejected",
				slog.String("topic", w.topic), slog.String("op", ack.Op), slog.String("retMsg", ack.RetMsg))
			infra.GlobalMetrics.RecordError()
		}
		return
	}

	var sm streamMessage
	if err := json.Unmarshal(msg, &sm); err != nil || sm.Topic != w.topic {
		return
	}

	switch w.kind {
	case StreamOrder:
		w.emitOrders(sm.Data)
	case StreamExecution:
		w.emitExecutions(sm.Data)
	case StreamPosition:
		w.emitPositions(sm.Data)
	}
}

func (w *PrivateWorker) emitOrders(data json.RawMessage) {
	var rows []wsOrder
	if err := json.Unmarshal(data, &rows); err != nil {
		slog.Warn("bad order payload", slog.Any("error", err))
		return
	}

	orders := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		if row.Symbol != w.symbol || (row.Category != "" && row.Category != w.category) {
			continue
		}
		orders = append(orders, row.toDomain())
	}
	// Exchange batches are not ordered; apply oldest first.
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].UpdatedTime < orders[j].UpdatedTime
	})

	for _, o := range orders {
		ev := event.AcquireOrderUpdateEvent()
		ev.Seq = event.NextSeq(w.seq)
		ev.Ts = o.UpdatedTime
		ev.Order = o
		w.send(ev)
	}
}

func (w *PrivateWorker) emitExecutions(data json.RawMessage) {
	var rows []wsExecution
	if err := json.Unmarshal(data, &rows); err != nil {
		slog.Warn("bad execution payload", slog.Any("error", err))
		return
	}

	execs := make([]domain.Execution, 0, len(rows))
	for _, row := range rows {
		if row.Symbol != w.symbol || (row.Category != "" && row.Category != w.category) {
			continue
		}
		execs = append(execs, row.toDomain())
	}
	sort.Slice(execs, func(i, j int) bool {
		return execs[i].ExecTime < execs[j].ExecTime
	})

	for _, e := range execs {
		ev := event.AcquireExecutionEvent()
		ev.Seq = event.NextSeq(w.seq)
		ev.Ts = e.ExecTime
		ev.Exec = e
		w.send(ev)
	}
}

func (w *PrivateWorker) emitPositions(data json.RawMessage) {
	var rows []wsPosition
	if err := json.Unmarshal(data, &rows); err != nil {
		slog.Warn("bad position payload", slog.Any("error", err))
		return
	}

	for _, row := range rows {
		if row.Symbol != w.symbol || (row.Category != "" && row.Category != w.category) {
			continue
		}
		ev := event.AcquirePositionUpdateEvent()
		ev.Seq = event.NextSeq(w.seq)
		ev.Ts = parseMillis(row.UpdatedTime)
		ev.Symbol = row.Symbol
		ev.SignedQty = row.signedQty()
		w.send(ev)
	}
}

// send delivers to the inbox, blocking: private events must not be shed.
func (w *PrivateWorker) send(ev event.Event) {
	w.inbox <- ev
}

// IsConnected reports whether the socket is live.
func (w *PrivateWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *PrivateWorker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// Disconnect stops the worker and waits for its goroutines to exit.
func (w *PrivateWorker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
