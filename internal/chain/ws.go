package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/copybot/internal/domain"
)

const (
	wsWriteWait = 10 * time.Second

	wsPongWait = 30 * time.Second

	// wsPingPeriod must be less than wsPongWait.
	wsPingPeriod = (wsPongWait * 9) / 10

	wsReconnectDelay = 2 * time.Second

	wsMaxReconnectDelay = 60 * time.Second
)

// SignatureHandler is called when a watched signature settles.
type SignatureHandler func(domain.SignatureEvent)

// Watcher subscribes to signature confirmations over the node's WebSocket
// endpoint. A signatureSubscribe fires once and the node drops the
// subscription, so the watcher only tracks in-flight signatures for
// re-subscription after a reconnect.
type Watcher struct {
	wsURL  string
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	cmdID int64
	// pendingAcks maps request id to signature until the node acknowledges
	// the subscription; bySubID maps live subscription ids back to their
	// signature.
	pendingAcks map[int64]string
	bySubID     map[int64]string
	watched     map[string]struct{}

	handlerMu sync.RWMutex
	handlers  []SignatureHandler

	done chan struct{}
}

// NewWatcher creates a signature watcher for the node's WebSocket URL.
func NewWatcher(wsURL string, logger *slog.Logger) *Watcher {
	return &Watcher{
		wsURL:       wsURL,
		logger:      logger.With(slog.String("component", "signature_watcher")),
		pendingAcks: make(map[int64]string),
		bySubID:     make(map[int64]string),
		watched:     make(map[string]struct{}),
		done:        make(chan struct{}),
	}
}

// OnSignature registers a handler for settled signatures.
func (w *Watcher) OnSignature(h SignatureHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Connect dials the node and starts the read and ping loops.
func (w *Watcher) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("chain: watcher is closed")
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("chain: ws connect: %w", err)
	}

	w.conn = conn
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	go w.readLoop(conn)
	go w.pingLoop(conn)

	// Re-subscribe signatures that were in flight when the previous
	// connection dropped.
	for sig := range w.watched {
		if err := w.sendSubscribeLocked(sig); err != nil {
			return fmt.Errorf("chain: restore signature subscriptions: %w", err)
		}
	}
	return nil
}

// WatchSignature subscribes to confirmation of one signature.
func (w *Watcher) WatchSignature(signature string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("chain: watcher not connected: %w", domain.ErrWSDisconnect)
	}
	if _, dup := w.watched[signature]; dup {
		return nil
	}
	if err := w.sendSubscribeLocked(signature); err != nil {
		return err
	}
	w.watched[signature] = struct{}{}
	return nil
}

func (w *Watcher) sendSubscribeLocked(signature string) error {
	w.cmdID++
	id := w.cmdID
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "signatureSubscribe",
		Params:  []any{signature, map[string]string{"commitment": "confirmed"}},
	}

	w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := w.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("chain: subscribe signature %s: %w", signature, err)
	}
	w.pendingAcks[id] = signature
	return nil
}

// Close shuts the watcher down permanently.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

func (w *Watcher) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			closed := w.closed
			if w.conn == conn {
				w.conn = nil
			}
			w.mu.Unlock()

			if closed {
				return
			}
			w.logger.Warn("websocket read failed, reconnecting", slog.Any("error", err))
			w.reconnect()
			return
		}
		w.handleMessage(data)
	}
}

func (w *Watcher) handleMessage(data []byte) {
	var msg wsNotification
	if err := json.Unmarshal(data, &msg); err != nil {
		w.logger.Debug("unparseable websocket message", slog.Any("error", err))
		return
	}

	// Subscription acknowledgement: map the subscription id to its
	// signature.
	if msg.Method == "" && msg.ID != 0 {
		w.mu.Lock()
		sig, ok := w.pendingAcks[msg.ID]
		delete(w.pendingAcks, msg.ID)
		if ok && msg.Error == nil {
			var subID int64
			if err := json.Unmarshal(msg.Result, &subID); err == nil {
				w.bySubID[subID] = sig
			}
		}
		w.mu.Unlock()
		return
	}

	if msg.Method != "signatureNotification" {
		return
	}

	var result signatureNotifyResult
	if err := json.Unmarshal(msg.Params.Result, &result); err != nil {
		w.logger.Debug("unparseable signature notification", slog.Any("error", err))
		return
	}

	w.mu.Lock()
	sig, ok := w.bySubID[msg.Params.Subscription]
	delete(w.bySubID, msg.Params.Subscription)
	delete(w.watched, sig)
	w.mu.Unlock()
	if !ok {
		return
	}

	ev := domain.SignatureEvent{
		Signature: sig,
		Status:    domain.SignatureStatusConfirmed,
		Slot:      result.Context.Slot,
		At:        time.Now(),
	}
	if len(result.Value.Err) > 0 && string(result.Value.Err) != "null" {
		ev.Status = domain.SignatureStatusFailed
		ev.Err = string(result.Value.Err)
	}

	w.handlerMu.RLock()
	handlers := w.handlers
	w.handlerMu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (w *Watcher) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reconnect re-dials with capped exponential backoff until Close or
// success.
func (w *Watcher) reconnect() {
	delay := wsReconnectDelay
	for {
		select {
		case <-w.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		err := w.Connect(ctx)
		cancel()
		if err == nil {
			w.logger.Info("websocket reconnected")
			return
		}

		w.logger.Warn("websocket reconnect failed", slog.Any("error", err))
		delay *= 2
		if delay > wsMaxReconnectDelay {
			delay = wsMaxReconnectDelay
		}
	}
}
