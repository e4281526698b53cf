package pumpportal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/copybot/internal/domain"
)

const (
	// wsWriteWait is the time allowed to write a message to the peer.
	wsWriteWait = 10 * time.Second

	// wsPongWait is the time allowed to read the next pong message.
	wsPongWait = 30 * time.Second

	// wsPingPeriod sends pings at this interval. Must be less than pongWait.
	wsPingPeriod = (wsPongWait * 9) / 10

	// wsReconnectDelay is the base delay before attempting to reconnect.
	wsReconnectDelay = 2 * time.Second

	// wsMaxReconnectDelay caps the exponential backoff.
	wsMaxReconnectDelay = 60 * time.Second
)

// WSClient streams account trade events from the PumpPortal data API.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	// Tracked wallet subscriptions for reconnection.
	subscribedWallets []string

	handlerMu sync.RWMutex
	handlers  []func(domain.TraderTrade)

	// done is closed when the client shuts down.
	done chan struct{}
}

// NewWSClient creates a WebSocket client for the PumpPortal data stream.
//
// wsURL is the endpoint, e.g. "wss://pumpportal.fun/api/data".
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL: wsURL,
		done:  make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("pumpportal/ws: client is closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("pumpportal/ws: connect: %w", err)
	}

	w.conn = conn

	w.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	go w.readLoop()
	go w.pingLoop()

	// Re-subscribe to any previously tracked wallets.
	if len(w.subscribedWallets) > 0 {
		if err := w.sendSubscribe(w.subscribedWallets); err != nil {
			return fmt.Errorf("pumpportal/ws: restore subscriptions: %w", err)
		}
	}

	return nil
}

// SubscribeAccountTrades subscribes to trade events for the given wallets.
func (w *WSClient) SubscribeAccountTrades(ctx context.Context, wallets []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("pumpportal/ws: not connected")
	}

	if err := w.sendSubscribe(wallets); err != nil {
		return fmt.Errorf("pumpportal/ws: subscribe: %w", err)
	}

	existing := make(map[string]struct{}, len(w.subscribedWallets))
	for _, wl := range w.subscribedWallets {
		existing[wl] = struct{}{}
	}
	for _, wl := range wallets {
		if _, ok := existing[wl]; !ok {
			w.subscribedWallets = append(w.subscribedWallets, wl)
		}
	}

	return nil
}

// UnsubscribeAccountTrades stops trade events for the given wallets.
func (w *WSClient) UnsubscribeAccountTrades(ctx context.Context, wallets []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("pumpportal/ws: not connected")
	}

	cmd := subscribeCmd{Method: "unsubscribeAccountTrade", Keys: wallets}
	w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("pumpportal/ws: marshal unsubscribe: %w", err)
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("pumpportal/ws: unsubscribe: %w", err)
	}

	drop := make(map[string]struct{}, len(wallets))
	for _, wl := range wallets {
		drop[wl] = struct{}{}
	}
	kept := w.subscribedWallets[:0]
	for _, wl := range w.subscribedWallets {
		if _, ok := drop[wl]; !ok {
			kept = append(kept, wl)
		}
	}
	w.subscribedWallets = kept

	return nil
}

// OnTrade registers a handler called for every trade event.
func (w *WSClient) OnTrade(handler func(domain.TraderTrade)) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Close shuts down the WebSocket connection.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// sendSubscribe sends a subscribeAccountTrade command. Caller must hold w.mu.
func (w *WSClient) sendSubscribe(wallets []string) error {
	cmd := subscribeCmd{Method: "subscribeAccountTrade", Keys: wallets}

	w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal subscribe: %w", err)
	}

	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop continuously reads messages from the WebSocket and dispatches
// them to handlers. On disconnect it attempts reconnection.
func (w *WSClient) readLoop() {
	defer func() {
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}

			w.reconnect()
			return
		}

		w.handleMessage(message)
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			w.mu.RUnlock()

			if conn == nil {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw WebSocket message and routes trade events.
// Acknowledgements and informational messages carry no signature field and
// are dropped.
func (w *WSClient) handleMessage(raw []byte) {
	var event tradeEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return
	}
	if event.Signature == "" || event.TxType == "" {
		return
	}

	trade, ok := event.toDomain(time.Now())
	if !ok {
		return
	}

	w.handlerMu.RLock()
	handlers := w.handlers
	w.handlerMu.RUnlock()

	for _, h := range handlers {
		h(trade)
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff.
func (w *WSClient) reconnect() {
	delay := wsReconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > wsMaxReconnectDelay {
			delay = wsMaxReconnectDelay
		}
	}
}
