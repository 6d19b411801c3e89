// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     voiceassistant
// Description: Gateway connection management with reconnect and queueing
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package voiceassistant

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/msto63/sprechwerk/internal/protocol"
	"github.com/msto63/sprechwerk/pkg/core/logging"
)

// ConnState represents the transport connection state
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
	ConnReconnecting
	ConnFailed
)

// String returns the connection state name
func (s ConnState) String() string {
	switch s {
	case ConnDisconnected:
		return "disconnected"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnReconnecting:
		return "reconnecting"
	case ConnFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TransportConfig holds transport configuration
type TransportConfig struct {
	URL                   string
	Token                 string
	HandshakeTimeout      time.Duration
	InitialReconnectDelay time.Duration
	MaxReconnectDelay     time.Duration
	MaxReconnectAttempts  int
	QueueSize             int
	PingInterval          time.Duration
	PongWait              time.Duration
}

// DefaultTransportConfig returns default transport configuration
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		HandshakeTimeout:      10 * time.Second,
		InitialReconnectDelay: 1 * time.Second,
		MaxReconnectDelay:     30 * time.Second,
		MaxReconnectAttempts:  5,
		QueueSize:             256,
		PingInterval:          30 * time.Second,
		PongWait:              75 * time.Second,
	}
}

// Transport manages the WebSocket connection to the voice gateway.
// Messages sent while disconnected are queued in order and flushed
// exactly once when the connection comes back. Reconnects back off
// exponentially and give up after MaxReconnectAttempts.
type Transport struct {
	cfg    TransportConfig
	logger *logging.Logger

	mu             sync.Mutex
	conn           *websocket.Conn
	state          ConnState
	pending        []protocol.Message
	reconnectTimer *time.Timer
	attempts       int
	lastErr        error

	writeMu sync.Mutex

	onMessage     func(protocol.Message)
	onStateChange func(ConnState)
}

// NewTransport creates a transport for the given gateway
func NewTransport(cfg TransportConfig) *Transport {
	return &Transport{
		cfg:    cfg,
		logger: logging.New("voice-transport"),
		state:  ConnDisconnected,
	}
}

// OnMessage sets the inbound message callback. Must be called before
// Connect.
func (t *Transport) OnMessage(fn func(protocol.Message)) {
	t.onMessage = fn
}

// OnStateChange sets the connection state callback. Must be called
// before Connect.
func (t *Transport) OnStateChange(fn func(ConnState)) {
	t.onStateChange = fn
}

// State returns the current connection state
func (t *Transport) State() ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the last connection error, set when the transport enters
// the failed state
func (t *Transport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Connect establishes the gateway connection. Calling Connect while a
// connection attempt is in progress or already established is a no-op.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.state == ConnConnected || t.state == ConnConnecting {
		t.mu.Unlock()
		return nil
	}
	if t.reconnectTimer != nil {
		t.reconnectTimer.Stop()
		t.reconnectTimer = nil
	}
	t.setStateLocked(ConnConnecting)
	t.mu.Unlock()

	return t.dial(ctx)
}

// dial performs one connection attempt and schedules a retry on failure
func (t *Transport) dial(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: t.cfg.HandshakeTimeout,
	}

	header := http.Header{}
	if t.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+t.cfg.Token)
	}

	conn, _, err := dialer.DialContext(ctx, t.cfg.URL, header)
	if err != nil {
		t.logger.Warn("connection attempt failed", "url", t.cfg.URL, "error", err)
		t.scheduleReconnect(err)
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.attempts = 0
	t.lastErr = nil
	t.setStateLocked(ConnConnected)
	t.mu.Unlock()

	t.logger.Info("connected to gateway", "url", t.cfg.URL)

	if t.cfg.PingInterval > 0 {
		conn.SetReadDeadline(time.Now().Add(t.cfg.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(t.cfg.PongWait))
		})
		go t.pingLoop(conn)
	}

	go t.readLoop(conn)
	t.flushPending()

	return nil
}

// pingLoop keeps the connection alive. A missed pong lets the read
// deadline expire, which surfaces as a read error and triggers the
// normal reconnect path.
func (t *Transport) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for range ticker.C {
		t.mu.Lock()
		stillCurrent := t.conn == conn
		t.mu.Unlock()
		if !stillCurrent {
			return
		}
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
			return
		}
	}
}

// scheduleReconnect arms the backoff timer, or enters the failed state
// when the attempt budget is exhausted
func (t *Transport) scheduleReconnect(cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == ConnDisconnected {
		// Disconnect was requested, stay down
		return
	}

	if t.attempts >= t.cfg.MaxReconnectAttempts {
		t.lastErr = fmt.Errorf("gateway unreachable after %d attempts: %w", t.attempts, cause)
		t.logger.Error("giving up on gateway connection",
			"attempts", t.attempts,
			"error", cause,
		)
		t.setStateLocked(ConnFailed)
		return
	}

	delay := t.backoffDelay()
	t.attempts++
	t.setStateLocked(ConnReconnecting)

	t.logger.Info("scheduling reconnect",
		"attempt", t.attempts,
		"delay", delay,
	)

	t.reconnectTimer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		if t.state != ConnReconnecting {
			t.mu.Unlock()
			return
		}
		t.setStateLocked(ConnConnecting)
		t.mu.Unlock()
		t.dial(context.Background())
	})
}

// backoffDelay doubles the initial delay per attempt up to the cap.
// Caller holds t.mu.
func (t *Transport) backoffDelay() time.Duration {
	delay := t.cfg.InitialReconnectDelay
	for i := 0; i < t.attempts; i++ {
		delay *= 2
		if delay >= t.cfg.MaxReconnectDelay {
			return t.cfg.MaxReconnectDelay
		}
	}
	return delay
}

// readLoop delivers inbound messages until the connection drops
func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.mu.Lock()
			stillCurrent := t.conn == conn
			if stillCurrent {
				t.conn = nil
			}
			requested := t.state == ConnDisconnected
			t.mu.Unlock()

			if stillCurrent && !requested {
				t.logger.Warn("connection lost", "error", err)
				t.scheduleReconnect(err)
			}
			return
		}

		if t.onMessage != nil {
			t.onMessage(msg)
		}
	}
}

// Send delivers a message to the gateway, queueing it in order when the
// connection is down. Sending while fully disconnected starts a
// connection attempt. Queued messages are flushed exactly once on
// connect; when the queue is full the oldest message is dropped.
func (t *Transport) Send(msg protocol.Message) error {
	t.mu.Lock()
	if t.state == ConnFailed {
		err := t.lastErr
		t.mu.Unlock()
		return err
	}
	if t.state != ConnConnected || t.conn == nil {
		t.enqueueLocked(msg)
		kick := t.state == ConnDisconnected
		if kick {
			t.setStateLocked(ConnConnecting)
		}
		t.mu.Unlock()
		if kick {
			go t.dial(context.Background())
		}
		return nil
	}
	conn := t.conn
	t.mu.Unlock()

	if err := t.writeConn(conn, msg); err != nil {
		// Queue it for the next connection and trigger recovery
		t.mu.Lock()
		t.enqueueLocked(msg)
		if t.conn == conn {
			t.conn = nil
			conn.Close()
		}
		t.mu.Unlock()
		t.scheduleReconnect(err)
		return nil
	}
	return nil
}

// enqueueLocked appends to the FIFO queue, dropping the oldest entry
// when full. Caller holds t.mu.
func (t *Transport) enqueueLocked(msg protocol.Message) {
	if len(t.pending) >= t.cfg.QueueSize {
		t.pending = t.pending[1:]
		t.logger.Warn("outbound queue full, dropping oldest message")
	}
	t.pending = append(t.pending, msg)
}

// flushPending sends queued messages in FIFO order. Messages that fail
// to send are put back at the head of the queue.
func (t *Transport) flushPending() {
	t.mu.Lock()
	if len(t.pending) == 0 || t.conn == nil {
		t.mu.Unlock()
		return
	}
	queued := t.pending
	t.pending = nil
	conn := t.conn
	t.mu.Unlock()

	t.logger.Info("flushing queued messages", "count", len(queued))

	for i, msg := range queued {
		if err := t.writeConn(conn, msg); err != nil {
			t.mu.Lock()
			t.pending = append(queued[i:], t.pending...)
			t.mu.Unlock()
			return
		}
	}
}

func (t *Transport) writeConn(conn *websocket.Conn, msg protocol.Message) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// Disconnect tears down the connection, cancels any pending reconnect
// and discards all queued messages
func (t *Transport) Disconnect() {
	t.mu.Lock()
	if t.reconnectTimer != nil {
		t.reconnectTimer.Stop()
		t.reconnectTimer = nil
	}
	t.pending = nil
	t.attempts = 0
	t.lastErr = nil
	conn := t.conn
	t.conn = nil
	t.setStateLocked(ConnDisconnected)
	t.mu.Unlock()

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}
}

// QueueLen returns the number of queued outbound messages
func (t *Transport) QueueLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// setStateLocked updates the state and notifies. Caller holds t.mu.
func (t *Transport) setStateLocked(next ConnState) {
	if t.state == next {
		return
	}
	t.state = next
	if t.onStateChange != nil {
		go t.onStateChange(next)
	}
}
