package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketTransport implements Transport over one WebSocket connection.
type WebSocketTransport struct {
	conn   *websocket.Conn
	config WebSocketConfig
	recv   chan *InboundMessage
	outbox

	// wmu serializes data frames; gorilla allows one concurrent writer.
	wmu sync.Mutex
}

// WebSocketConfig holds WebSocket transport configuration.
type WebSocketConfig struct {
	Config

	// WriteTimeout for write operations.
	WriteTimeout time.Duration

	// PongWait is how long the peer may stay silent before the connection
	// is considered dead (0 = no read deadline). Pongs extend it.
	PongWait time.Duration

	// MaxMessageSize limits incoming message size.
	MaxMessageSize int64

	// PingInterval for keepalive pings (0 = disabled).
	PingInterval time.Duration
}

// DefaultWebSocketConfig returns configuration with sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		Config:         DefaultConfig(),
		WriteTimeout:   10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 1024 * 1024,
		PingInterval:   30 * time.Second,
	}
}

// NewWebSocketTransport creates a transport from an existing connection.
func NewWebSocketTransport(conn *websocket.Conn, cfg WebSocketConfig) *WebSocketTransport {
	cfg.Config = cfg.Config.withDefaults()
	if cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &WebSocketTransport{
		conn:   conn,
		config: cfg,
		recv:   make(chan *InboundMessage, cfg.RecvBufferSize),
		outbox: newOutbox(cfg.SendBufferSize),
	}
}

// NewWebSocketUpgrader creates an upgrader for accepting WebSocket
// connections. A nil checkOrigin accepts any origin.
func NewWebSocketUpgrader(checkOrigin func(r *http.Request) bool) *websocket.Upgrader {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
}

// Recv returns the channel for incoming messages. It is closed when the
// peer hangs up or stays silent past PongWait.
func (t *WebSocketTransport) Recv() <-chan *InboundMessage { return t.recv }

// Send queues a message for delivery.
func (t *WebSocketTransport) Send(msg *OutboundMessage) error { return t.push(msg) }

// Run blocks until ctx is cancelled. Queued messages are written before
// the close frame goes out.
func (t *WebSocketTransport) Run(ctx context.Context) error {
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		t.readFrames(ctx)
	}()

	var tick <-chan time.Time
	if t.config.PingInterval > 0 {
		ticker := time.NewTicker(t.config.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		t.pump(ctx, t.writeFrame, tick, t.ping)
	}()

	<-ctx.Done()
	<-writeDone
	t.Close()
	<-readDone

	return ctx.Err()
}

// Close sends a normal-closure frame and closes the connection. Later
// calls are no-ops.
func (t *WebSocketTransport) Close() error {
	if !t.shut() {
		return nil
	}
	bye := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	t.conn.WriteControl(websocket.CloseMessage, bye, time.Now().Add(time.Second))
	return t.conn.Close()
}

func (t *WebSocketTransport) readFrames(ctx context.Context) {
	defer close(t.recv)

	if wait := t.config.PongWait; wait > 0 {
		t.conn.SetReadDeadline(time.Now().Add(wait))
		t.conn.SetPongHandler(func(string) error {
			return t.conn.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		_, frame, err := t.conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := ParseInbound(frame)
		if err != nil {
			t.Send(parseErrorResponse(frame, err))
			continue
		}

		select {
		case t.recv <- msg:
		case <-ctx.Done():
			return
		case <-t.done:
			return
		}
	}
}

func (t *WebSocketTransport) ping() {
	if t.isClosed() {
		return
	}
	t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
}

func (t *WebSocketTransport) writeFrame(msg *OutboundMessage) {
	data, err := MarshalOutbound(msg)
	if err != nil || t.isClosed() {
		return
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()
	if t.config.WriteTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
	}
	t.conn.WriteMessage(websocket.TextMessage, data)
}
