package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket is a Channel over a gorilla/websocket client connection.
type WebSocket struct {
	dialer       *websocket.Dialer
	header       http.Header
	logger       *zap.Logger
	readLimit    int64
	writeTimeout time.Duration

	// dialMu serialises Connect so two callers never open two sockets.
	dialMu sync.Mutex

	mu       sync.Mutex
	conn     *websocket.Conn
	endpoint string
	// gen identifies the current connection. Read loops of older
	// generations drop whatever they still receive.
	gen     uint64
	handler FrameHandler
	onError ErrorHandler

	writeMu sync.Mutex
}

// Option configures a WebSocket.
type Option func(*WebSocket)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *WebSocket) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDialer replaces the default dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(w *WebSocket) { w.dialer = d }
}

// WithHeader sets extra handshake headers.
func WithHeader(h http.Header) Option {
	return func(w *WebSocket) { w.header = h }
}

// WithReadLimit caps the size of an inbound frame.
func WithReadLimit(n int64) Option {
	return func(w *WebSocket) { w.readLimit = n }
}

// NewWebSocket creates a disconnected WebSocket channel.
func NewWebSocket(opts ...Option) *WebSocket {
	w := &WebSocket{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		logger:       zap.NewNop(),
		readLimit:    1 << 20,
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WebSocket) Name() string {
	return "websocket"
}

// Endpoint returns the endpoint of the open connection, or "".
func (w *WebSocket) Endpoint() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.endpoint
}

func (w *WebSocket) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil
}

func (w *WebSocket) Connect(ctx context.Context, endpoint string) error {
	w.dialMu.Lock()
	defer w.dialMu.Unlock()

	w.mu.Lock()
	if w.conn != nil {
		current := w.endpoint
		w.mu.Unlock()
		if current == endpoint {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrConnectedElsewhere, current)
	}
	// Close bumps gen; a change across the dial means it ran meanwhile.
	dialGen := w.gen
	w.mu.Unlock()

	conn, _, err := w.dialer.DialContext(ctx, endpoint, w.header)
	if err != nil {
		w.logger.Warn("connect failed", zap.String("endpoint", endpoint), zap.Error(err))
		return fmt.Errorf("channel: connect %s: %w", endpoint, err)
	}
	if w.readLimit > 0 {
		conn.SetReadLimit(w.readLimit)
	}

	w.mu.Lock()
	if w.gen != dialGen {
		w.mu.Unlock()
		_ = conn.Close()
		w.logger.Info("discarding connection closed during dial", zap.String("endpoint", endpoint))
		return fmt.Errorf("%w: %s", ErrClosedWhileConnecting, endpoint)
	}
	w.gen++
	gen := w.gen
	w.conn = conn
	w.endpoint = endpoint
	w.mu.Unlock()

	w.logger.Info("connected", zap.String("endpoint", endpoint))
	go w.readLoop(conn, gen)
	return nil
}

func (w *WebSocket) OnMessage(h FrameHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handler = h
}

func (w *WebSocket) OnError(h ErrorHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = h
}

func (w *WebSocket) Send(text string) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.writeTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		w.logger.Warn("send failed", zap.Error(err))
		return fmt.Errorf("channel: send: %w", err)
	}
	return nil
}

// SendJSON encodes v and sends it as one text frame.
func (w *WebSocket) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("channel: encode: %w", err)
	}
	return w.Send(string(data))
}

func (w *WebSocket) Close() error {
	w.mu.Lock()
	conn := w.conn
	endpoint := w.endpoint
	w.conn = nil
	w.endpoint = ""
	w.gen++
	w.mu.Unlock()

	if conn == nil {
		return nil
	}

	// Best effort; the peer may already be gone.
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)

	w.logger.Info("closed", zap.String("endpoint", endpoint))
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("channel: close: %w", err)
	}
	return nil
}

func (w *WebSocket) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			w.lost(conn, gen, err)
			return
		}

		w.mu.Lock()
		current := w.gen == gen
		handler := w.handler
		w.mu.Unlock()

		if !current {
			w.logger.Debug("dropping frame from stale connection")
			return
		}
		if msgType != websocket.TextMessage {
			w.logger.Debug("ignoring non-text frame", zap.Int("type", msgType))
			continue
		}
		if handler == nil {
			w.logger.Debug("no frame handler installed, dropping frame")
			continue
		}
		handler(data)
	}
}

// lost handles the end of a read loop. A deliberate Close has already bumped
// the generation, so only unexpected endings are reported.
func (w *WebSocket) lost(conn *websocket.Conn, gen uint64, err error) {
	w.mu.Lock()
	current := w.gen == gen
	if current {
		w.conn = nil
		w.endpoint = ""
		w.gen++
	}
	onError := w.onError
	w.mu.Unlock()

	_ = conn.Close()

	if !current {
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		w.logger.Info("connection closed by peer", zap.Error(err))
	} else {
		w.logger.Warn("connection lost", zap.Error(err))
	}

	if onError != nil {
		onError(fmt.Errorf("channel: connection lost: %w", err))
	}
}

var _ Channel = (*WebSocket)(nil)
