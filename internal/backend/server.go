package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/eachlabs/steer/internal/protocol"
)

// Server accepts bot connections on /ws and answers each message through a
// Router.
type Server struct {
	router   *Router
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	srv      *http.Server
	conns    map[*websocket.Conn]struct{}
}

// NewServer creates a server answering with router.
func NewServer(router *Router, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router: router,
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = ln
	s.srv = srv
	s.mu.Unlock()

	s.logger.Info("bot server listening", zap.String("addr", ln.Addr().String()), zap.Strings("rules", s.router.Rules()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.shutdown()
	}
}

// Addr returns the listening address once serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) shutdown() error {
	s.mu.Lock()
	srv := s.srv
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	// Hijacked websocket connections are not closed by Shutdown.
	deadline := time.Now().Add(time.Second)
	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		_ = c.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("bot server stopping")
	return srv.Shutdown(ctx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, prefix := range []string{"http://localhost", "http://127.0.0.1", "https://localhost", "https://127.0.0.1"} {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	s.logger.Warn("rejected websocket from disallowed origin", zap.String("origin", origin))
	return false
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Hello, World!"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	logger := s.logger.With(zap.String("conn", uuid.New().String()[:8]))
	logger.Info("new connection", zap.String("remote", r.RemoteAddr))

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
		logger.Info("connection closed")
	}()

	s.serveConn(conn, logger)
}

func (s *Server) serveConn(conn *websocket.Conn, logger *zap.Logger) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("read ended", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		msg := protocol.DecodeOutbound(data)
		fb, rule, err := s.router.Reply(msg)
		if err != nil {
			logger.Error("rule failed", zap.String("rule", rule), zap.Error(err))
			fb = protocol.NewFeedback("", protocol.PrintText{Text: "Sorry, something went wrong."})
		}

		reply, err := encodeReply(fb)
		if err != nil {
			logger.Error("failed to encode reply", zap.Error(err))
			continue
		}

		logger.Debug("reply",
			zap.String("location", msg.Location),
			zap.String("rule", rule),
			zap.Int("actions", len(fb.Actions)),
		)

		if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
			logger.Debug("write failed", zap.Error(err))
			return
		}
	}
}

// encodeReply sends a lone action without a message as the bare
// single-action envelope, and everything else as a batch.
func encodeReply(fb *protocol.Feedback) ([]byte, error) {
	if _, hasText := fb.Text(); !hasText && len(fb.Actions) == 1 {
		return protocol.MarshalAction(fb.Actions[0])
	}
	return protocol.Marshal(fb)
}
