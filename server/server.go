// Package server hosts the JSON-RPC handler over HTTP: a health probe and
// an authenticated WebSocket endpoint where each connection is bound to
// the account named by its bearer token.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vinayprograms/todokit/identity"
	"github.com/vinayprograms/todokit/logging"
	"github.com/vinayprograms/todokit/telemetry"
	"github.com/vinayprograms/todokit/transport"
)

// Routes.
const (
	HealthPath = "/healthz"
	RPCPath    = "/rpc"
)

// DefaultAddr is used when Config.Addr is empty.
const DefaultAddr = ":8080"

// TokenVerifier maps a bearer token to the account it was issued for.
type TokenVerifier interface {
	Verify(token string) (identity.AccountID, error)
}

// Config holds server configuration.
type Config struct {
	// Addr to listen on. Default: ":8080"
	Addr string

	// Handler answers JSON-RPC calls. Required.
	Handler transport.Handler

	// Verifier authenticates connections. Required.
	Verifier TokenVerifier

	// Logger for connection logs. Default: discards output.
	Logger *logging.Logger

	// WebSocket configures each connection's transport.
	// Default: transport.DefaultWebSocketConfig()
	WebSocket *transport.WebSocketConfig

	// CheckOrigin filters browser origins. Default: any origin.
	CheckOrigin func(r *http.Request) bool
}

// Server is the HTTP host.
type Server struct {
	cfg      Config
	logger   *logging.Logger
	router   chi.Router
	upgrader *websocket.Upgrader
	http     *http.Server

	// base is cancelled on Shutdown and parents every connection context.
	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closing bool
	conns   map[string]identity.AccountID
	active  sync.WaitGroup
}

// New creates a server. It does not start listening.
func New(cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, errors.New("server: handler required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("server: verifier required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.WebSocket == nil {
		ws := transport.DefaultWebSocketConfig()
		cfg.WebSocket = &ws
	}

	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		logger:   cfg.Logger.WithComponent("server"),
		upgrader: transport.NewWebSocketUpgrader(cfg.CheckOrigin),
		base:     base,
		cancel:   cancel,
		conns:    make(map[string]identity.AccountID),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(HealthPath, s.handleHealth)
	r.Get(RPCPath, s.handleRPC)
	s.router = r

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks serving HTTP until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", map[string]interface{}{"addr": s.cfg.Addr})
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("listening", map[string]interface{}{"addr": l.Addr().String()})
	err := s.http.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, closes every open WebSocket session
// and waits for them to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)

	// Hijacked connections are not tracked by http.Server.
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.active.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// Connections reports the number of open WebSocket sessions.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	account, err := s.authenticate(r)
	if err != nil {
		s.logger.Warn("auth_rejected", map[string]interface{}{
			"remote": r.RemoteAddr,
			"error":  err.Error(),
		})
		w.Header().Set("WWW-Authenticate", `Bearer realm="todokit"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied.
		s.logger.Debug("upgrade_failed", map[string]interface{}{"error": err.Error()})
		return
	}

	id := uuid.NewString()
	if !s.track(id, account) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}
	defer s.untrack(id)

	log := s.logger.WithTraceID(id)
	t := transport.NewWebSocketTransport(conn, *s.cfg.WebSocket)

	ctx := telemetry.ExtractContext(s.base, propagation.HeaderCarrier(r.Header))
	ctx = identity.WithCaller(ctx, account)

	log.Info("session_opened", map[string]interface{}{
		"account": string(account),
		"remote":  r.RemoteAddr,
	})
	start := time.Now()
	if err := transport.Serve(ctx, t, s.cfg.Handler); err != nil {
		log.Warn("session_error", map[string]interface{}{"error": err.Error()})
	}
	log.Info("session_closed", map[string]interface{}{
		"account":  string(account),
		"duration": time.Since(start).Round(time.Millisecond).String(),
	})
}

func (s *Server) authenticate(r *http.Request) (identity.AccountID, error) {
	token, err := identity.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return "", err
	}
	return s.cfg.Verifier.Verify(token)
}

// track registers a session unless shutdown has begun.
func (s *Server) track(id string, account identity.AccountID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.active.Add(1)
	s.conns[id] = account
	return true
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
	s.active.Done()
}
