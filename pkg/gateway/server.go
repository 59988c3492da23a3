package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/aegis/copilot/internal/observability"
	"github.com/aegis/copilot/internal/tracing"
	"github.com/aegis/copilot/pkg/chat"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultMaxBodyBytes    = 1 << 20
	defaultShutdownTimeout = 30 * time.Second
)

// TurnHandler runs one chat turn
type TurnHandler interface {
	HandleTurn(ctx context.Context, req chat.TurnRequest) (*chat.TurnResult, error)
}

// SessionCounter reports how many sessions are held
type SessionCounter interface {
	Len() int
}

// Server is the chat gateway
type Server struct {
	host            string
	port            int
	dispatcher      TurnHandler
	sessions        SessionCounter
	authHandler     *AuthHandler
	rateLimiter     *RateLimiter
	proxies         *TrustedProxies
	clients         *ClientRegistry
	upgrader        websocket.Upgrader
	maxBodyBytes    int64
	turnTimeout     time.Duration
	shutdownTimeout time.Duration
	logger          zerolog.Logger
	startTime       time.Time

	server   *http.Server
	listener net.Listener

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Host               string
	Port               int
	Dispatcher         TurnHandler
	Sessions           SessionCounter
	SharedSecret       string
	RateLimitPerMinute int
	MaxBodyBytes       int64
	TurnTimeout        time.Duration
	ShutdownTimeout    time.Duration
	// TrustedProxies are IPs or CIDRs allowed to set X-Forwarded-For and X-Real-IP
	TrustedProxies []string
	Logger         zerolog.Logger
}

// NewServer creates a new gateway server. Port 0 picks a free port on Start.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	proxies, err := ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	observability.EnsureRegistered()

	return &Server{
		proxies:         proxies,
		host:            cfg.Host,
		port:            cfg.Port,
		dispatcher:      cfg.Dispatcher,
		sessions:        cfg.Sessions,
		authHandler:     NewAuthHandler(cfg.SharedSecret),
		rateLimiter:     NewRateLimiter(cfg.RateLimitPerMinute),
		clients:         NewClientRegistry(),
		maxBodyBytes:    cfg.MaxBodyBytes,
		turnTimeout:     cfg.TurnTimeout,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          cfg.Logger,
		startTime:       time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}, nil
}

// Handler returns the routed handler with request context and panic recovery
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", observability.MetricsHandler())

	return s.withRequestContext(s.recoverer(mux))
}

// Start listens and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting gateway server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop refuses new work, waits for in-flight turns, then closes connections
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(s.shutdownTimeout):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	for _, client := range s.clients.Connections() {
		_ = client.Conn.Close()
	}

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

// GetConnectedClients returns information about all WebSocket clients
func (s *Server) GetConnectedClients() []ClientInfo {
	return s.clients.Snapshot()
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}

// withRequestContext attaches trace and request IDs from headers, or fresh ones
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if traceID := r.Header.Get("X-Trace-Id"); traceID != "" {
			ctx = tracing.WithTraceID(ctx, traceID)
		}
		if requestID := r.Header.Get("X-Request-Id"); requestID != "" {
			ctx = tracing.WithRequestID(ctx, requestID)
		}
		ctx = tracing.NewRequestContext(ctx)

		w.Header().Set("X-Request-Id", tracing.GetRequestID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger := tracing.LoggerFromContext(r.Context(), s.logger)
				logger.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("Recovered from handler panic")
				s.writeError(w, "http", chat.Internal(fmt.Errorf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status":      "ok",
		"uptime":      time.Since(s.startTime).Seconds(),
		"connections": s.clients.Count(),
	}
	if s.sessions != nil {
		response["sessions"] = s.sessions.Len()
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.shuttingDown() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	ctx := r.Context()
	logger := tracing.LoggerFromContext(ctx, s.logger)

	if !s.authHandler.Authorize(r) {
		logger.Warn().Str("ip", s.clientIP(r)).Msg("Rejected unauthorized chat request")
		observability.RecordSecurityAudit(ctx, "auth_rejected", s.clientIP(r), "failure", map[string]any{"transport": "http"})
		s.writeError(w, "http", &chat.Error{Kind: KindUnauthorized, Message: "unauthorized"})
		return
	}

	ip := s.clientIP(r)
	if ok, retryAfter := s.rateLimiter.Allow(ip); !ok {
		logger.Warn().Str("ip", ip).Dur("retry_after", retryAfter).Msg("Rate limit exceeded")
		observability.RecordSecurityAudit(ctx, "rate_limited", ip, "failure", map[string]any{"transport": "http"})
		w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(retryAfter)))
		s.writeError(w, "http", &chat.Error{Kind: KindRateLimited, Message: "rate limit exceeded"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		s.writeError(w, "http", &chat.Error{Kind: KindInvalidRequest, Message: "failed to read request body", Err: err})
		return
	}

	req, err := DecodeChatRequest(body)
	if err != nil {
		s.writeError(w, "http", &chat.Error{Kind: KindInvalidRequest, Message: err.Error()})
		return
	}

	result, err := s.runTurn(ctx, req)
	if err != nil {
		s.writeError(w, "http", err)
		return
	}

	observability.RecordHTTPRequest("http", http.StatusOK)
	writeJSON(w, http.StatusOK, ChatResponse{Response: result.Reply, SessionID: result.SessionID})
}

// runTurn calls the dispatcher and converts a panic into an internal error
func (s *Server) runTurn(ctx context.Context, req ChatRequest) (result *chat.TurnResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger := tracing.LoggerFromContext(ctx, s.logger)
			logger.Error().
				Interface("panic", rec).
				Msg("Recovered from turn panic")
			result = nil
			err = chat.Internal(fmt.Errorf("panic: %v", rec))
		}
	}()

	if s.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.turnTimeout)
		defer cancel()
	}

	return s.dispatcher.HandleTurn(ctx, req.turn())
}

func (s *Server) writeError(w http.ResponseWriter, transport string, err error) {
	detail := errorDetail(err)
	status := StatusForKind(detail.Kind)
	observability.RecordHTTPRequest(transport, status)
	writeJSON(w, status, ErrorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) clientIP(r *http.Request) string {
	return s.proxies.ClientIP(r)
}

func retrySeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
