// Package api serves content queries over HTTP: REST routes with the standard
// JSON envelope, a POST /invoke command endpoint and a WebSocket bridge that
// answers the same commands.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/FocuswithJustin/JuniperReader/core/content"
	"github.com/FocuswithJustin/JuniperReader/internal/commands"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
	"github.com/FocuswithJustin/JuniperReader/internal/server"
)

// Server serves a resolver's content.
type Server struct {
	cfg      Config
	resolver *content.Resolver
	surface  *commands.Surface
	hub      *Hub
	limiter  *RateLimiter
	started  time.Time
}

// New creates a Server over resolver.
func New(cfg Config, resolver *content.Resolver) *Server {
	s := &Server{
		cfg:      cfg,
		resolver: resolver,
		surface:  commands.New(resolver),
		hub:      NewHub(),
		started:  time.Now(),
	}
	if cfg.RateLimitRequests > 0 {
		burst := cfg.RateLimitBurst
		if burst == 0 {
			burst = 10 // Default burst size
		}
		s.limiter = NewRateLimiter(RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitRequests,
			BurstSize:         burst,
		})
	}
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := s.routes()

	// Build middleware chain with security headers
	var handler http.Handler = server.SecurityHeadersWithCSP(server.APICSPConfig(), mux)

	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}

	// Apply CORS middleware (outermost)
	handler = server.CORSMiddlewareWithConfig(server.CORSConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
		MaxAge:         10 * time.Minute,
	}, handler)

	handler = server.TimingMiddleware(500*time.Millisecond, handler)
	return logging.CombinedMiddleware(handler)
}

// routes configures all HTTP routes.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/languages", s.handleLanguages)
	mux.HandleFunc("/languages/{code}/translations/{folder}/books", s.handleBooks)
	mux.HandleFunc("/languages/{code}/translations/{folder}/books/{abbr}/chapters/{chapter}", s.handleChapter)
	mux.HandleFunc("/invoke", s.handleInvoke)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.limiter != nil {
		go s.limiter.Cleanup(ctx)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logStartup(ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), timeout)
	defer cancelShutdown()

	logging.Info("shutting down server", "addr", ln.Addr().String())
	s.hub.CloseAll()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) logStartup(addr string) {
	root, err := s.resolver.Root()
	if err != nil {
		logging.Warn("content root unavailable", "error", err.Error())
	}
	logging.ServerStartup("content_api", addr,
		"websocket_path", "/ws",
		"content_root", root)

	if len(s.cfg.AllowedOrigins) > 0 {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "restricted",
			"allowed_origins_count", len(s.cfg.AllowedOrigins))
	} else {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "permissive",
			"note", "allowing all origins (*)")
	}
	if s.limiter != nil {
		logging.Info("rate limiting enabled",
			"requests_per_minute", s.cfg.RateLimitRequests,
			"burst_size", s.limiter.config.BurstSize)
	}
}

// Start serves cfg until ctx is cancelled.
func Start(ctx context.Context, cfg Config, resolver *content.Resolver) error {
	return New(cfg, resolver).ListenAndServe(ctx)
}
