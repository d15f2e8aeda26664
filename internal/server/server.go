// Package server implements the HTTP surface of docchat: the chat endpoint
// consumed by the front end, session enumeration, the contact form, and the
// operational health, readiness and metrics endpoints.
// The server is started by the `docchat serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/docchat/internal/assistant"
)

// New constructs a Server over the chat pipeline.
func New(pipeline *assistant.Pipeline, cfg *Config) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	return newServer(pipeline, pipeline.Sessions(), cfg)
}

// newServer wires handlers around the given collaborators. Split from New so
// tests can substitute fakes.
func newServer(chat chatter, sessions sessionLister, cfg *Config) (*Server, error) {
	if chat == nil || sessions == nil {
		return nil, fmt.Errorf("server: chat and sessions must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.ChatTimeout == 0 {
		cfg.ChatTimeout = 2 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = cfg.ChatTimeout + 10*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(cfg.MetricsRegistry)
	}

	s := &Server{
		chat:     chat,
		sessions: sessions,
		contacts: cfg.Contacts,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  metrics,
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.TrustProxy, log)
	s.stopRL = stop

	limited := func(name string, h http.Handler) http.Handler { return s.requireKey(name, rl.middleware(h)) }

	mux := http.NewServeMux()
	mux.Handle("POST /chat", s.instrument("chat", limited("chat", http.HandlerFunc(s.handleChat))))
	mux.Handle("GET /sessions", s.instrument("sessions", s.requireKey("sessions", http.HandlerFunc(s.handleSessions))))
	mux.Handle("POST /user_info", s.instrument("user_info", limited("user_info", http.HandlerFunc(s.handleUserInfo))))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	if len(cfg.APIKeys) == 0 {
		log.Warn("auth disabled: DOCCHAT_API_KEY is not set")
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      corsMiddleware(cfg.CORSOrigins, requestLogger(log, mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("docchat server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.log.Info("docchat server stopped")
		return nil
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.log)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && log != nil {
		log.Error("response encode error", slog.Any("error", err))
	}
}

// writeDetail writes the single generic failure shape.
func writeDetail(w http.ResponseWriter, status int, detail string, log *slog.Logger) {
	writeJSON(w, status, errorResponse{Detail: detail}, log)
}
