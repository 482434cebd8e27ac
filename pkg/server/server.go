package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/trustvibe/tea/pkg/agent"
	"github.com/trustvibe/tea/pkg/quota"
)

// TurnRunner starts one agent turn and streams its events
type TurnRunner interface {
	Stream(ctx context.Context, query string) <-chan agent.Event
}

// QuotaGate is the quota surface the server needs
type QuotaGate interface {
	EnsureSession(ctx context.Context, token string) (quota.Session, error)
	CanProceed(ctx context.Context, token string) (bool, error)
	RecordCompletion(ctx context.Context, token string) (int, error)
	Remaining(ctx context.Context, token string) (int, error)
	Limit() int
}

// Server is the Tea HTTP server
type Server struct {
	host           string
	port           int
	runner         TurnRunner
	gate           QuotaGate
	logger         zerolog.Logger
	server         *http.Server
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Host   string
	Port   int
	Runner TurnRunner
	Gate   QuotaGate
	Logger zerolog.Logger
}

// NewServer creates a Tea server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("turn runner is required")
	}
	if cfg.Gate == nil {
		return nil, fmt.Errorf("quota gate is required")
	}

	return &Server{
		host:   cfg.Host,
		port:   cfg.Port,
		runner: cfg.Runner,
		gate:   cfg.Gate,
		logger: cfg.Logger,
	}, nil
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tea/chat", s.handleChat)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start starts the server without blocking
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: s.Handler(),
	}

	s.logger.Info().Str("host", s.host).Int("port", s.port).Msg("Starting Tea server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Tea server error")
		}
	}()

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down Tea server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	s.logger.Info().Msg("Tea server stopped")
	return nil
}
