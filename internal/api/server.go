package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mcoot/koragame/internal/api/sse"
	"github.com/mcoot/koragame/internal/services/timer"
)

// ServerConfig holds configuration for the HTTP server and its background
// workers
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// TimerInterval is how often the turn timer checks for expired turns
	TimerInterval time.Duration
	// HubCleanupInterval is how often event hubs with no listeners are dropped
	HubCleanupInterval time.Duration
}

// DefaultServerConfig returns sensible defaults for server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:               "",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       60 * time.Second, // Long timeout for SSE (keepalive is 15s)
		ShutdownTimeout:    30 * time.Second,
		TimerInterval:      time.Second,
		HubCleanupInterval: time.Minute,
	}
}

// Workers are the jobs that run for as long as the server does
type Workers struct {
	Timer *timer.Timer
	// Matches is read once at start to re-arm turn deadlines
	Matches timer.ActiveMatches
	Hubs    *sse.HubManager
}

// Server runs the match API together with the turn timer and event hub
// housekeeping, and stops them all on Shutdown
type Server struct {
	server  *http.Server
	logger  *slog.Logger
	config  ServerConfig
	workers Workers

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewServer creates a new API server
func NewServer(handler http.Handler, config ServerConfig, workers Workers, logger *slog.Logger) *Server {
	defaults := DefaultServerConfig()
	if config.TimerInterval <= 0 {
		config.TimerInterval = defaults.TimerInterval
	}
	if config.HubCleanupInterval <= 0 {
		config.HubCleanupInterval = defaults.HubCleanupInterval
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		},
		logger:  logger,
		config:  config,
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start restores turn deadlines, starts the background workers and then
// serves HTTP until Shutdown
func (s *Server) Start() error {
	if err := s.startWorkers(); err != nil {
		return err
	}

	s.logger.Info("starting HTTP server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func (s *Server) startWorkers() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return http.ErrServerClosed
	}

	if t := s.workers.Timer; t != nil {
		if s.workers.Matches != nil {
			if _, err := t.Restore(s.ctx, s.workers.Matches); err != nil {
				return fmt.Errorf("restore turn deadlines: %w", err)
			}
		}
		s.wg.Go(func() { t.Run(s.ctx, s.config.TimerInterval) })
	}
	if s.workers.Hubs != nil {
		s.wg.Go(s.cleanupHubs)
	}
	return nil
}

// cleanupHubs drops event hubs nobody is listening to
func (s *Server) cleanupHubs() {
	ticker := time.NewTicker(s.config.HubCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.workers.Hubs.CleanupEmptyHubs()
		}
	}
}

// Shutdown stops the workers, ends open event streams and then gracefully
// stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	if s.workers.Hubs != nil {
		s.workers.Hubs.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Addr returns the server's listen address
func (s *Server) Addr() string {
	return s.server.Addr
}
