package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/sdrhub/internal/logger"
)

// Server is the hub's HTTP server.
//
// WebSocket sessions hijack their connections, so no server-level read or
// write timeouts are configured; session lifetimes are governed by the
// registry instead. The server supports graceful shutdown with a
// configurable timeout.
type Server struct {
	server          *http.Server
	bindAddr        string
	shutdownTimeout time.Duration
	shutdownOnce    sync.Once
}

// NewServer creates the hub HTTP server around an already-built router.
//
// The server is created in a stopped state. Call Start() to begin serving
// requests.
func NewServer(bindAddr string, shutdownTimeout time.Duration, router http.Handler) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &Server{
		server: &http.Server{
			Addr:        bindAddr,
			Handler:     router,
			IdleTimeout: 120 * time.Second,
		},
		bindAddr:        bindAddr,
		shutdownTimeout: shutdownTimeout,
	}
}

// Start starts the HTTP server and blocks until the context is cancelled
// or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and
// returns nil on success. A bind failure surfaces as an error.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("hub listening", "addr", s.bindAddr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("hub shutdown signal received")
		// Don't use the cancelled ctx as it would cause immediate shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("hub server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the server.
//
// Stop is safe to call multiple times and safe to call concurrently with
// Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("hub shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("hub shutdown error: %w", err)
			logger.Error("hub shutdown error", "error", err)
		} else {
			logger.Info("hub stopped gracefully")
		}
	})
	return shutdownErr
}

// Addr returns the configured bind address.
func (s *Server) Addr() string {
	return s.bindAddr
}
