// Package server wraps http.Server with signal handling and ordered
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc shuts down one component within the given context.
type ShutdownFunc func(ctx context.Context) error

type shutdownHook struct {
	name string
	fn   ShutdownFunc
}

// Server runs the HTTP listener and coordinates shutdown of registered
// components when the process receives SIGINT or SIGTERM.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger

	mu    sync.Mutex
	hooks []shutdownHook
}

// New creates a new Server instance.
func New(handler http.Handler, port int, readTimeout, writeTimeout, shutdownTimeout time.Duration, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// OnShutdown registers a component to close during graceful shutdown.
// Hooks run after the HTTP server drains, newest first, so components
// close in the reverse of their construction order.
func (s *Server) OnShutdown(name string, fn ShutdownFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, shutdownHook{name: name, fn: fn})
}

// Run starts the listener and blocks until the server fails or a
// shutdown signal arrives.
func (s *Server) Run() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-sigCh:
		s.logger.Info("shutdown signal received", "signal", sig.String())
		return s.stop()
	}
}

// stop drains the HTTP server, then runs the hooks in reverse order.
// A hook failure does not prevent the remaining hooks from running.
func (s *Server) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info("draining HTTP server", "timeout", s.shutdownTimeout)
	s.httpServer.SetKeepAlivesEnabled(false)
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.mu.Lock()
	hooks := s.hooks
	s.mu.Unlock()

	var firstErr error
	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		s.logger.Info("closing component", "name", hook.name)
		if err := hook.fn(ctx); err != nil {
			s.logger.Error("component close error", "name", hook.name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("close %s: %w", hook.name, err)
			}
		}
	}

	if firstErr != nil {
		return firstErr
	}

	s.logger.Info("server stopped")
	return nil
}
