// Package server provides a development HTTP server for a built moor output
// directory. It exists so the verification machine can be exercised against
// a real transport; production delivery is whatever untrusted host or CDN
// the operator chooses.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Server serves a build output directory.
type Server struct {
	dir     string
	logger  *slog.Logger
	latency time.Duration
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithLatency adds artificial per-request latency, for exercising fetch
// timeouts and cancellation in the verifier.
func WithLatency(d time.Duration) ServerOption {
	return func(s *Server) { s.latency = d }
}

// New creates a Server for the given directory.
func New(dir string, opts ...ServerOption) *Server {
	s := &Server{
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler. Responses carry no-store cache headers:
// the trust chain assumes every load fetches fresh bytes, and caching is an
// external optimization layer outside it.
func (s *Server) Handler() http.Handler {
	files := http.FileServer(http.Dir(s.dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Cache-Control", "no-store")
		s.logger.Debug("serving", "path", r.URL.Path)
		files.ServeHTTP(w, r)
	})
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("dev server listening", "addr", addr, "dir", s.dir)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
