// Package api is the HTTP surface of the pass-window server.
package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/passwatch/internal/auth"
	"github.com/star/passwatch/internal/health"
	"github.com/star/passwatch/internal/metrics"
	"github.com/star/passwatch/internal/passes"
	"github.com/star/passwatch/internal/snapshot"
)

// Options wires the server's dependencies.
type Options struct {
	Addr       string
	Auth       auth.Config
	TrustProxy bool
	Passes     *passes.Service
	Snapshots  *snapshot.Store
	Static     fs.FS // frontend files served at /
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(snapshotLoaded(opts.Snapshots)))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /next_pass_all", nextPassAllHandler(logger, opts.Passes))
	mux.HandleFunc("GET /tle_data.json", snapshotHandler(opts.Snapshots))
	if opts.Static != nil {
		mux.Handle("GET /", http.FileServerFS(opts.Static))
	}

	// Build middleware chain: metrics -> logging -> cors -> no-cache -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(opts.Auth)(handler)
	handler = noCacheMiddleware(handler)
	handler = corsMiddleware(handler)
	handler = loggingMiddleware(logger, opts.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func snapshotLoaded(store *snapshot.Store) health.Check {
	return func() error {
		if store == nil || store.Get() == nil {
			return errors.New("no snapshot loaded")
		}
		return nil
	}
}
