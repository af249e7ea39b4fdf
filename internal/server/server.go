// Package server assembles the HTTP API: routing, middleware, and
// lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/MacromNex/rfdiffusion2-mcp/internal/errors"
	"github.com/MacromNex/rfdiffusion2-mcp/internal/observability"
	"github.com/MacromNex/rfdiffusion2-mcp/internal/server/handlers"
	"github.com/MacromNex/rfdiffusion2-mcp/internal/server/middleware"
	"github.com/MacromNex/rfdiffusion2-mcp/pkg/jobs"
	"github.com/MacromNex/rfdiffusion2-mcp/pkg/procedure"
)

// Options carries the dependencies the server routes to.
type Options struct {
	Manager *jobs.Manager
	Catalog *procedure.Catalog
	Checker *procedure.Checker
	Metrics *observability.JobMetrics
	Logger  *zap.Logger

	OutputRoot string
	LogTail    int

	Version   string
	Commit    string
	BuildDate string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP front end for the job manager.
type Server struct {
	host string
	port int
	opts Options

	router chi.Router
	http   *http.Server
}

// New builds a server bound to host:port with all routes registered.
func New(host string, port int, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{host: host, port: port, opts: opts}
	s.router = s.buildRouter()
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestLogger(s.opts.Logger))

	r.NotFound(apperrors.NotFoundHandler())
	r.MethodNotAllowed(apperrors.MethodNotAllowedHandler())

	jh := &handlers.JobsHandler{
		Manager:    s.opts.Manager,
		Catalog:    s.opts.Catalog,
		Checker:    s.opts.Checker,
		OutputRoot: s.opts.OutputRoot,
		LogTail:    s.opts.LogTail,
	}
	mh := &handlers.MetaHandler{
		Catalog:   s.opts.Catalog,
		Checker:   s.opts.Checker,
		Version:   s.opts.Version,
		Commit:    s.opts.Commit,
		BuildDate: s.opts.BuildDate,
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", jh.Submit)
			r.Get("/", jh.List)
			r.Get("/{id}", jh.Status)
			r.Get("/{id}/result", jh.Result)
			r.Get("/{id}/log", jh.Log)
			r.Delete("/{id}", jh.Cancel)
		})
		r.Get("/procedures", mh.Procedures)
		r.Get("/ligands", mh.Ligands)
		r.Get("/dependencies", mh.Dependencies)
	})

	r.Get("/health", mh.Health)
	r.Get("/version", mh.VersionInfo)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}

	return r
}

// Handler exposes the assembled router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Port returns the configured listen port.
func (s *Server) Port() int { return s.port }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.opts.Logger.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
