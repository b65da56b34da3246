// Package server provides the HTTP API for the clusterizer.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/clusterizer/internal/clientindex"
	"github.com/hyperjump/clusterizer/internal/config"
	"github.com/hyperjump/clusterizer/internal/pipeline"
	"github.com/hyperjump/clusterizer/internal/retention"
	"github.com/hyperjump/clusterizer/internal/runner"
	"github.com/hyperjump/clusterizer/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ModelService describes the loaded model.
type ModelService interface {
	Info(ctx context.Context) (*pipeline.ModelInfo, error)
}

// WatchService exposes the drop folders being watched.
type WatchService interface {
	Directories() []string
}

// RetentionService exposes the purge scheduler state.
type RetentionService interface {
	Status() retention.Status
}

// Server is the HTTP server for the clusterizer API.
type Server struct {
	model     ModelService
	runner    *runner.Runner
	storage   storage.Storage
	clients   clientindex.Index
	watch     WatchService
	retention RetentionService
	config    *config.Config
	limiter   *rate.Limiter
	logger    *zap.Logger
	server    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithStorage enables the run and client lookup endpoints.
func WithStorage(s storage.Storage) Option {
	return func(srv *Server) { srv.storage = s }
}

// WithClientIndex enables client search.
func WithClientIndex(idx clientindex.Index) Option {
	return func(srv *Server) { srv.clients = idx }
}

// WithWatch reports watched drop folders in status.
func WithWatch(w WatchService) Option {
	return func(srv *Server) { srv.watch = w }
}

// WithRetention reports the retention schedule in status.
func WithRetention(r RetentionService) Option {
	return func(srv *Server) { srv.retention = r }
}

// NewServer creates a server with the given dependencies.
func NewServer(model ModelService, run *runner.Runner, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		model:  model,
		runner: run,
		config: cfg,
		logger: logger,
	}
	if cfg.Server.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if s.config.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
	}
	r.Use(allowAllOrigins)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.rateLimit).Post("/cluster", s.handleCluster)
		r.Get("/cluster/info", s.handleClusterInfo)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/clients/search", s.handleSearchClients)
		r.Get("/clients/{id}", s.handleGetClient)
		r.Get("/status", s.handleStatus)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// allowAllOrigins answers CORS preflights and marks every response as shareable.
func allowAllOrigins(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		h.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Run-ID, X-Rows-Dropped")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			s.respondError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
