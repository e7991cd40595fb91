package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/revere-police-logs/internal/config"
	"github.com/JakeFAU/revere-police-logs/internal/discovery"
	"github.com/JakeFAU/revere-police-logs/internal/metrics"
	"github.com/JakeFAU/revere-police-logs/internal/policelog"
	"github.com/JakeFAU/revere-police-logs/internal/syncer"
)

// Syncer starts discovered-log runs.
type Syncer interface {
	SyncFromDiscoveredLogs(ctx context.Context) syncer.DiscoveredSummary
	Running() bool
}

// Catalog lists discovered logs with their synced flag.
type Catalog interface {
	Catalog(ctx context.Context) ([]discovery.CatalogEntry, error)
}

// RequestIDGenerator produces request correlation IDs.
type RequestIDGenerator interface {
	NewRequestID() string
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP server needs.
type Deps struct {
	Store   policelog.Store
	Syncer  Syncer
	Catalog Catalog
	IDs     RequestIDGenerator
	Clock   policelog.Clock
	Auth    config.AuthConfig
	Logger  *zap.Logger
	// BaseContext parents background syncs started over HTTP; canceling it stops them.
	BaseContext context.Context
}

// Server wires HTTP handlers to the orchestrator and stores.
type Server struct {
	router  chi.Router
	store   policelog.Store
	syncer  Syncer
	catalog Catalog
	clock   policelog.Clock
	logger  *zap.Logger
	baseCtx context.Context
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	baseCtx := deps.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	s := &Server{
		store:   deps.Store,
		syncer:  deps.Syncer,
		catalog: deps.Catalog,
		clock:   deps.Clock,
		logger:  logger,
		baseCtx: baseCtx,
		timeout: readTimeout,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(deps.IDs))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if deps.Auth.Enabled {
			r.Use(apiKeyMiddleware(deps.Auth.APIKey))
		}
		r.Post("/sync", s.startSync)
		r.Get("/status", s.listStatus)
		r.Get("/entries", s.listEntries)
		r.Get("/logs/discovered", s.listDiscovered)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness ping failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
