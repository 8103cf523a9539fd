// Package server exposes the processed artifact catalog over HTTP: a listing
// endpoint backed by a periodically refreshed snapshot, and typed row access
// to the known census artifacts.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"

	"github.com/auslabs/abslake/pkg/census"
	"github.com/auslabs/abslake/pkg/dataset"
	"github.com/auslabs/abslake/pkg/metrics"
)

const defaultRefreshInterval = 30 * time.Second

// Config configures a Server.
type Config struct {
	Logger *slog.Logger
	Store  *dataset.Store

	// Version is reported by /version.
	Version string

	// RefreshInterval is the catalog snapshot refresh period.
	RefreshInterval time.Duration

	// Clock drives the refresh loop, fake in tests.
	Clock clockwork.Clock

	// CORSOrigins defaults to allowing any origin.
	CORSOrigins []string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	return nil
}

// Server serves the artifact catalog and artifact rows.
type Server struct {
	log             *slog.Logger
	store           *dataset.Store
	version         string
	refreshInterval time.Duration
	clock           clockwork.Clock
	router          chi.Router

	mu      sync.RWMutex
	catalog []dataset.ArtifactInfo
}

// New creates a Server and builds its router. The catalog snapshot is
// populated on the first Run tick or the first Refresh call.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		log:             cfg.Logger,
		store:           cfg.Store,
		version:         cfg.Version,
		refreshInterval: cfg.RefreshInterval,
		clock:           cfg.Clock,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/version", s.handleVersion)
	r.Get("/api/artifacts", s.handleCatalog)
	r.Get("/api/artifacts/{name}", s.handleArtifact)

	s.router = r
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Refresh rebuilds the catalog snapshot from the processed area.
func (s *Server) Refresh() error {
	catalog, err := s.store.ListProcessed()
	if err != nil {
		return fmt.Errorf("failed to refresh catalog: %w", err)
	}
	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()
	s.log.Debug("server: refreshed catalog", "artifacts", len(catalog))
	return nil
}

// Run refreshes the catalog once, then keeps it fresh on a ticker until ctx
// is canceled. Refresh failures are logged and retried on the next tick.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Refresh(); err != nil {
		s.log.Warn("server: initial catalog refresh failed", "error", err)
	}

	ticker := s.clock.NewTicker(s.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if err := s.Refresh(); err != nil {
				s.log.Warn("server: catalog refresh failed", "error", err)
			}
		}
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	catalog := s.catalog
	s.mu.RUnlock()
	if catalog == nil {
		catalog = []dataset.ArtifactInfo{}
	}
	s.writeJSON(w, r, http.StatusOK, catalog)
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	rows, err := s.readArtifact(name, limit)
	if err != nil {
		if dataset.IsNotFound(err) {
			s.writeError(w, r, http.StatusNotFound, fmt.Sprintf("artifact %s not found", name))
			return
		}
		s.log.Error("server: failed to read artifact", "name", name, "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "failed to read artifact")
		return
	}
	s.writeJSON(w, r, http.StatusOK, rows)
}

// readArtifact loads the typed rows of a known artifact. Unknown names map to
// NotFoundError so the handler reports them like missing files.
func (s *Server) readArtifact(name string, limit int) (any, error) {
	switch name {
	case census.ArtifactPopulationFact:
		return readRows[census.PopulationFact](s.store, name, limit)
	case census.ArtifactHealthFact:
		return readRows[census.HealthFact](s.store, name, limit)
	case census.ArtifactGeoLookup, census.ArtifactHealthGeoLookup:
		return readRows[census.GeoLookupRow](s.store, name, limit)
	case census.ArtifactSexLookup, census.ArtifactHealthSexLookup:
		return readRows[census.SexLookupRow](s.store, name, limit)
	case census.ArtifactAgeLookup, census.ArtifactHealthAgeLookup:
		return readRows[census.AgeLookupRow](s.store, name, limit)
	case census.ArtifactGeogTypeLookup, census.ArtifactHealthGeogTypeLookup:
		return readRows[census.GeogTypeLookupRow](s.store, name, limit)
	case census.ArtifactStateLookup, census.ArtifactHealthStateLookup:
		return readRows[census.StateLookupRow](s.store, name, limit)
	case census.ArtifactHealthConditionLookup, census.ArtifactCommonHealthLookup:
		return readRows[census.HealthConditionLookupRow](s.store, name, limit)
	default:
		return nil, &dataset.NotFoundError{Name: name}
	}
}

func readRows[T any](store *dataset.Store, name string, limit int) ([]T, error) {
	rows, err := dataset.ReadProcessed[T](store, name)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("server: failed to encode response", "error", err)
	}
	s.observe(r, status)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.writeJSON(w, r, status, map[string]string{"error": msg})
}

func (s *Server) observe(r *http.Request, status int) {
	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			route = pattern
		}
	}
	metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
