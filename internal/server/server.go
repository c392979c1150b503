// Package server exposes dataset generation over HTTP: create datasets from
// the active scenario, browse rows, and stream exports. Datasets live in a
// capped in-memory registry; nothing is persisted.
package server

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kpiforge/kpiforge/internal/config"
	"github.com/kpiforge/kpiforge/internal/platform/middleware"
	"github.com/kpiforge/kpiforge/internal/platform/telemetry"
	"github.com/kpiforge/kpiforge/internal/scenario"
)

// Server owns the HTTP surface. The active scenario can be swapped at
// runtime by the scenario file watcher; swaps never affect datasets already
// generated.
type Server struct {
	cfg      *config.Config
	log      zerolog.Logger
	metrics  *telemetry.Registry
	registry *Registry

	mu sync.RWMutex
	sc *scenario.Scenario
}

func New(cfg *config.Config, log zerolog.Logger, metrics *telemetry.Registry, sc *scenario.Scenario) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		registry: NewRegistry(cfg.RegistryCap),
		sc:       sc,
	}
}

// Scenario returns the scenario new datasets are generated from.
func (s *Server) Scenario() *scenario.Scenario {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sc
}

// SetScenario swaps the active scenario. Used by the file watcher on reload.
func (s *Server) SetScenario(sc *scenario.Scenario) {
	s.mu.Lock()
	s.sc = sc
	s.mu.Unlock()
	s.log.Info().Str("scenario", sc.Name).Msg("active scenario replaced")
}

// Router builds the echo application with all middleware and routes wired.
func (s *Server) Router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(s.log))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(s.log))
	e.Use(s.metrics.Middleware())

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", s.metrics.Handler())

	api := e.Group("/api/v1")
	if s.cfg.AuthToken != "" {
		api.Use(middleware.BearerAuth(s.cfg.AuthToken))
	}
	api.POST("/datasets", s.handleGenerate)
	api.GET("/datasets", s.handleList)
	api.GET("/datasets/:id", s.handleGet)
	api.GET("/datasets/:id/rows", s.handleRows)
	api.GET("/datasets/:id/export", s.handleExport)
	api.DELETE("/datasets/:id", s.handleDelete)

	return e
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"datasets": s.registry.Len(),
		"scenario": s.Scenario().Name,
	})
}
