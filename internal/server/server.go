// Package server exposes the extraction pipeline and the stored researchers over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/joseph-ayodele/cv-ingest/internal/common"
	"github.com/joseph-ayodele/cv-ingest/internal/entity"
	"github.com/joseph-ayodele/cv-ingest/internal/events"
	"github.com/joseph-ayodele/cv-ingest/internal/pipeline"
	"github.com/joseph-ayodele/cv-ingest/internal/repository"
)

// Runner processes one document and publishes its stage events.
type Runner interface {
	Run(ctx context.Context, doc pipeline.Document, pub events.Publisher) (*pipeline.Result, error)
}

// Researchers is the read/delete side of the researcher store.
type Researchers interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Researcher, error)
	List(ctx context.Context, f repository.ListFilter) ([]entity.ResearcherSummary, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Exporter interface {
	ExportResearchersXLSX(ctx context.Context, f repository.ListFilter) ([]byte, error)
}

// Deps are the collaborators behind the routes. Any nil dependency leaves its routes unregistered.
type Deps struct {
	Runner      Runner
	Researchers Researchers
	Exporter    Exporter
	Health      func(ctx context.Context) error
	Metrics     http.Handler
}

// Config holds HTTP server configuration.
type Config struct {
	Addr           string
	MaxUploadBytes int64
	StreamTimeout  time.Duration // whole extraction stream, 0 = request lifetime only
	Heartbeat      time.Duration // 0 disables heartbeats
	EventBuffer    int
}

// DefaultConfig mirrors the environment defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		MaxUploadBytes: 20 << 20,
		StreamTimeout:  7 * time.Minute,
		Heartbeat:      15 * time.Second,
		EventBuffer:    16,
	}
}

// Server provides HTTP endpoints for CV ingestion.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

func NewServer(deps Deps, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	s := &Server{echo: e, deps: deps, cfg: cfg, logger: logger}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics))
	}

	api := s.echo.Group("/api")
	if s.deps.Runner != nil {
		api.POST("/extract", s.handleExtract)
	}
	if s.deps.Exporter != nil {
		api.GET("/researchers/export.xlsx", s.handleExport)
	}
	if s.deps.Researchers != nil {
		api.GET("/researchers", s.handleListResearchers)
		api.GET("/researchers/:id", s.handleGetResearcher)
		api.DELETE("/researchers/:id", s.handleDeleteResearcher)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) Start() error {
	s.logger.Info("http.start", "addr", s.cfg.Addr)
	return s.echo.Start(s.cfg.Addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http.shutdown")
	return s.echo.Shutdown(ctx)
}

type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.deps.Health != nil {
		if err := s.deps.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
		}
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			if reqID != "" {
				c.SetRequest(c.Request().WithContext(common.WithRequestID(c.Request().Context(), reqID)))
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http.request",
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", c.Response().Status,
				"elapsed_ms", time.Since(start).Milliseconds(),
				"req_id", reqID,
			)
			return nil
		}
	}
}
