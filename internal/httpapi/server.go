// Package httpapi provides the HTTP API for the agreement service.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/annolab/concord/internal/domain/annotation"
	"github.com/annolab/concord/internal/domain/round"
	"github.com/annolab/concord/internal/domain/task"
	"github.com/annolab/concord/internal/metrics"
)

// Server exposes the annotation store, round orchestrator, and task
// lifecycle over HTTP.
type Server struct {
	echo        *echo.Echo
	annotations *annotation.Service
	rounds      *round.Service
	tasks       *task.Service
	metrics     *metrics.Metrics
	logger      *slog.Logger
	config      *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// DefaultThreshold is applied to round creation requests that omit a
	// threshold.
	DefaultThreshold float64
}

// NewServer creates a new HTTP server.
func NewServer(
	annotations *annotation.Service,
	rounds *round.Service,
	tasks *task.Service,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg *Config,
) (*Server, error) {
	if annotations == nil || rounds == nil || tasks == nil {
		return nil, fmt.Errorf("all domain services are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host:             "localhost",
			Port:             8080,
			DefaultThreshold: 0.6,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", c.Response().Status,
				"duration", duration,
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)

			return err
		}
	})

	s := &Server{
		echo:        e,
		annotations: annotations,
		rounds:      rounds,
		tasks:       tasks,
		metrics:     m,
		logger:      logger,
		config:      cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	v1 := s.echo.Group("/api/v1")

	v1.GET("/projects/:project/agreement", s.handleAgreement)
	v1.POST("/projects/:project/rounds", s.handleCreateRound)
	v1.GET("/projects/:project/rounds", s.handleListRounds)

	v1.GET("/rounds/:id", s.handleGetRound)
	v1.POST("/rounds/:id/complete", s.handleCompleteRound)
	v1.POST("/rounds/:id/cancel", s.handleCancelRound)
	v1.DELETE("/rounds/:id", s.handleDeleteRound)

	v1.GET("/raters/:rater/tasks", s.handleListTasks)
	v1.POST("/tasks/:id/start", s.handleStartTask)
	v1.POST("/tasks/:id/submit", s.handleSubmitTask)
	v1.POST("/tasks/:id/skip", s.handleSkipTask)
	v1.POST("/tasks/:id/reassign", s.handleReassignTask)

	v1.GET("/units/:id/annotations", s.handleUnitAnnotations)
	v1.GET("/units/:id/audit", s.handleUnitAudit)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// httpError maps domain errors onto HTTP status codes. Unmapped errors
// become 500s via echo's default handler.
func httpError(err error) error {
	switch {
	case errors.Is(err, annotation.ErrInvalidInput),
		errors.Is(err, round.ErrInvalidInput),
		errors.Is(err, task.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, round.ErrRoundNotFound),
		errors.Is(err, task.ErrTaskNotFound),
		errors.Is(err, annotation.ErrNoPriorRecord):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, task.ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, round.ErrConflict),
		errors.Is(err, round.ErrNotActive),
		errors.Is(err, task.ErrAlreadyResolved),
		errors.Is(err, task.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return err
}
