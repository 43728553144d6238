// Package http provides the HTTP API for fusiond: the producer-facing
// ingestion endpoint, the read-only query endpoint and the dashboard.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fusiond/internal/perception"
	"github.com/fyrsmithlabs/fusiond/internal/state"
)

// ContextService is the core surface the HTTP layer needs: ingest one
// device update, read one consistent snapshot.
type ContextService interface {
	Update(ctx context.Context, device string, data any) ([]string, error)
	Snapshot() state.WorldState
}

// Server provides HTTP endpoints for fusiond.
type Server struct {
	echo    *echo.Echo
	service ContextService
	logger  *zap.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(service ContextService, logger *zap.Logger, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		service: service,
		logger:  logger,
		config:  cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check
	s.echo.GET("/health", s.handleHealth)

	// Human-readable view
	s.echo.GET("/dashboard", s.handleDashboard)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.POST("/context", s.handleUpdateContext)
	v1.GET("/context", s.handleGetContext)
}

// Echo exposes the underlying router so the entrypoint can attach
// extra handlers (metrics endpoint).
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// UpdateRequest is the request body for POST /api/v1/context.
type UpdateRequest struct {
	Device string `json:"device"`
	Data   any    `json:"data"`
}

// UpdateResponse is the response body for POST /api/v1/context. The
// fused context acknowledges the producer with the fresh detail text.
type UpdateResponse struct {
	Status       string `json:"status"`
	FusedContext string `json:"fused_context"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleUpdateContext ingests one device observation and returns the
// freshly fused context.
func (s *Server) handleUpdateContext(c echo.Context) error {
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid context update request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	detail, err := s.service.Update(c.Request().Context(), req.Device, req.Data)
	if err != nil {
		switch {
		case errors.Is(err, perception.ErrMissingDevice):
			return echo.NewHTTPError(http.StatusBadRequest, "device field is required")
		case errors.Is(err, perception.ErrInvalidPayload):
			return echo.NewHTTPError(http.StatusBadRequest, "data field must be a JSON object")
		default:
			s.logger.Error("context update failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "context update failed")
		}
	}

	return c.JSON(http.StatusOK, UpdateResponse{
		Status:       "ok",
		FusedContext: strings.Join(detail, "\n"),
	})
}

// handleGetContext returns the full world state snapshot.
func (s *Server) handleGetContext(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.Snapshot())
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
