// Package http exposes the agentic query service over HTTP.
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DanielJandric/embeddingsall-sub000/internal/agentic"
	"github.com/DanielJandric/embeddingsall-sub000/internal/logging"
)

// Querier answers agentic queries.
type Querier interface {
	Query(ctx context.Context, req agentic.Request) (*agentic.Result, error)
}

// Server provides the HTTP endpoints.
type Server struct {
	echo    *echo.Echo
	service Querier
	logger  *logging.Logger
	config  *Config
	metrics *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RequestTimeout bounds one query; zero means no bound.
	RequestTimeout time.Duration
}

// NewServer creates a new HTTP server.
func NewServer(service Querier, logger *logging.Logger, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, errors.New("query service cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8080}
	}
	logger = logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := logging.WithRequestID(c.Request().Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})
	metrics := NewHTTPMetrics(logger)
	e.Use(metrics.Middleware())

	s := &Server{
		echo:    e,
		service: service,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/query", s.handleQuery)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleQuery answers POST /api/v1/query. The body is always an
// agentic.Result; failures carry an error code and a non-2xx status.
func (s *Server) handleQuery(c echo.Context) error {
	var req agentic.Request
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid query request", zap.Error(err))
		s.metrics.RecordQuery(c.Request().Context(), agentic.CodeInvalidRequest, false)
		return c.JSON(http.StatusBadRequest, agentic.ErrorResult("", fmt.Errorf("%w: malformed body", agentic.ErrInvalidRequest)))
	}

	ctx := c.Request().Context()
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	res, err := s.service.Query(ctx, req)
	if err != nil {
		code := agentic.Code(err)
		if code == agentic.CodeInternal || code == agentic.CodeMalformedPlan {
			s.logger.Error(ctx, "query failed", zap.String("code", code), zap.Error(err))
		}
		s.metrics.RecordQuery(ctx, code, false)
		return c.JSON(statusFor(code), agentic.ErrorResult(strings.TrimSpace(req.Query), err))
	}
	s.metrics.RecordQuery(ctx, "ok", res.Success)
	return c.JSON(http.StatusOK, res)
}

func statusFor(code string) int {
	switch code {
	case agentic.CodeInvalidRequest:
		return http.StatusBadRequest
	case agentic.CodeCanceled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
