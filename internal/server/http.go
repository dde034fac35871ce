// Package server provides the HTTP surface of the gateway: routing,
// authentication, request identity, and the SSE bridge for streaming
// generations.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelgate/internal/core"
	"modelgate/internal/gateway"
)

// Server wraps the Echo server.
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options.
type Config struct {
	MasterKey       string // optional master key for authentication
	MetricsEnabled  bool   // whether to expose the Prometheus endpoint
	MetricsEndpoint string // metrics path, default /metrics
	BodySizeLimit   int64  // max request body size in bytes
}

// New creates the HTTP server over a gateway service.
func New(svc *gateway.Service, cfg *Config) *Server {
	e := echo.New()
	e.HideBanner = true

	handler := NewHandler(svc)

	authSkipPaths := []string{"/health"}

	metricsPath := "/metrics"
	if cfg != nil && cfg.MetricsEnabled {
		if cfg.MetricsEndpoint != "" {
			metricsPath = path.Clean(cfg.MetricsEndpoint)
		}
		authSkipPaths = append(authSkipPaths, metricsPath)
	}

	// Global middleware stack (order matters).
	e.Use(middleware.Recover())
	e.Use(RequestIDMiddleware())
	e.Use(requestLogger())

	if cfg != nil && cfg.BodySizeLimit > 0 {
		e.Use(middleware.BodyLimit(strconv.FormatInt(cfg.BodySizeLimit, 10)))
	}

	if cfg != nil && cfg.MasterKey != "" {
		e.Use(AuthMiddleware(cfg.MasterKey, authSkipPaths))
	}

	// Public routes
	e.GET("/health", handler.Health)
	if cfg != nil && cfg.MetricsEnabled {
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	// API routes
	e.GET("/v1/providers", handler.ListProviders)
	e.GET("/v1/providers/:provider/models", handler.ListModels)
	e.POST("/v1/generate", handler.Generate)

	return &Server{echo: e, handler: handler}
}

// RequestIDMiddleware assigns every request an identifier: the caller's
// X-Client-Request-Id when present, a fresh UUID otherwise. The identifier is
// echoed back and threaded through the context for logs and upstream calls.
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get("X-Client-Request-Id")
			if id == "" {
				id = uuid.NewString()
			}
			ctx := core.WithRequestID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set("X-Client-Request-Id", id)
			return next(c)
		}
	}
}

// requestLogger emits one slog line per completed request.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", core.GetRequestID(c.Request().Context()),
			)
			return nil
		},
	})
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements http.Handler, allowing Server to be used with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
