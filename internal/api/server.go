// Package api serves the extraction pipeline over HTTP.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parsebank-dev/parsebank/internal/acquire"
	"github.com/parsebank-dev/parsebank/internal/pipeline"
)

// Dependencies holds what the handlers need.
type Dependencies struct {
	Pipeline *pipeline.Pipeline
	Acquirer *acquire.Acquirer
	Gatherer prometheus.Gatherer // nil disables /metrics
	Version  string
	Logger   *slog.Logger
}

// Server owns the handlers. All per-request state stays in the request.
type Server struct {
	pipeline *pipeline.Pipeline
	acquirer *acquire.Acquirer
	gatherer prometheus.Gatherer
	version  string
	maxBytes int64
	logger   *slog.Logger
}

// NewServer builds the handler set from deps.
func NewServer(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	acq := deps.Acquirer
	if acq == nil {
		acq = acquire.New(0)
	}
	return &Server{
		pipeline: deps.Pipeline,
		acquirer: acq,
		gatherer: deps.Gatherer,
		version:  deps.Version,
		maxBytes: acq.MaxBytes,
		logger:   logger,
	}
}

// Echo returns a configured echo instance with every route registered.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			s.logger.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	// Leave room for multipart framing around the file itself.
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", s.maxBytes>>10+1024)))

	s.RegisterRoutes(e)
	return e
}

// RegisterRoutes registers all routes on e.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", s.HandleHealth)
	e.POST("/api/statements", s.HandleExtract)
	if s.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
}
