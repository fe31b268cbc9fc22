// Package http provides the HTTP API for chatmatch.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/chatmatch/internal/chatmemory"
	"github.com/fyrsmithlabs/chatmatch/internal/logging"
	"github.com/fyrsmithlabs/chatmatch/internal/matcher"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Assistant is the part of matcher.Assistant the API serves.
type Assistant interface {
	Ask(ctx context.Context, locale, text string, recent []string) (matcher.Result, error)
	Reset(ctx context.Context, locale string) error
	Learned(ctx context.Context, locale string) []chatmemory.LearnedResponse
	Conversations(ctx context.Context, locale string) []chatmemory.ConversationTurn
	ResolveLocale(locale string) string
}

// Server provides HTTP endpoints for chatmatch.
type Server struct {
	echo      *echo.Echo
	assistant Assistant
	logger    *logging.Logger
	config    *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// RateLimit is the sustained chat requests per second allowed per
	// client. Zero disables limiting.
	RateLimit float64
	RateBurst int

	// BodyLimit caps request bodies, e.g. "64K". Empty disables the limit.
	BodyLimit string

	Version string

	// Gatherer backs GET /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer

	// Meter records request metrics. Nil uses the global meter provider.
	Meter metric.Meter
}

// NewServer creates a new HTTP server.
func NewServer(assistant Assistant, logger *logging.Logger, cfg *Config) (*Server, error) {
	if assistant == nil {
		return nil, fmt.Errorf("assistant cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(NewHTTPMetrics(cfg.Meter, logger.Underlying()).Middleware())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(requestLogger(logger))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	s := &Server{
		echo:      e,
		assistant: assistant,
		logger:    logger,
		config:    cfg,
	}

	s.registerRoutes()

	return s, nil
}

func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")

	chat := []echo.MiddlewareFunc{}
	if s.config.RateLimit > 0 {
		chat = append(chat, s.rateLimiter())
	}
	v1.POST("/chat", s.handleChat, chat...)

	v1.GET("/locales/:locale/learned", s.handleLearned)
	v1.GET("/locales/:locale/conversations", s.handleConversations)
	v1.DELETE("/locales/:locale/learned", s.handleReset)
}

func (s *Server) rateLimiter() echo.MiddlewareFunc {
	store := newClientLimiter(s.config.RateLimit, s.config.RateBurst, defaultRateLimitTTL)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			s.logger.Warn(c.Request().Context(), "rate limit exceeded", zap.String("client", identifier))
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.config.Version})
}

// handleChat answers one message.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}
	if len(req.Message) > maxMessageLen {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("message exceeds %d bytes", maxMessageLen))
	}
	if len(req.Context) > maxContextItems {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("context exceeds %d items", maxContextItems))
	}

	res, err := s.assistant.Ask(c.Request().Context(), req.Locale, req.Message, req.Context)
	if err != nil {
		return s.unavailable(c, "ask failed", err)
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Answer: res.Answer,
		Source: string(res.Source),
		Score:  res.Score,
		Locale: res.Locale,
	})
}

func (s *Server) handleLearned(c echo.Context) error {
	locale := s.assistant.ResolveLocale(c.Param("locale"))
	records := s.assistant.Learned(c.Request().Context(), locale)
	return c.JSON(http.StatusOK, LearnedResponse{Locale: locale, Count: len(records), Records: records})
}

func (s *Server) handleConversations(c echo.Context) error {
	locale := s.assistant.ResolveLocale(c.Param("locale"))
	turns := s.assistant.Conversations(c.Request().Context(), locale)
	return c.JSON(http.StatusOK, ConversationsResponse{Locale: locale, Count: len(turns), Turns: turns})
}

// handleReset forgets the locale's history and learned responses.
func (s *Server) handleReset(c echo.Context) error {
	if err := s.assistant.Reset(c.Request().Context(), c.Param("locale")); err != nil {
		if errors.Is(err, matcher.ErrClosed) || isContextErr(err) {
			return s.unavailable(c, "reset failed", err)
		}
		s.logger.Error(c.Request().Context(), "reset failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "reset failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// unavailable maps shutdown and deadline errors to 503 and 504.
func (s *Server) unavailable(c echo.Context, msg string, err error) error {
	s.logger.Warn(c.Request().Context(), msg, zap.Error(err))
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "timed out waiting for conversation")
	case errors.Is(err, matcher.ErrClosed), errors.Is(err, context.Canceled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service unavailable")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, msg)
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
