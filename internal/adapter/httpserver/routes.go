package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/roomqa/internal/adapter/metrics"
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(ErrorHandlingMiddleware())
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	s.registerHealthRoutes()
	s.registerRoomRoutes()

	s.limits = newSubscribeLimits(s.config.MaxSubscribers, s.config.MaxSubscribersPerIP)
	s.echo.GET("/subscribe/:room_id", s.handleSubscribe, newRateLimiter(s.config.CommandRateLimit, s.config.CommandRateBurst))

	if s.metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}
}

func (s *Server) registerRoomRoutes() {
	limit := newRateLimiter(s.config.CommandRateLimit, s.config.CommandRateBurst)

	rooms := s.echo.Group("/rooms")
	rooms.GET("", s.handleListRooms)
	rooms.POST("", s.handleCreateRoom, limit)
	rooms.GET("/:room_id", s.handleGetRoom)

	messages := rooms.Group("/:room_id/messages")
	messages.GET("", s.handleListMessages)
	messages.POST("", s.handleCreateMessage, limit)
	messages.GET("/:message_id", s.handleGetMessage)
	messages.PATCH("/:message_id/react", s.handleReact, limit)
	messages.DELETE("/:message_id/react", s.handleUnreact, limit)
	messages.PATCH("/:message_id/answer", s.handleMarkAnswered, limit)
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"route", metrics.RouteLabel(c),
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
