package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/roomqa/internal/adapter/metrics"
	"github.com/pscheid92/roomqa/internal/broadcast"
	"github.com/pscheid92/roomqa/internal/domain"
	"github.com/pscheid92/roomqa/internal/platform/config"
)

type appService interface {
	ListRooms(ctx context.Context) ([]domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	CreateRoom(ctx context.Context, theme string) (string, error)
	ListMessages(ctx context.Context, roomID string) ([]domain.Message, error)
	GetMessage(ctx context.Context, roomID, messageID string) (*domain.Message, error)
	CreateMessage(ctx context.Context, roomID, text string) (string, error)
	React(ctx context.Context, roomID, messageID string) (int64, error)
	Unreact(ctx context.Context, roomID, messageID string) (int64, error)
	MarkAnswered(ctx context.Context, roomID, messageID string) error
}

type subscriber interface {
	Reserve(roomID string) (*broadcast.Connection, error)
	Refuse(socket broadcast.Socket, reason broadcast.CloseReason)
	ActiveRooms() []string
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app        appService
	subscriber subscriber
	upgrader   websocket.Upgrader
	limits     *subscribeLimits

	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler
	healthChecks   []HealthCheck
	startTime      time.Time
}

// NewServer builds the HTTP surface. reg may be nil, which disables /metrics.
func NewServer(cfg *config.Config, app appService, subscriber subscriber, healthChecks []HealthCheck, reg *prometheus.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:       e,
		config:     cfg,
		app:        app,
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment()),
		},
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}
	if reg != nil {
		srv.httpMetrics = metrics.NewHTTPMetrics(reg)
		srv.metricsHandler = metrics.Handler(reg)
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
