package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/roomqa/internal/platform/version"
)

const readinessTimeout = 5 * time.Second

// HealthCheck is a named dependency check, such as the store or Redis.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type livenessResponse struct {
	Status      string  `json:"status"`
	Uptime      float64 `json:"uptime"`
	ActiveRooms int     `json:"active_rooms"`
}

type readinessResponse struct {
	Status       string            `json:"status"`
	Store        string            `json:"store"`
	Relay        string            `json:"relay"`
	Checks       map[string]string `json:"checks"`
	FailedChecks []string          `json:"failed_checks,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := livenessResponse{
		Status:      "ok",
		Uptime:      time.Since(s.startTime).Seconds(),
		ActiveRooms: len(s.subscriber.ActiveRooms()),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// handleReadiness runs every check and reports each result next to the
// store backend and relay mode this instance runs with.
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
	defer cancel()

	response := readinessResponse{
		Status: "ready",
		Store:  s.config.StoreBackend,
		Relay:  s.relayMode(),
		Checks: make(map[string]string, len(s.healthChecks)),
	}
	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			response.Checks[hc.Name] = err.Error()
			response.FailedChecks = append(response.FailedChecks, hc.Name)
			continue
		}
		response.Checks[hc.Name] = "ok"
	}

	status := http.StatusOK
	if len(response.FailedChecks) > 0 {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	if err := c.JSON(status, response); err != nil {
		return fmt.Errorf("failed to send readiness response: %w", err)
	}
	return nil
}

// relayMode reports whether events fan out across instances through Redis or
// stay within this process.
func (s *Server) relayMode() string {
	if s.config.RedisURL != "" {
		return "redis"
	}
	return "local"
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
