package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/roomqa/internal/adapter/metrics"
	"github.com/pscheid92/roomqa/internal/broadcast"
	apperrors "github.com/pscheid92/roomqa/internal/platform/errors"
)

// handleSubscribe upgrades to a WebSocket that receives the room's events.
// The room is checked before the upgrade so a missing room is a plain 404.
// The handler blocks until the subscriber goes away.
func (s *Server) handleSubscribe(c echo.Context) error {
	ctx := c.Request().Context()
	roomID := c.Param("room_id")

	if _, err := s.app.GetRoom(ctx, roomID); err != nil {
		if apperrors.IsType(err, apperrors.TypeNotFound) {
			s.observeSubscribe(metrics.SubscribeUnknownRoom)
		}
		return err
	}

	ip := c.RealIP()
	if ok, reason := s.limits.acquire(ip); !ok {
		slog.WarnContext(ctx, "Subscriber limit reached", "room_id", roomID, "ip", ip, "reason", reason)
		s.observeSubscribe(metrics.SubscribeLimited)
		return apperrors.TransportError("too many subscriptions", nil).WithField("reason", string(reason))
	}
	defer s.limits.release(ip)

	// Reserve before upgrading so events published while the 101 is on the
	// wire are queued for this subscriber.
	conn, reserveErr := s.subscriber.Reserve(roomID)

	socket, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written an HTTP error.
		if conn != nil {
			conn.Close(broadcast.ReasonUpgradeFailed)
		}
		slog.WarnContext(ctx, "WebSocket upgrade failed", "room_id", roomID, "error", err)
		s.observeSubscribe(metrics.SubscribeUpgradeFailed)
		return nil
	}

	if reserveErr != nil {
		s.subscriber.Refuse(socket, broadcast.ReasonRoomFull)
		s.observeSubscribe(metrics.SubscribeRoomFull)
		return nil
	}
	if err := conn.Bind(socket); err != nil {
		return nil
	}
	s.observeSubscribe(metrics.SubscribeUpgraded)

	slog.InfoContext(ctx, "Subscriber joined", "room_id", roomID, "connection_id", conn.ID())
	conn.ReadPump()
	slog.InfoContext(ctx, "Subscriber left", "room_id", roomID, "connection_id", conn.ID(), "reason", conn.Reason())
	return nil
}

func (s *Server) observeSubscribe(outcome string) {
	if s.httpMetrics != nil {
		s.httpMetrics.ObserveSubscribe(outcome)
	}
}
