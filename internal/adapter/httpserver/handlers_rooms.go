package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/roomqa/internal/domain"
	apperrors "github.com/pscheid92/roomqa/internal/platform/errors"
	"github.com/pscheid92/roomqa/internal/wire"
)

func (s *Server) handleListRooms(c echo.Context) error {
	rooms, err := s.app.ListRooms(c.Request().Context())
	if err != nil {
		return err
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	return writeJSON(c, rooms)
}

func (s *Server) handleCreateRoom(c echo.Context) error {
	var req wire.CreateRoomRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid json")
	}

	id, err := s.app.CreateRoom(c.Request().Context(), req.Theme)
	if err != nil {
		return err
	}
	return writeJSON(c, wire.IDResponse{ID: id})
}

func (s *Server) handleGetRoom(c echo.Context) error {
	room, err := s.app.GetRoom(c.Request().Context(), c.Param("room_id"))
	if err != nil {
		return err
	}
	return writeJSON(c, room)
}

func writeJSON(c echo.Context, body any) error {
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}
