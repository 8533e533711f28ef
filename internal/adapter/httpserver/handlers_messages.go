package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/roomqa/internal/domain"
	apperrors "github.com/pscheid92/roomqa/internal/platform/errors"
	"github.com/pscheid92/roomqa/internal/wire"
)

func (s *Server) handleListMessages(c echo.Context) error {
	messages, err := s.app.ListMessages(c.Request().Context(), c.Param("room_id"))
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return writeJSON(c, messages)
}

func (s *Server) handleCreateMessage(c echo.Context) error {
	var req wire.CreateMessageRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid json")
	}

	id, err := s.app.CreateMessage(c.Request().Context(), c.Param("room_id"), req.Message)
	if err != nil {
		return err
	}
	return writeJSON(c, wire.IDResponse{ID: id})
}

func (s *Server) handleGetMessage(c echo.Context) error {
	msg, err := s.app.GetMessage(c.Request().Context(), c.Param("room_id"), c.Param("message_id"))
	if err != nil {
		return err
	}
	return writeJSON(c, msg)
}

func (s *Server) handleReact(c echo.Context) error {
	count, err := s.app.React(c.Request().Context(), c.Param("room_id"), c.Param("message_id"))
	if err != nil {
		return err
	}
	return writeJSON(c, wire.CountResponse{Count: count})
}

func (s *Server) handleUnreact(c echo.Context) error {
	count, err := s.app.Unreact(c.Request().Context(), c.Param("room_id"), c.Param("message_id"))
	if err != nil {
		return err
	}
	return writeJSON(c, wire.CountResponse{Count: count})
}

func (s *Server) handleMarkAnswered(c echo.Context) error {
	if err := s.app.MarkAnswered(c.Request().Context(), c.Param("room_id"), c.Param("message_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}
