package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/roomqa/internal/adapter/metrics"
	"github.com/pscheid92/roomqa/internal/domain"
	apperrors "github.com/pscheid92/roomqa/internal/platform/errors"
)

const (
	DefaultMaxMessageLength = 1000
	publishTimeout          = 5 * time.Second
)

const (
	commandCreateMessage = "create_message"
	commandReact         = "react"
	commandUnreact       = "unreact"
	commandMarkAnswered  = "mark_answered"
	commandCreateRoom    = "create_room"
)

// Service is the application layer. It is the only component that talks to
// both the store and the event publisher.
type Service struct {
	store            domain.Store
	publisher        domain.EventPublisher
	metrics          *metrics.CommandMetrics
	clock            clockwork.Clock
	maxMessageLength int
	rooms            *roomLocks
}

// NewService wires the service. m may be nil; maxMessageLength <= 0 selects
// DefaultMaxMessageLength.
func NewService(store domain.Store, publisher domain.EventPublisher, m *metrics.CommandMetrics, clock clockwork.Clock, maxMessageLength int) *Service {
	if maxMessageLength <= 0 {
		maxMessageLength = DefaultMaxMessageLength
	}
	return &Service{
		store:            store,
		publisher:        publisher,
		metrics:          m,
		clock:            clock,
		maxMessageLength: maxMessageLength,
		rooms:            newRoomLocks(),
	}
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) ListRooms(ctx context.Context) ([]domain.Room, error) {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, apperrors.InternalError("failed to list rooms", err)
	}
	return rooms, nil
}

func (s *Service) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, mapStoreError(err, roomID, "")
	}
	return room, nil
}

// CreateRoom creates a room with a non-blank theme.
func (s *Service) CreateRoom(ctx context.Context, theme string) (string, error) {
	var id string
	err := s.observe(commandCreateRoom, func() error {
		if strings.TrimSpace(theme) == "" {
			return apperrors.ValidationError("theme must not be empty")
		}

		var err error
		id, err = s.store.CreateRoom(ctx, theme)
		if err != nil {
			return apperrors.InternalError("failed to create room", err)
		}
		return nil
	})
	return id, err
}

// ListMessages returns the room's messages in creation order. Every call
// reads the store, so a snapshot requested after a commit reflects it.
func (s *Service) ListMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	messages, err := s.store.ListMessages(ctx, roomID)
	if err != nil {
		return nil, mapStoreError(err, roomID, "")
	}
	return messages, nil
}

func (s *Service) GetMessage(ctx context.Context, roomID, messageID string) (*domain.Message, error) {
	msg, err := s.store.GetMessage(ctx, roomID, messageID)
	if err != nil {
		return nil, mapStoreError(err, roomID, messageID)
	}
	return msg, nil
}

// observe records the outcome and duration of a command.
func (s *Service) observe(command string, fn func() error) error {
	start := s.clock.Now()
	err := fn()

	if s.metrics != nil {
		result := "ok"
		if err != nil {
			result = resultLabel(err)
		}
		s.metrics.CommandsTotal.WithLabelValues(command, result).Inc()
		s.metrics.CommandDuration.WithLabelValues(command).Observe(s.clock.Since(start).Seconds())
	}
	return err
}

func resultLabel(err error) string {
	if se := apperrors.AsStructuredError(err); se != nil {
		return string(se.Type)
	}
	return string(apperrors.TypeInternal)
}

// publish hands a committed event to the publisher. The state change is
// already durable, so a failure here is logged and counted but not returned.
func (s *Service) publish(ctx context.Context, command, roomID string, event domain.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, roomID, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event",
			"room_id", roomID, "message_id", event.MessageID(), "kind", event.Kind(), "error", err)
		if s.metrics != nil {
			s.metrics.PublishFailures.WithLabelValues(command).Inc()
		}
	}
}

func mapStoreError(err error, roomID, messageID string) error {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return apperrors.NotFoundError("room not found").WithField("room_id", roomID)
	case errors.Is(err, domain.ErrMessageNotFound):
		return apperrors.NotFoundError("message not found").
			WithField("room_id", roomID).
			WithField("message_id", messageID)
	default:
		return apperrors.InternalError("store operation failed", err)
	}
}

func (s *Service) validateMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return apperrors.ValidationError("message must not be empty")
	}
	if n := utf8.RuneCountInString(text); n > s.maxMessageLength {
		return apperrors.ValidationError("message is too long").
			WithField("length", n).
			WithField("max_length", s.maxMessageLength)
	}
	return nil
}
