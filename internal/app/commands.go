package app

import (
	"context"

	"github.com/pscheid92/roomqa/internal/domain"
)

// CreateMessage posts a question into a room and announces it.
func (s *Service) CreateMessage(ctx context.Context, roomID, text string) (string, error) {
	var id string
	err := s.observe(commandCreateMessage, func() error {
		if err := s.validateMessage(text); err != nil {
			return err
		}

		defer s.rooms.lock(roomID)()

		var err error
		id, err = s.store.CreateMessage(ctx, roomID, text)
		if err != nil {
			return mapStoreError(err, roomID, "")
		}

		s.publish(ctx, commandCreateMessage, roomID, domain.MessageCreated{ID: id, Message: text})
		return nil
	})
	return id, err
}

// React adds one reaction and returns the resulting count.
func (s *Service) React(ctx context.Context, roomID, messageID string) (int64, error) {
	return s.changeReaction(ctx, commandReact, roomID, messageID, true)
}

// Unreact removes one reaction, never going below zero, and returns the
// resulting count. Unreacting at zero still announces the unchanged count.
func (s *Service) Unreact(ctx context.Context, roomID, messageID string) (int64, error) {
	return s.changeReaction(ctx, commandUnreact, roomID, messageID, false)
}

func (s *Service) changeReaction(ctx context.Context, command, roomID, messageID string, increase bool) (int64, error) {
	var count int64
	err := s.observe(command, func() error {
		defer s.rooms.lock(roomID)()

		var err error
		if increase {
			count, err = s.store.React(ctx, roomID, messageID)
		} else {
			count, err = s.store.Unreact(ctx, roomID, messageID)
		}
		if err != nil {
			return mapStoreError(err, roomID, messageID)
		}

		s.publish(ctx, command, roomID, domain.ReactionChanged{ID: messageID, Count: count, Increased: increase})
		return nil
	})
	return count, err
}

// MarkAnswered flags a message as answered. Repeating it is harmless and
// announces the flag again.
func (s *Service) MarkAnswered(ctx context.Context, roomID, messageID string) error {
	return s.observe(commandMarkAnswered, func() error {
		defer s.rooms.lock(roomID)()

		if err := s.store.MarkAnswered(ctx, roomID, messageID); err != nil {
			return mapStoreError(err, roomID, messageID)
		}

		s.publish(ctx, commandMarkAnswered, roomID, domain.MessageAnswered{ID: messageID})
		return nil
	})
}
