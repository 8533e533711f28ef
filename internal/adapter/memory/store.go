// Package memory provides a process-local domain.Store for development and
// tests. Nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pscheid92/roomqa/internal/domain"
)

type room struct {
	domain.Room
	messages []*domain.Message
	byID     map[string]*domain.Message
}

// Store keeps rooms and messages in maps guarded by a single RWMutex.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*room
	order []string
}

var _ domain.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{rooms: make(map[string]*room)}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateRoom(_ context.Context, theme string) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[id] = &room{
		Room: domain.Room{ID: id, Theme: theme},
		byID: make(map[string]*domain.Message),
	}
	s.order = append(s.order, id)
	return id, nil
}

func (s *Store) GetRoom(_ context.Context, roomID string) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	out := r.Room
	return &out, nil
}

func (s *Store) ListRooms(context.Context) ([]domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]domain.Room, 0, len(s.order))
	for _, id := range s.order {
		rooms = append(rooms, s.rooms[id].Room)
	}
	return rooms, nil
}

func (s *Store) CreateMessage(_ context.Context, roomID, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return "", domain.ErrRoomNotFound
	}

	msg := &domain.Message{ID: uuid.NewString(), RoomID: roomID, Message: text}
	r.messages = append(r.messages, msg)
	r.byID[msg.ID] = msg
	return msg.ID, nil
}

func (s *Store) GetMessage(_ context.Context, roomID, messageID string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, err := s.lookup(roomID, messageID)
	if err != nil {
		return nil, err
	}
	out := *msg
	return &out, nil
}

func (s *Store) ListMessages(_ context.Context, roomID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}

	messages := make([]domain.Message, 0, len(r.messages))
	for _, m := range r.messages {
		messages = append(messages, *m)
	}
	return messages, nil
}

func (s *Store) React(_ context.Context, roomID, messageID string) (int64, error) {
	return s.adjust(roomID, messageID, 1)
}

func (s *Store) Unreact(_ context.Context, roomID, messageID string) (int64, error) {
	return s.adjust(roomID, messageID, -1)
}

func (s *Store) adjust(roomID, messageID string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, err := s.lookup(roomID, messageID)
	if err != nil {
		return 0, err
	}
	msg.ReactionCount = max(msg.ReactionCount+delta, 0)
	return msg.ReactionCount, nil
}

func (s *Store) MarkAnswered(_ context.Context, roomID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, err := s.lookup(roomID, messageID)
	if err != nil {
		return err
	}
	msg.Answered = true
	return nil
}

// lookup must be called with s.mu held.
func (s *Store) lookup(roomID, messageID string) (*domain.Message, error) {
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	msg, ok := r.byID[messageID]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	return msg, nil
}
