// Package pebble implements domain.Store on an embedded Pebble key-value
// database, for single-instance deployments that need durability without
// an external database.
//
// Key layout:
//
//	seq                        last issued sequence number
//	room/<seq>                 room record, ordered by creation
//	roomid/<room-id>           <seq> of the room record
//	msg/<room-id>/<seq>        message record, ordered by creation
//	msgid/<room-id>/<msg-id>   <seq> of the message record
package pebble

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"github.com/pscheid92/roomqa/internal/domain"
)

var seqKey = []byte("seq")

// Store serializes writes with a mutex so read-modify-write updates such as
// reaction counts stay atomic. Reads go straight to Pebble.
type Store struct {
	db *pebble.DB

	mu  sync.Mutex
	seq uint64
}

var _ domain.Store = (*Store)(nil)

// Open opens or creates the database directory at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create pebble directory: %w", err)
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble: %w", err)
	}

	s := &Store{db: db}
	v, closer, err := db.Get(seqKey)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		_ = db.Close()
		return nil, fmt.Errorf("failed to read sequence: %w", err)
	default:
		s.seq = binary.BigEndian.Uint64(v)
		_ = closer.Close()
	}
	return s, nil
}

func (s *Store) Ping(context.Context) error {
	_, closer, err := s.db.Get(seqKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return closer.Close()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func encodeSeq(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func roomKey(seq []byte) []byte       { return append([]byte("room/"), seq...) }
func roomIDKey(roomID string) []byte  { return []byte("roomid/" + roomID) }
func msgPrefix(roomID string) []byte  { return []byte("msg/" + roomID + "/") }
func msgKey(roomID string, seq []byte) []byte {
	return append(msgPrefix(roomID), seq...)
}
func msgIDKey(roomID, messageID string) []byte {
	return []byte("msgid/" + roomID + "/" + messageID)
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	end[len(end)-1]++
	return end
}

// get copies the value for key, returning ok=false when it is absent.
func (s *Store) get(key []byte) ([]byte, bool, error) {
	v, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), true, nil
}

// nextSeq must be called with s.mu held. The new value is written into b.
func (s *Store) nextSeq(b *pebble.Batch) ([]byte, error) {
	s.seq++
	seq := encodeSeq(s.seq)
	if err := b.Set(seqKey, seq, nil); err != nil {
		return nil, err
	}
	return seq, nil
}

func (s *Store) CreateRoom(_ context.Context, theme string) (string, error) {
	room := domain.Room{ID: uuid.NewString(), Theme: theme}
	data, err := json.Marshal(room)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()

	seq, err := s.nextSeq(b)
	if err != nil {
		return "", err
	}
	if err := b.Set(roomKey(seq), data, nil); err != nil {
		return "", err
	}
	if err := b.Set(roomIDKey(room.ID), seq, nil); err != nil {
		return "", err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return "", fmt.Errorf("failed to commit room: %w", err)
	}
	return room.ID, nil
}

func (s *Store) GetRoom(_ context.Context, roomID string) (*domain.Room, error) {
	seq, ok, err := s.get(roomIDKey(roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to get room index: %w", err)
	}
	if !ok {
		return nil, domain.ErrRoomNotFound
	}

	data, ok, err := s.get(roomKey(seq))
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if !ok {
		return nil, domain.ErrRoomNotFound
	}

	var room domain.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("failed to decode room: %w", err)
	}
	return &room, nil
}

func (s *Store) ListRooms(context.Context) ([]domain.Room, error) {
	rooms := []domain.Room{}
	err := s.scan([]byte("room/"), func(v []byte) error {
		var room domain.Room
		if err := json.Unmarshal(v, &room); err != nil {
			return fmt.Errorf("failed to decode room: %w", err)
		}
		rooms = append(rooms, room)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *Store) CreateMessage(ctx context.Context, roomID, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return "", err
	}

	msg := domain.Message{ID: uuid.NewString(), RoomID: roomID, Message: text}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	b := s.db.NewBatch()
	defer b.Close()

	seq, err := s.nextSeq(b)
	if err != nil {
		return "", err
	}
	if err := b.Set(msgKey(roomID, seq), data, nil); err != nil {
		return "", err
	}
	if err := b.Set(msgIDKey(roomID, msg.ID), seq, nil); err != nil {
		return "", err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return "", fmt.Errorf("failed to commit message: %w", err)
	}
	return msg.ID, nil
}

func (s *Store) GetMessage(ctx context.Context, roomID, messageID string) (*domain.Message, error) {
	msg, _, err := s.loadMessage(ctx, roomID, messageID)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Store) ListMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	messages := []domain.Message{}
	err := s.scan(msgPrefix(roomID), func(v []byte) error {
		var msg domain.Message
		if err := json.Unmarshal(v, &msg); err != nil {
			return fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *Store) React(ctx context.Context, roomID, messageID string) (int64, error) {
	var count int64
	err := s.update(ctx, roomID, messageID, func(m *domain.Message) {
		m.ReactionCount++
		count = m.ReactionCount
	})
	return count, err
}

func (s *Store) Unreact(ctx context.Context, roomID, messageID string) (int64, error) {
	var count int64
	err := s.update(ctx, roomID, messageID, func(m *domain.Message) {
		m.ReactionCount = max(m.ReactionCount-1, 0)
		count = m.ReactionCount
	})
	return count, err
}

func (s *Store) MarkAnswered(ctx context.Context, roomID, messageID string) error {
	return s.update(ctx, roomID, messageID, func(m *domain.Message) {
		m.Answered = true
	})
}

func (s *Store) update(ctx context.Context, roomID, messageID string, mutate func(*domain.Message)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, key, err := s.loadMessage(ctx, roomID, messageID)
	if err != nil {
		return err
	}
	mutate(msg)

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}

func (s *Store) loadMessage(ctx context.Context, roomID, messageID string) (*domain.Message, []byte, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, nil, err
	}

	seq, ok, err := s.get(msgIDKey(roomID, messageID))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get message index: %w", err)
	}
	if !ok {
		return nil, nil, domain.ErrMessageNotFound
	}

	key := msgKey(roomID, seq)
	data, ok, err := s.get(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get message: %w", err)
	}
	if !ok {
		return nil, nil, domain.ErrMessageNotFound
	}

	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return &msg, key, nil
}

func (s *Store) scan(prefix []byte, fn func(value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	for ok := iter.First(); ok; ok = iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}
