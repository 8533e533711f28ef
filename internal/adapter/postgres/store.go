package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/roomqa/internal/domain"
)

const foreignKeyViolation = "23503"

// Store implements domain.Store backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ domain.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Identifiers are UUIDs in this backend. Anything else cannot name an
// existing row and is reported as not found.
func parseID(id string) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(id)
	return parsed, err == nil
}

func (s *Store) CreateRoom(ctx context.Context, theme string) (string, error) {
	id := uuid.New()
	if _, err := s.pool.Exec(ctx, `INSERT INTO rooms (id, theme) VALUES ($1, $2)`, id, theme); err != nil {
		return "", fmt.Errorf("failed to insert room: %w", err)
	}
	return id.String(), nil
}

func (s *Store) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	id, ok := parseID(roomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}

	var room domain.Room
	var rid uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT id, theme FROM rooms WHERE id = $1`, id).Scan(&rid, &room.Theme)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	room.ID = rid.String()
	return &room, nil
}

func (s *Store) ListRooms(ctx context.Context) ([]domain.Room, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, theme FROM rooms ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	rooms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Room, error) {
		var id uuid.UUID
		var room domain.Room
		if err := row.Scan(&id, &room.Theme); err != nil {
			return room, err
		}
		room.ID = id.String()
		return room, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan rooms: %w", err)
	}
	return rooms, nil
}

func (s *Store) CreateMessage(ctx context.Context, roomID, text string) (string, error) {
	rid, ok := parseID(roomID)
	if !ok {
		return "", domain.ErrRoomNotFound
	}

	id := uuid.New()
	_, err := s.pool.Exec(ctx, `INSERT INTO messages (id, room_id, message) VALUES ($1, $2, $3)`, id, rid, text)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return "", domain.ErrRoomNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}
	return id.String(), nil
}

const messageColumns = `id, room_id, message, reaction_count, answered`

func scanMessage(row pgx.Row) (domain.Message, error) {
	var id, roomID uuid.UUID
	var msg domain.Message
	if err := row.Scan(&id, &roomID, &msg.Message, &msg.ReactionCount, &msg.Answered); err != nil {
		return msg, err
	}
	msg.ID = id.String()
	msg.RoomID = roomID.String()
	return msg, nil
}

func (s *Store) GetMessage(ctx context.Context, roomID, messageID string) (*domain.Message, error) {
	rid, mid, err := s.parseMessageRef(ctx, roomID, messageID)
	if err != nil {
		return nil, err
	}

	msg, err := scanMessage(s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1 AND room_id = $2`, mid, rid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.missing(ctx, rid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

func (s *Store) ListMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE room_id = $1 ORDER BY seq`, uuid.MustParse(room.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Message, error) {
		return scanMessage(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan messages: %w", err)
	}
	return messages, nil
}

func (s *Store) React(ctx context.Context, roomID, messageID string) (int64, error) {
	return s.updateCount(ctx, roomID, messageID,
		`UPDATE messages SET reaction_count = reaction_count + 1
		 WHERE id = $1 AND room_id = $2 RETURNING reaction_count`)
}

func (s *Store) Unreact(ctx context.Context, roomID, messageID string) (int64, error) {
	return s.updateCount(ctx, roomID, messageID,
		`UPDATE messages SET reaction_count = GREATEST(reaction_count - 1, 0)
		 WHERE id = $1 AND room_id = $2 RETURNING reaction_count`)
}

func (s *Store) updateCount(ctx context.Context, roomID, messageID, query string) (int64, error) {
	rid, mid, err := s.parseMessageRef(ctx, roomID, messageID)
	if err != nil {
		return 0, err
	}

	var count int64
	err = s.pool.QueryRow(ctx, query, mid, rid).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, s.missing(ctx, rid)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update reaction count: %w", err)
	}
	return count, nil
}

func (s *Store) MarkAnswered(ctx context.Context, roomID, messageID string) error {
	rid, mid, err := s.parseMessageRef(ctx, roomID, messageID)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `UPDATE messages SET answered = true WHERE id = $1 AND room_id = $2`, mid, rid)
	if err != nil {
		return fmt.Errorf("failed to mark message answered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missing(ctx, rid)
	}
	return nil
}

func (s *Store) parseMessageRef(ctx context.Context, roomID, messageID string) (uuid.UUID, uuid.UUID, error) {
	rid, ok := parseID(roomID)
	if !ok {
		return uuid.Nil, uuid.Nil, domain.ErrRoomNotFound
	}
	mid, ok := parseID(messageID)
	if !ok {
		return uuid.Nil, uuid.Nil, s.missing(ctx, rid)
	}
	return rid, mid, nil
}

// missing tells an absent room apart from an absent message once a
// message lookup came back empty.
func (s *Store) missing(ctx context.Context, roomID uuid.UUID) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, roomID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check room: %w", err)
	}
	if !exists {
		return domain.ErrRoomNotFound
	}
	return domain.ErrMessageNotFound
}
