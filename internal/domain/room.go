package domain

import "context"

// Room is a named space grouping messages. It is identified by an opaque ID
// and carries a free-form theme. Rooms are never deleted.
type Room struct {
	ID    string
	Theme string
}

type RoomRepository interface {
	CreateRoom(ctx context.Context, theme string) (string, error)
	GetRoom(ctx context.Context, roomID string) (*Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
}
