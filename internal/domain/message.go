package domain

import "context"

// Message is a question posted into a room. Field names double as the REST
// payload keys, so they are serialized without tags.
type Message struct {
	ID            string
	RoomID        string
	Message       string
	ReactionCount int64
	Answered      bool
}

type MessageRepository interface {
	// Writes

	CreateMessage(ctx context.Context, roomID, text string) (string, error)
	React(ctx context.Context, roomID, messageID string) (int64, error)
	Unreact(ctx context.Context, roomID, messageID string) (int64, error)
	MarkAnswered(ctx context.Context, roomID, messageID string) error

	// Reads

	GetMessage(ctx context.Context, roomID, messageID string) (*Message, error)
	ListMessages(ctx context.Context, roomID string) ([]Message, error)
}

// Store is the full persistence contract used by the application service.
type Store interface {
	RoomRepository
	MessageRepository
	Ping(ctx context.Context) error
	Close() error
}
