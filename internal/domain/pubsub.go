package domain

import (
	"context"
)

// EventPublisher fans a room event out to every current subscriber of the room.
type EventPublisher interface {
	Publish(ctx context.Context, roomID string, event Event) error
}
