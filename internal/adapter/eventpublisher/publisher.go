package eventpublisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pscheid92/roomqa/internal/domain"
)

// EventPublisher implements domain.EventPublisher by composing the
// cross-instance relay with local delivery. Without a relay every event is
// delivered locally. When the relay fails the event still reaches this
// instance's subscribers.
type EventPublisher struct {
	relay domain.EventPublisher
	local domain.EventPublisher
}

// New composes the publishers. relay may be nil for single-instance setups.
func New(relay, local domain.EventPublisher) *EventPublisher {
	return &EventPublisher{relay: relay, local: local}
}

func (ep *EventPublisher) Publish(ctx context.Context, roomID string, event domain.Event) error {
	if ep.relay == nil {
		return ep.publishLocal(ctx, roomID, event)
	}

	err := ep.relay.Publish(ctx, roomID, event)
	if err == nil {
		return nil
	}

	slog.WarnContext(ctx, "Relay publish failed, delivering locally only",
		"room_id", roomID, "kind", event.Kind(), "error", err)
	return ep.publishLocal(ctx, roomID, event)
}

func (ep *EventPublisher) publishLocal(ctx context.Context, roomID string, event domain.Event) error {
	if err := ep.local.Publish(ctx, roomID, event); err != nil {
		return fmt.Errorf("publish %s: %w", event.Kind(), err)
	}
	return nil
}
