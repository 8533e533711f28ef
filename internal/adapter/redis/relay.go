package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pscheid92/roomqa/internal/adapter/metrics"
	"github.com/pscheid92/roomqa/internal/domain"
	"github.com/pscheid92/roomqa/internal/wire"
	goredis "github.com/redis/go-redis/v9"
)

const (
	channelPrefix       = "roomqa:room:"
	subscriptionTimeout = 5 * time.Second
)

func roomChannel(roomID string) string {
	return channelPrefix + roomID
}

// Deliverer hands an encoded event to the local subscribers of a room.
type Deliverer interface {
	Deliver(roomID string, payload []byte) int
}

// Relay publishes room events to Redis and delivers events arriving from
// Redis to local subscribers. Events published by this instance reach its
// own subscribers through the same channel, so every instance observes the
// order Redis assigned.
type Relay struct {
	rdb     *goredis.Client
	pubsub  *goredis.PubSub
	local   Deliverer
	metrics *metrics.RedisMetrics
}

var _ domain.EventPublisher = (*Relay)(nil)

// NewRelay opens the relay's Pub/Sub connection. It starts with no channels;
// Track adds one per active room. m may be nil.
func NewRelay(ctx context.Context, rdb *goredis.Client, local Deliverer, m *metrics.RedisMetrics) *Relay {
	return &Relay{
		rdb:     rdb,
		pubsub:  rdb.Subscribe(ctx),
		local:   local,
		metrics: m,
	}
}

// Publish sends the event to every instance with subscribers in the room,
// including this one.
func (r *Relay) Publish(ctx context.Context, roomID string, event domain.Event) error {
	payload, err := wire.EncodeEvent(event)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, roomChannel(roomID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	r.countMessage("out")
	return nil
}

// Track subscribes to the room's channel. Wire it to the broadcaster's
// first-subscriber hook.
func (r *Relay) Track(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), subscriptionTimeout)
	defer cancel()

	if err := r.pubsub.Subscribe(ctx, roomChannel(roomID)); err != nil {
		slog.Error("failed to subscribe to room channel", "room_id", roomID, "error", err)
		return
	}
	slog.Debug("tracking room", "room_id", roomID)
}

// Untrack drops the room's channel. Wire it to the broadcaster's room-empty hook.
func (r *Relay) Untrack(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), subscriptionTimeout)
	defer cancel()

	if err := r.pubsub.Unsubscribe(ctx, roomChannel(roomID)); err != nil {
		slog.Error("failed to unsubscribe from room channel", "room_id", roomID, "error", err)
		return
	}
	slog.Debug("untracked room", "room_id", roomID)
}

// Run delivers relayed events until ctx is done or the relay is closed.
func (r *Relay) Run(ctx context.Context) {
	ch := r.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handle(msg)
		}
	}
}

func (r *Relay) handle(msg *goredis.Message) {
	roomID, ok := strings.CutPrefix(msg.Channel, channelPrefix)
	if !ok {
		return
	}

	payload := []byte(msg.Payload)
	if _, err := wire.DecodeEvent(payload); err != nil {
		slog.Warn("dropping malformed relayed event", "room_id", roomID, "error", err)
		return
	}

	r.countMessage("in")
	r.local.Deliver(roomID, payload)
}

func (r *Relay) countMessage(direction string) {
	if r.metrics != nil {
		r.metrics.RelayMessages.WithLabelValues(direction).Inc()
	}
}

// Close tears down the Pub/Sub connection, which ends Run.
func (r *Relay) Close() error {
	return r.pubsub.Close()
}
