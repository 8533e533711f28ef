package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/roomqa/internal/adapter/metrics"
	"github.com/pscheid92/roomqa/internal/domain"
	"github.com/pscheid92/roomqa/internal/wire"
)

const stopTimeout = 10 * time.Second

// Broadcaster is the in-process event bus. It owns the Registry and the
// subscriber connections created through Subscribe.
type Broadcaster struct {
	registry *Registry
	clock    clockwork.Clock
	opts     Options

	broadcastMetrics  *metrics.BroadcastMetrics
	subscriberMetrics *metrics.SubscriberMetrics
}

var _ domain.EventPublisher = (*Broadcaster)(nil)

func NewBroadcaster(opts Options, clock clockwork.Clock, bm *metrics.BroadcastMetrics, sm *metrics.SubscriberMetrics) *Broadcaster {
	opts = opts.withDefaults()

	registry := NewRegistry(opts.MaxPerRoom)
	registry.onRoomCount = func(active int) { sm.ActiveRooms.Set(float64(active)) }

	return &Broadcaster{
		registry:          registry,
		clock:             clock,
		opts:              opts,
		broadcastMetrics:  bm,
		subscriberMetrics: sm,
	}
}

// SetLifecycleHooks forwards to the registry; see Registry.SetLifecycleHooks.
func (b *Broadcaster) SetLifecycleHooks(onFirstSubscriber, onRoomEmpty func(roomID string)) {
	b.registry.SetLifecycleHooks(onFirstSubscriber, onRoomEmpty)
}

// Reserve registers a connection for roomID before its socket exists, so
// events published while the WebSocket upgrade is in flight are queued for
// it. Follow up with Bind, or Close with ReasonUpgradeFailed.
func (b *Broadcaster) Reserve(roomID string) (*Connection, error) {
	conn := newConnection(roomID, nil, b.clock, b.opts)
	conn.onClosed = b.handleClosed
	b.subscriberMetrics.ActiveConnections.Inc()

	if _, err := b.registry.Register(roomID, conn); err != nil {
		slog.Warn("Rejecting subscriber", "room_id", roomID, "error", err)
		b.subscriberMetrics.Rejected.WithLabelValues(string(ReasonRoomFull)).Inc()
		conn.Close(ReasonRoomFull)
		return nil, fmt.Errorf("failed to register subscriber: %w", err)
	}
	return conn, nil
}

// Refuse closes a socket that could not be given a connection, sending the
// close frame for reason.
func (b *Broadcaster) Refuse(socket Socket, reason CloseReason) {
	refuse(socket, reason, b.clock.Now().Add(b.opts.WriteTimeout))
}

// Subscribe binds socket to roomID and starts pushing events to it. On error
// the socket has already been closed with an explanatory close frame.
func (b *Broadcaster) Subscribe(roomID string, socket Socket) (*Connection, error) {
	conn, err := b.Reserve(roomID)
	if err != nil {
		b.Refuse(socket, ReasonRoomFull)
		return nil, err
	}
	if err := conn.Bind(socket); err != nil {
		return nil, err
	}

	slog.Debug("Subscriber connected", "room_id", roomID, "connection_id", conn.ID())
	return conn, nil
}

func (b *Broadcaster) handleClosed(c *Connection, reason CloseReason) {
	b.subscriberMetrics.Disconnects.WithLabelValues(string(reason)).Inc()
	b.subscriberMetrics.ActiveConnections.Dec()
	slog.Debug("Subscriber disconnected", "room_id", c.RoomID(), "connection_id", c.ID(), "reason", reason)
}

// Publish encodes event once and delivers it to the room's current
// subscribers. It never waits on a subscriber.
func (b *Broadcaster) Publish(_ context.Context, roomID string, event domain.Event) error {
	data, err := wire.EncodeEvent(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	b.broadcastMetrics.EventsPublished.WithLabelValues(string(event.Kind())).Inc()
	b.Deliver(roomID, data)
	return nil
}

// Deliver pushes an already encoded event to the room's subscribers and
// returns how many accepted it. Subscribers with a full queue are closed.
func (b *Broadcaster) Deliver(roomID string, payload []byte) int {
	start := b.clock.Now()

	var slow []*Connection
	delivered := 0
	b.registry.forEach(roomID, func(c *Connection) {
		if err := c.enqueue(payload); err != nil {
			slow = append(slow, c)
			return
		}
		delivered++
	})

	b.broadcastMetrics.FanOutDuration.Observe(b.clock.Since(start).Seconds())
	b.broadcastMetrics.EventsDelivered.Add(float64(delivered))

	for _, c := range slow {
		if c.State() == StateClosed {
			continue
		}
		slog.Warn("Disconnecting slow subscriber", "room_id", roomID, "connection_id", c.ID())
		b.broadcastMetrics.SlowEvicted.Inc()
		go c.Close(ReasonOverflow)
	}

	return delivered
}

func (b *Broadcaster) SubscriberCount(roomID string) int {
	return len(b.registry.ConnectionsFor(roomID))
}

func (b *Broadcaster) ActiveRooms() []string {
	return b.registry.Rooms()
}

// Stop closes every subscriber with a going-away frame. Blocks until all
// connections are closed or the stop timeout passes.
func (b *Broadcaster) Stop() {
	var conns []*Connection
	for _, roomID := range b.registry.Rooms() {
		conns = append(conns, b.registry.ConnectionsFor(roomID)...)
	}

	slog.Info("Broadcaster shutting down", "rooms", len(b.registry.Rooms()), "subscribers", len(conns))

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close(ReasonShutdown)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := b.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		slog.Info("Broadcaster stopped gracefully", "disconnected_subscribers", len(conns))
	case <-timer.Chan():
		slog.Warn("Broadcaster stop timeout exceeded", "timeout", stopTimeout)
	}
}
