package broadcast

import (
	"errors"
	"sync"
)

var (
	ErrRoomFull         = errors.New("room has reached its subscriber limit")
	ErrRoomMismatch     = errors.New("connection is bound to a different room")
	ErrConnectionClosed = errors.New("connection is closing or closed")
	ErrAlreadyBound     = errors.New("connection already has a socket")
)

type room struct {
	id      string
	mu      sync.Mutex
	conns   map[*Connection]*Subscription
	retired bool
}

// Registry maps rooms to their current subscriber connections. Lookups of
// the room table take a registry-wide lock briefly; everything touching a
// room's subscriber set takes only that room's lock.
type Registry struct {
	mu         sync.Mutex
	rooms      map[string]*room
	maxPerRoom int

	hooksMu           sync.Mutex
	onFirstSubscriber func(roomID string)
	onRoomEmpty       func(roomID string)
	onRoomCount       func(active int)
}

// Subscription is the handle returned by Register. Unregister may be called
// any number of times.
type Subscription struct {
	registry *Registry
	room     *room
	conn     *Connection
	once     sync.Once
}

func NewRegistry(maxPerRoom int) *Registry {
	return &Registry{
		rooms:      make(map[string]*room),
		maxPerRoom: maxPerRoom,
	}
}

// SetLifecycleHooks installs callbacks fired when a room gains its first
// subscriber and when it loses its last one. Must be called before the first
// Register.
func (r *Registry) SetLifecycleHooks(onFirstSubscriber, onRoomEmpty func(roomID string)) {
	r.onFirstSubscriber = onFirstSubscriber
	r.onRoomEmpty = onRoomEmpty
}

// Register adds conn to the subscriber set of roomID. Registering the same
// connection again returns its existing subscription.
func (r *Registry) Register(roomID string, conn *Connection) (*Subscription, error) {
	if conn.RoomID() != roomID {
		return nil, ErrRoomMismatch
	}

	for {
		rm, created := r.acquire(roomID)

		rm.mu.Lock()
		if rm.retired {
			rm.mu.Unlock()
			continue
		}
		if sub, ok := rm.conns[conn]; ok {
			rm.mu.Unlock()
			return sub, nil
		}
		if r.maxPerRoom > 0 && len(rm.conns) >= r.maxPerRoom {
			rm.mu.Unlock()
			if created {
				r.retireIfEmpty(rm)
			}
			return nil, ErrRoomFull
		}

		sub := &Subscription{registry: r, room: rm, conn: conn}
		rm.conns[conn] = sub
		conn.attach(sub)
		first := len(rm.conns) == 1
		rm.mu.Unlock()

		if first {
			r.fireFirstSubscriber(roomID)
		}
		return sub, nil
	}
}

// Unregister removes the subscription's connection from its room. Safe to
// call multiple times.
func (s *Subscription) Unregister() {
	s.once.Do(func() {
		s.room.mu.Lock()
		delete(s.room.conns, s.conn)
		empty := len(s.room.conns) == 0
		s.room.mu.Unlock()

		if empty {
			s.registry.retireIfEmpty(s.room)
		}
	})
}

// ConnectionsFor returns a snapshot of the connections subscribed to roomID.
func (r *Registry) ConnectionsFor(roomID string) []*Connection {
	rm := r.lookup(roomID)
	if rm == nil {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	conns := make([]*Connection, 0, len(rm.conns))
	for c := range rm.conns {
		conns = append(conns, c)
	}
	return conns
}

// Rooms returns the IDs of rooms with at least one subscriber.
func (r *Registry) Rooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}

// forEach runs fn for every subscriber of roomID while holding the room lock,
// so registration changes cannot interleave with one delivery pass.
func (r *Registry) forEach(roomID string, fn func(c *Connection)) int {
	rm := r.lookup(roomID)
	if rm == nil {
		return 0
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	for c := range rm.conns {
		fn(c)
	}
	return len(rm.conns)
}

func (r *Registry) lookup(roomID string) *room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[roomID]
}

func (r *Registry) acquire(roomID string) (*room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, ok := r.rooms[roomID]; ok {
		return rm, false
	}

	rm := &room{id: roomID, conns: make(map[*Connection]*Subscription)}
	r.rooms[roomID] = rm
	r.reportRoomCount()
	return rm, true
}

func (r *Registry) retireIfEmpty(rm *room) {
	r.mu.Lock()
	rm.mu.Lock()
	retired := false
	if len(rm.conns) == 0 && !rm.retired && r.rooms[rm.id] == rm {
		rm.retired = true
		delete(r.rooms, rm.id)
		retired = true
		r.reportRoomCount()
	}
	rm.mu.Unlock()
	r.mu.Unlock()

	if retired {
		r.fireRoomEmpty(rm.id)
	}
}

// Hooks run one at a time and re-check the room table first, so a room that
// is retired and re-created in quick succession always ends in the right state
// regardless of which callback wins the race to hooksMu.
func (r *Registry) fireFirstSubscriber(roomID string) {
	if r.onFirstSubscriber == nil {
		return
	}
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	if r.lookup(roomID) != nil {
		r.onFirstSubscriber(roomID)
	}
}

func (r *Registry) fireRoomEmpty(roomID string) {
	if r.onRoomEmpty == nil {
		return
	}
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	if r.lookup(roomID) == nil {
		r.onRoomEmpty(roomID)
	}
}

// reportRoomCount must be called with r.mu held.
func (r *Registry) reportRoomCount() {
	if r.onRoomCount != nil {
		r.onRoomCount(len(r.rooms))
	}
}
