package broadcast

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	apperrors "github.com/pscheid92/roomqa/internal/platform/errors"
)

const (
	defaultQueueSize    = 16
	defaultWriteTimeout = 5 * time.Second
	pingInterval        = 30 * time.Second
	pongDeadline        = 60 * time.Second
	maxInboundFrame     = 512
)

type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type CloseReason string

const (
	ReasonClientClosed  CloseReason = "client_closed"
	ReasonPongTimeout   CloseReason = "pong_timeout"
	ReasonWriteFailed   CloseReason = "write_failed"
	ReasonOverflow      CloseReason = "overflow"
	ReasonRoomFull      CloseReason = "room_full"
	ReasonShutdown      CloseReason = "shutdown"
	ReasonUpgradeFailed CloseReason = "upgrade_failed"
)

// closeFrame returns the WebSocket close code sent to the peer, or 0 when the
// socket is already unusable and no frame should be attempted.
func (r CloseReason) closeFrame() (int, string) {
	switch r {
	case ReasonOverflow:
		return websocket.CloseTryAgainLater, "subscriber too slow"
	case ReasonRoomFull:
		return websocket.ClosePolicyViolation, "room is full"
	case ReasonShutdown:
		return websocket.CloseGoingAway, "server shutting down"
	default:
		return 0, ""
	}
}

// Socket is the part of *websocket.Conn a Connection drives.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

var _ Socket = (*websocket.Conn)(nil)

// Options tunes per-connection buffering and keepalive.
type Options struct {
	QueueSize    int
	WriteTimeout time.Duration
	PingInterval time.Duration
	PongTimeout  time.Duration
	MaxPerRoom   int
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = pingInterval
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = pongDeadline
	}
	return o
}

// Connection is one subscriber's push channel. It moves through
// Connecting -> Open -> Closing -> Closed exactly once and is bound to a
// single room for its whole life.
type Connection struct {
	id     string
	roomID string
	clock  clockwork.Clock
	opts   Options

	// socket is nil while a reserved connection waits for its upgrade.
	socketMu sync.Mutex
	socket   Socket

	state      atomic.Int32
	queue      chan []byte
	done       chan struct{}
	writerDone chan struct{}
	started    atomic.Bool
	closeOnce  sync.Once
	reason     CloseReason

	subMu sync.Mutex
	sub   *Subscription

	onClosed func(c *Connection, reason CloseReason)
}

func newConnection(roomID string, socket Socket, clock clockwork.Clock, opts Options) *Connection {
	return &Connection{
		id:         uuid.NewString(),
		roomID:     roomID,
		socket:     socket,
		clock:      clock,
		opts:       opts,
		queue:      make(chan []byte, opts.QueueSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

func (c *Connection) ID() string { return c.id }
func (c *Connection) RoomID() string { return c.roomID }
func (c *Connection) State() ConnState { return ConnState(c.state.Load()) }
func (c *Connection) Done() <-chan struct{} { return c.done }

// Reason reports why the connection closed. Only meaningful after Done.
func (c *Connection) Reason() CloseReason {
	<-c.done
	return c.reason
}

// enqueue places an encoded event on the outbound queue without blocking.
// Events are accepted while Connecting so that nothing published between
// registration and the writer starting is lost.
func (c *Connection) enqueue(data []byte) error {
	if c.State() >= StateClosing {
		return ErrConnectionClosed
	}

	select {
	case c.queue <- data:
		return nil
	default:
		c.state.CompareAndSwap(int32(StateConnecting), int32(StateClosing))
		c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
		return apperrors.OverflowError("outbound queue full").
			WithField("room_id", c.roomID).
			WithField("connection_id", c.id).
			WithField("capacity", cap(c.queue))
	}
}

func (c *Connection) attach(sub *Subscription) {
	c.subMu.Lock()
	c.sub = sub
	c.subMu.Unlock()
}

// Bind attaches the upgraded socket to a reserved connection and starts the
// writer, which first drains whatever was queued since the reservation. If
// the connection closed in the meantime the socket gets that reason's close
// frame and ErrConnectionClosed is returned.
func (c *Connection) Bind(socket Socket) error {
	c.socketMu.Lock()
	if c.socket != nil {
		c.socketMu.Unlock()
		return ErrAlreadyBound
	}
	c.socket = socket
	if c.openLocked() {
		c.socketMu.Unlock()
		return nil
	}
	c.socket = nil
	c.socketMu.Unlock()

	// No-op unless an overflow moved the connection to Closing on its own.
	c.Close(ReasonOverflow)
	refuse(socket, c.Reason(), c.clock.Now().Add(c.opts.WriteTimeout))
	return ErrConnectionClosed
}

// open transitions Connecting -> Open and starts the writer goroutine.
func (c *Connection) open() bool {
	c.socketMu.Lock()
	defer c.socketMu.Unlock()
	return c.openLocked()
}

func (c *Connection) openLocked() bool {
	if c.socket == nil || !c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		return false
	}

	c.socket.SetReadLimit(maxInboundFrame)
	c.updateReadDeadline()
	c.socket.SetPongHandler(func(string) error {
		c.updateReadDeadline()
		return nil
	})

	c.started.Store(true)
	go c.writeLoop()
	return true
}

func (c *Connection) writeLoop() {
	defer close(c.writerDone)

	ticker := c.clock.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.queue:
			if c.State() >= StateClosing {
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				go c.Close(ReasonWriteFailed)
				return
			}
		case <-ticker.Chan():
			if err := c.write(websocket.PingMessage, nil); err != nil {
				go c.Close(ReasonWriteFailed)
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	_ = c.socket.SetWriteDeadline(c.clock.Now().Add(c.opts.WriteTimeout))
	return c.socket.WriteMessage(messageType, data)
}

func (c *Connection) updateReadDeadline() {
	_ = c.socket.SetReadDeadline(c.clock.Now().Add(c.opts.PongTimeout))
}

// ReadPump consumes inbound frames until the peer goes away, then closes the
// connection. Subscribers never send application data; reading is what
// surfaces pongs and close frames. Blocks until the socket fails.
func (c *Connection) ReadPump() {
	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			c.Close(readFailureReason(err))
			return
		}
	}
}

func readFailureReason(err error) CloseReason {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonPongTimeout
	}
	return ReasonClientClosed
}

// Close unregisters the connection, stops its writer and closes the socket.
// Queued but unsent events are dropped. Safe to call from any goroutine other
// than the writer, any number of times.
func (c *Connection) Close(reason CloseReason) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))
		c.reason = reason
		close(c.done)

		c.subMu.Lock()
		sub := c.sub
		c.subMu.Unlock()
		if sub != nil {
			sub.Unregister()
		}

		c.socketMu.Lock()
		socket, started := c.socket, c.started.Load()
		c.socketMu.Unlock()

		if started {
			<-c.writerDone
		}
		if socket != nil {
			refuse(socket, reason, c.clock.Now().Add(c.opts.WriteTimeout))
		}

		c.state.Store(int32(StateClosed))
		if c.onClosed != nil {
			c.onClosed(c, reason)
		}
	})
}

// refuse sends reason's close frame, if it has one, and closes socket.
func refuse(socket Socket, reason CloseReason, deadline time.Time) {
	if code, text := reason.closeFrame(); code != 0 {
		_ = socket.SetWriteDeadline(deadline)
		_ = socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
	}
	_ = socket.Close()
}
