package broadcast

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/roomqa/internal/adapter/metrics"
)

var errSocketClosed = errors.New("use of closed network connection")

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

// fakeSocket records writes and lets tests control reads and write stalls.
type fakeSocket struct {
	mu          sync.Mutex
	texts       [][]byte
	pings       int
	closeCodes  []int
	closed      bool
	writeErr    error
	pongHandler func(string) error
	readLimit   int64

	writeDeadline time.Time

	stall    chan struct{} // when non-nil, text writes block until it is closed or the write deadline passes
	readErr  chan error
	closedCh chan struct{}
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		readErr:  make(chan error, 1),
		closedCh: make(chan struct{}),
	}
}

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	stall := f.stall
	deadline := f.writeDeadline
	f.mu.Unlock()

	if stall != nil && messageType == websocket.TextMessage {
		select {
		case <-stall:
		case <-f.closedCh:
			return errSocketClosed
		case <-time.After(time.Until(deadline)):
			return timeoutError{}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errSocketClosed
	}
	if f.writeErr != nil {
		return f.writeErr
	}

	switch messageType {
	case websocket.TextMessage:
		f.texts = append(f.texts, append([]byte(nil), data...))
	case websocket.PingMessage:
		f.pings++
	case websocket.CloseMessage:
		code := 0
		if len(data) >= 2 {
			code = int(data[0])<<8 | int(data[1])
		}
		f.closeCodes = append(f.closeCodes, code)
	}
	return nil
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case err := <-f.readErr:
		return 0, nil, err
	case <-f.closedCh:
		return 0, nil, errSocketClosed
	}
}

func (f *fakeSocket) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	f.writeDeadline = t
	f.mu.Unlock()
	return nil
}

func (f *fakeSocket) SetReadDeadline(time.Time) error { return nil }

func (f *fakeSocket) SetReadLimit(limit int64) {
	f.mu.Lock()
	f.readLimit = limit
	f.mu.Unlock()
}

func (f *fakeSocket) SetPongHandler(h func(string) error) {
	f.mu.Lock()
	f.pongHandler = h
	f.mu.Unlock()
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.closedCh)
	}
	return nil
}

func (f *fakeSocket) stallWrites() {
	f.mu.Lock()
	f.stall = make(chan struct{})
	f.mu.Unlock()
}

func (f *fakeSocket) textsCopy() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	for i, t := range f.texts {
		out[i] = string(t)
	}
	return out
}

func (f *fakeSocket) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func (f *fakeSocket) sentCloseCodes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.closeCodes...)
}

func (f *fakeSocket) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type testMetrics struct {
	broadcast  *metrics.BroadcastMetrics
	subscriber *metrics.SubscriberMetrics
}

func newTestMetrics() testMetrics {
	reg := prometheus.NewRegistry()
	return testMetrics{
		broadcast:  metrics.NewBroadcastMetrics(reg),
		subscriber: metrics.NewSubscriberMetrics(reg),
	}
}

func newTestBroadcaster(opts Options, clock clockwork.Clock) (*Broadcaster, testMetrics) {
	m := newTestMetrics()
	return NewBroadcaster(opts, clock, m.broadcast, m.subscriber), m
}

func newTestConnection(roomID string) (*Connection, *fakeSocket) {
	sock := newFakeSocket()
	return newConnection(roomID, sock, clockwork.NewRealClock(), Options{}.withDefaults()), sock
}
