package roomclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/roomqa/internal/domain"
	apperrors "github.com/pscheid92/roomqa/internal/platform/errors"
	"github.com/pscheid92/roomqa/internal/platform/retry"
	"github.com/pscheid92/roomqa/internal/reconcile"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotJoined     = errors.New("session has not joined a room")
	ErrAlreadyJoined = errors.New("session already joined a room")
)

// DefaultReconnectPolicy gives up after ten consecutive failed attempts.
var DefaultReconnectPolicy = retry.Policy{
	MaxAttempts:      10,
	InitialBackoff:   250 * time.Millisecond,
	MaxBackoff:       10 * time.Second,
	RateLimitBackoff: 15 * time.Second,
}

// Session follows one room: it keeps the room's event stream open, reloads
// the snapshot after every (re)connect, and routes this client's votes
// through the reconciler's optimistic overlay.
type Session struct {
	client *Client
	policy retry.Policy
	clock  clockwork.Clock

	mu     sync.Mutex
	roomID string
	rec    *reconcile.Reconciler
	cancel context.CancelFunc

	// toggles holds the generation of the newest in-flight toggle per message.
	toggleMu sync.Mutex
	toggles  map[string]uint64
	nextGen  uint64
}

type SessionOption func(*Session)

func WithReconnectPolicy(p retry.Policy) SessionOption {
	return func(s *Session) { s.policy = p }
}

func WithClock(clock clockwork.Clock) SessionOption {
	return func(s *Session) { s.clock = clock }
}

func NewSession(client *Client, opts ...SessionOption) *Session {
	s := &Session{
		client: client,
		policy: DefaultReconnectPolicy,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy.Clock == nil {
		s.policy.Clock = s.clock
	}
	return s
}

// Join verifies the room exists and prepares an empty, buffering view of it.
// Register OnChange on the returned reconciler before calling Run.
func (s *Session) Join(ctx context.Context, roomID string) (*reconcile.Reconciler, error) {
	s.mu.Lock()
	joined := s.rec != nil
	s.mu.Unlock()
	if joined {
		return nil, ErrAlreadyJoined
	}

	if _, err := s.client.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec != nil {
		return nil, ErrAlreadyJoined
	}
	s.roomID = roomID
	s.rec = reconcile.New(roomID)
	return s.rec, nil
}

func (s *Session) current() (string, *reconcile.Reconciler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID, s.rec
}

// Run keeps the view live until ctx is cancelled or Close is called, which
// both return nil. It returns an error when the room turns out not to exist,
// the server refuses the subscription, or reconnecting fails more often than
// the policy allows.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	roomID, rec := s.roomID, s.rec
	if rec == nil {
		s.mu.Unlock()
		return ErrNotJoined
	}
	s.cancel = cancel
	s.mu.Unlock()

	// Losses before the snapshot loads count against the policy like failed
	// dials; a stream that went live resets the count.
	losses := 0
	backoff := s.policy.InitialBackoff
	for {
		stream, err := retry.Do(ctx, s.policy, classify, func() (*Stream, error) {
			return s.client.Subscribe(ctx, roomID)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to reconnect to room %s: %w", roomID, err)
		}

		err = s.follow(ctx, rec, stream)
		_ = stream.Close()
		if ctx.Err() != nil {
			return nil
		}

		wasLive := rec.Live()
		rec.Reset()

		if classify(err) == retry.Stop {
			return fmt.Errorf("event stream for room %s refused: %w", roomID, err)
		}
		if wasLive {
			losses, backoff = 0, s.policy.InitialBackoff
		} else {
			losses++
			if s.policy.MaxAttempts > 0 && losses >= s.policy.MaxAttempts {
				return fmt.Errorf("event stream for room %s lost %d times before loading: %w", roomID, losses, err)
			}
		}
		slog.WarnContext(ctx, "Event stream lost, reconnecting",
			"room_id", roomID, "error", err, "backoff", backoff)

		select {
		case <-s.clock.After(backoff):
		case <-ctx.Done():
			return nil
		}
		backoff *= 2
		if s.policy.MaxBackoff > 0 && backoff > s.policy.MaxBackoff {
			backoff = s.policy.MaxBackoff
		}
	}
}

// follow loads the snapshot while concurrently applying stream events, and
// returns when the stream fails. Events that arrive before the snapshot are
// buffered by the reconciler.
func (s *Session) follow(ctx context.Context, rec *reconcile.Reconciler, stream *Stream) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			event, err := stream.Next(gctx)
			if err != nil {
				return err
			}
			rec.Apply(event)
		}
	})

	g.Go(func() error {
		messages, err := retry.Do(gctx, s.policy, classify, func() ([]domain.Message, error) {
			return s.client.ListMessages(gctx, rec.RoomID())
		})
		if err != nil {
			return fmt.Errorf("failed to load snapshot: %w", err)
		}
		rec.LoadSnapshot(messages)
		slog.DebugContext(gctx, "Snapshot loaded", "room_id", rec.RoomID(), "messages", len(messages))
		return nil
	})

	return g.Wait()
}

// classify treats missing rooms, bad input and policy closes such as a full
// room as permanent and honours server rate limiting.
func classify(err error) retry.Action {
	if errors.Is(err, context.Canceled) {
		return retry.Stop
	}
	se := apperrors.AsStructuredError(err)
	switch se.Type {
	case apperrors.TypeValidation, apperrors.TypeNotFound:
		return retry.Stop
	}
	if status, ok := se.Context["close_status"].(int); ok && status == int(websocket.StatusPolicyViolation) {
		return retry.Stop
	}
	if status, ok := se.Context["status"].(int); ok && status == http.StatusTooManyRequests {
		return retry.After
	}
	return retry.Retry
}

// ToggleVote flips this client's vote on a message immediately and sends the
// matching command. If the command fails the flag is restored and the error
// returned, unless a newer toggle on the same message has started since. A
// result that arrives after the session left the room is discarded. OnChange
// callbacks must not call ToggleVote.
func (s *Session) ToggleVote(ctx context.Context, messageID string) error {
	roomID, rec := s.current()
	if rec == nil {
		return ErrNotJoined
	}

	prev, gen := s.beginToggle(rec, messageID)

	var err error
	if prev {
		_, err = s.client.Unreact(ctx, roomID, messageID)
	} else {
		_, err = s.client.React(ctx, roomID, messageID)
	}
	latest := s.endToggle(messageID, gen)
	if err == nil {
		return nil
	}

	// A later toggle on the same message supersedes this one.
	if _, still := s.current(); still == rec && latest {
		rec.SetVoted(messageID, prev)
	}
	return err
}

func (s *Session) beginToggle(rec *reconcile.Reconciler, messageID string) (bool, uint64) {
	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	if s.toggles == nil {
		s.toggles = make(map[string]uint64)
	}
	s.nextGen++
	s.toggles[messageID] = s.nextGen
	return rec.ToggleVote(messageID), s.nextGen
}

// endToggle reports whether gen is still the newest toggle on messageID.
func (s *Session) endToggle(messageID string, gen uint64) bool {
	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	if s.toggles[messageID] != gen {
		return false
	}
	delete(s.toggles, messageID)
	return true
}

// Ask posts a question. The new message is folded into the view right away;
// the matching stream event is then a no-op.
func (s *Session) Ask(ctx context.Context, text string) (string, error) {
	roomID, rec := s.current()
	if rec == nil {
		return "", ErrNotJoined
	}

	id, err := s.client.CreateMessage(ctx, roomID, text)
	if err != nil {
		return "", err
	}
	if _, still := s.current(); still == rec {
		rec.Apply(domain.MessageCreated{ID: id, Message: text})
	}
	return id, nil
}

// Messages returns the current view, or nil before Join.
func (s *Session) Messages() []reconcile.Entry {
	_, rec := s.current()
	if rec == nil {
		return nil
	}
	return rec.Messages()
}

// Close leaves the room. The stream is closed, buffered events are dropped
// and Run returns. The session may Join again afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	cancel, rec := s.cancel, s.rec
	s.cancel, s.rec, s.roomID = nil, nil, ""
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if rec != nil {
		rec.Reset()
	}
}
