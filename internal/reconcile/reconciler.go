// Package reconcile merges a room's one-shot message snapshot with its live
// event stream into a single ordered view, and keeps this client's own vote
// intent in a local overlay that the server never sees.
//
// A Reconciler starts in buffering mode. Events passed to Apply are held
// until LoadSnapshot installs the authoritative message list; the held events
// are then replayed in receipt order and the Reconciler goes live. After a
// stream reconnect, call Reset and load a fresh snapshot.
package reconcile

import (
	"sort"
	"sync"

	"github.com/pscheid92/roomqa/internal/domain"
)

// Entry is one message in the reconciled view. Voted is local-only state.
type Entry struct {
	domain.Message
	Voted bool
}

type Reconciler struct {
	mu      sync.Mutex
	roomID  string
	live    bool
	pending []domain.Event

	// messages is kept sorted by descending reaction count, ties in prior order.
	messages []domain.Message
	voted    map[string]bool

	onChange func([]Entry)
}

func New(roomID string) *Reconciler {
	return &Reconciler{
		roomID: roomID,
		voted:  make(map[string]bool),
	}
}

func (r *Reconciler) RoomID() string { return r.roomID }

// OnChange registers fn to receive the full view after every change. fn runs
// on the goroutine that caused the change and must not block for long.
func (r *Reconciler) OnChange(fn func([]Entry)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Live reports whether a snapshot has been loaded since the last Reset.
func (r *Reconciler) Live() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// Reset returns to buffering mode and drops buffered events. The current
// view stays readable until the next snapshot replaces it. Vote flags are
// kept.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.live = false
	r.pending = nil
	r.mu.Unlock()
}

// LoadSnapshot replaces the view with messages, replays buffered events on
// top and switches to live mode.
func (r *Reconciler) LoadSnapshot(messages []domain.Message) {
	r.mu.Lock()
	r.messages = make([]domain.Message, len(messages))
	copy(r.messages, messages)

	for _, event := range r.pending {
		r.apply(event)
	}
	r.pending = nil
	r.live = true
	r.sortLocked()

	view, fn := r.viewLocked(), r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn(view)
	}
}

// Apply folds one event into the view, or buffers it while no snapshot is
// loaded. It reports whether the view changed.
func (r *Reconciler) Apply(event domain.Event) bool {
	r.mu.Lock()
	if !r.live {
		r.pending = append(r.pending, event)
		r.mu.Unlock()
		return false
	}

	changed := r.apply(event)
	if !changed {
		r.mu.Unlock()
		return false
	}
	r.sortLocked()

	view, fn := r.viewLocked(), r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn(view)
	}
	return true
}

func (r *Reconciler) apply(event domain.Event) bool {
	switch e := event.(type) {
	case domain.MessageCreated:
		if r.indexOf(e.ID) >= 0 {
			return false
		}
		r.messages = append(r.messages, domain.Message{ID: e.ID, RoomID: r.roomID, Message: e.Message})
		return true

	case domain.MessageAnswered:
		i := r.indexOf(e.ID)
		if i < 0 || r.messages[i].Answered {
			return false
		}
		r.messages[i].Answered = true
		return true

	case domain.ReactionChanged:
		i := r.indexOf(e.ID)
		if i < 0 || r.messages[i].ReactionCount == e.Count {
			return false
		}
		r.messages[i].ReactionCount = e.Count
		return true
	}
	return false
}

func (r *Reconciler) indexOf(id string) int {
	for i := range r.messages {
		if r.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Reconciler) sortLocked() {
	sort.SliceStable(r.messages, func(i, j int) bool {
		return r.messages[i].ReactionCount > r.messages[j].ReactionCount
	})
}

func (r *Reconciler) viewLocked() []Entry {
	view := make([]Entry, len(r.messages))
	for i, m := range r.messages {
		view[i] = Entry{Message: m, Voted: r.voted[m.ID]}
	}
	return view
}

// Messages returns a copy of the current view.
func (r *Reconciler) Messages() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked()
}

// ToggleVote flips the local vote flag and returns its previous value, which
// callers pass to SetVoted if the matching command fails.
func (r *Reconciler) ToggleVote(messageID string) bool {
	r.mu.Lock()
	prev := r.voted[messageID]
	r.setVotedLocked(messageID, !prev)
	view, fn := r.viewLocked(), r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn(view)
	}
	return prev
}

func (r *Reconciler) SetVoted(messageID string, voted bool) {
	r.mu.Lock()
	if r.voted[messageID] == voted {
		r.mu.Unlock()
		return
	}
	r.setVotedLocked(messageID, voted)
	view, fn := r.viewLocked(), r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn(view)
	}
}

func (r *Reconciler) setVotedLocked(messageID string, voted bool) {
	if voted {
		r.voted[messageID] = true
		return
	}
	delete(r.voted, messageID)
}
