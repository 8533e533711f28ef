package domain

type EventKind string

const (
	KindMessageCreated           EventKind = "message_created"
	KindMessageAnswered          EventKind = "message_answered"
	KindMessageReactionIncreased EventKind = "message_reaction_increased"
	KindMessageReactionDecreased EventKind = "message_reaction_decreased"
)

// Event is a notification that a message in a room changed. Events carry
// resulting values rather than deltas so that applying one twice is harmless.
type Event interface {
	Kind() EventKind
	MessageID() string
}

type MessageCreated struct {
	ID      string
	Message string
}

func (e MessageCreated) Kind() EventKind   { return KindMessageCreated }
func (e MessageCreated) MessageID() string { return e.ID }

type MessageAnswered struct {
	ID string
}

func (e MessageAnswered) Kind() EventKind   { return KindMessageAnswered }
func (e MessageAnswered) MessageID() string { return e.ID }

// ReactionChanged carries the reaction count after a react or unreact.
// Increased only selects the wire kind; consumers treat both kinds alike.
type ReactionChanged struct {
	ID        string
	Count     int64
	Increased bool
}

func (e ReactionChanged) Kind() EventKind {
	if e.Increased {
		return KindMessageReactionIncreased
	}
	return KindMessageReactionDecreased
}

func (e ReactionChanged) MessageID() string { return e.ID }
