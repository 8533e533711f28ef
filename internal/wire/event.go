package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pscheid92/roomqa/internal/domain"
)

var (
	ErrUnknownKind  = errors.New("unknown event kind")
	ErrMissingValue = errors.New("event value missing id")
)

type Envelope struct {
	Kind  domain.EventKind `json:"kind"`
	Value json.RawMessage  `json:"value"`
}

type messageCreatedValue struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type messageAnsweredValue struct {
	ID string `json:"id"`
}

type reactionChangedValue struct {
	ID    string `json:"id"`
	Count int64  `json:"count"`
}

// EncodeEvent renders an event as the envelope pushed to subscribers.
func EncodeEvent(event domain.Event) ([]byte, error) {
	var value any
	switch e := event.(type) {
	case domain.MessageCreated:
		value = messageCreatedValue{ID: e.ID, Message: e.Message}
	case domain.MessageAnswered:
		value = messageAnsweredValue{ID: e.ID}
	case domain.ReactionChanged:
		value = reactionChangedValue{ID: e.ID, Count: e.Count}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, event)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s value: %w", event.Kind(), err)
	}

	data, err := json.Marshal(Envelope{Kind: event.Kind(), Value: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s envelope: %w", event.Kind(), err)
	}
	return data, nil
}

// DecodeEvent parses an envelope. Unknown kinds return ErrUnknownKind so
// callers can skip frames from newer servers.
func DecodeEvent(data []byte) (domain.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	switch env.Kind {
	case domain.KindMessageCreated:
		var v messageCreatedValue
		if err := decodeValue(env, &v); err != nil {
			return nil, err
		}
		if v.ID == "" {
			return nil, ErrMissingValue
		}
		return domain.MessageCreated{ID: v.ID, Message: v.Message}, nil

	case domain.KindMessageAnswered:
		var v messageAnsweredValue
		if err := decodeValue(env, &v); err != nil {
			return nil, err
		}
		if v.ID == "" {
			return nil, ErrMissingValue
		}
		return domain.MessageAnswered{ID: v.ID}, nil

	case domain.KindMessageReactionIncreased, domain.KindMessageReactionDecreased:
		var v reactionChangedValue
		if err := decodeValue(env, &v); err != nil {
			return nil, err
		}
		if v.ID == "" {
			return nil, ErrMissingValue
		}
		return domain.ReactionChanged{
			ID:        v.ID,
			Count:     v.Count,
			Increased: env.Kind == domain.KindMessageReactionIncreased,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}

func decodeValue(env Envelope, v any) error {
	if len(env.Value) == 0 {
		return fmt.Errorf("%s: %w", env.Kind, ErrMissingValue)
	}
	if err := json.Unmarshal(env.Value, v); err != nil {
		return fmt.Errorf("failed to decode %s value: %w", env.Kind, err)
	}
	return nil
}
