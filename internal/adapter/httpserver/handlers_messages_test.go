package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/pscheid92/roomqa/internal/domain"
	apperrors "github.com/pscheid92/roomqa/internal/platform/errors"
	"github.com/pscheid92/roomqa/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleListMessages(t *testing.T) {
	var gotRoom string
	app := &mockAppService{
		listMessagesFn: func(_ context.Context, roomID string) ([]domain.Message, error) {
			gotRoom = roomID
			return []domain.Message{
				{ID: "m1", RoomID: roomID, Message: "why?", ReactionCount: 3},
				{ID: "m2", RoomID: roomID, Message: "how?", Answered: true},
			}, nil
		},
	}
	srv := newTestServer(t, app)

	rec := serve(srv, http.MethodGet, "/rooms/r1/messages", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r1", gotRoom)
	assert.JSONEq(t, `[
		{"ID":"m1","RoomID":"r1","Message":"why?","ReactionCount":3,"Answered":false},
		{"ID":"m2","RoomID":"r1","Message":"how?","ReactionCount":0,"Answered":true}
	]`, rec.Body.String())
}

func TestHandleListMessages_EmptyIsArray(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := serve(srv, http.MethodGet, "/rooms/r1/messages", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandleListMessages_UnknownRoom(t *testing.T) {
	app := &mockAppService{
		listMessagesFn: func(_ context.Context, _ string) ([]domain.Message, error) {
			return nil, errRoomMissing
		},
	}
	srv := newTestServer(t, app)

	rec := serve(srv, http.MethodGet, "/rooms/nope/messages", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCreateMessage(t *testing.T) {
	var gotRoom, gotText string
	app := &mockAppService{
		createMessageFn: func(_ context.Context, roomID, text string) (string, error) {
			gotRoom, gotText = roomID, text
			return "m9", nil
		},
	}
	srv := newTestServer(t, app)

	rec := serve(srv, http.MethodPost, "/rooms/r1/messages", `{"message":"is this live?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r1", gotRoom)
	assert.Equal(t, "is this live?", gotText)

	var resp wire.IDResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "m9", resp.ID)
}

func TestHandleCreateMessage_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "malformed body",
			body:       `not json`,
			wantStatus: http.StatusBadRequest,
			wantType:   "validation",
		},
		{
			name:       "empty message",
			body:       `{"message":""}`,
			err:        apperrors.ValidationError("message must not be empty"),
			wantStatus: http.StatusBadRequest,
			wantType:   "validation",
		},
		{
			name:       "unknown room",
			body:       `{"message":"hi"}`,
			err:        errRoomMissing,
			wantStatus: http.StatusNotFound,
			wantType:   "not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &mockAppService{
				createMessageFn: func(_ context.Context, _, _ string) (string, error) {
					return "", tt.err
				},
			}
			srv := newTestServer(t, app)

			rec := serve(srv, http.MethodPost, "/rooms/r1/messages", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), `"type":"`+tt.wantType+`"`)
		})
	}
}

func TestHandleGetMessage(t *testing.T) {
	app := &mockAppService{
		getMessageFn: func(_ context.Context, roomID, messageID string) (*domain.Message, error) {
			return &domain.Message{ID: messageID, RoomID: roomID, Message: "hi", ReactionCount: 2}, nil
		},
	}
	srv := newTestServer(t, app)

	rec := serve(srv, http.MethodGet, "/rooms/r1/messages/m1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ID":"m1","RoomID":"r1","Message":"hi","ReactionCount":2,"Answered":false}`, rec.Body.String())
}

func TestHandleGetMessage_Missing(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := serve(srv, http.MethodGet, "/rooms/r1/messages/m1", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleReactions(t *testing.T) {
	counts := map[string]int64{"m1": 4}
	app := &mockAppService{
		reactFn: func(_ context.Context, _, messageID string) (int64, error) {
			counts[messageID]++
			return counts[messageID], nil
		},
		unreactFn: func(_ context.Context, _, messageID string) (int64, error) {
			if counts[messageID] > 0 {
				counts[messageID]--
			}
			return counts[messageID], nil
		},
	}
	srv := newTestServer(t, app)

	rec := serve(srv, http.MethodPatch, "/rooms/r1/messages/m1/react", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":5}`, rec.Body.String())

	rec = serve(srv, http.MethodDelete, "/rooms/r1/messages/m1/react", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":4}`, rec.Body.String())
}

func TestHandleReact_UnknownMessage(t *testing.T) {
	app := &mockAppService{
		reactFn: func(_ context.Context, _, messageID string) (int64, error) {
			return 0, apperrors.NotFoundError("message not found").WithField("message_id", messageID)
		},
	}
	srv := newTestServer(t, app)

	rec := serve(srv, http.MethodPatch, "/rooms/r1/messages/ghost/react", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message_id":"ghost"`)
}

func TestHandleMarkAnswered(t *testing.T) {
	var gotRoom, gotMessage string
	app := &mockAppService{
		markAnsweredFn: func(_ context.Context, roomID, messageID string) error {
			gotRoom, gotMessage = roomID, messageID
			return nil
		},
	}
	srv := newTestServer(t, app)

	rec := serve(srv, http.MethodPatch, "/rooms/r1/messages/m1/answer", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "r1", gotRoom)
	assert.Equal(t, "m1", gotMessage)
}

func TestHandleMarkAnswered_WrongMethod(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := serve(srv, http.MethodPost, "/rooms/r1/messages/m1/answer", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
