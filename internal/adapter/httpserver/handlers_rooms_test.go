package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/pscheid92/roomqa/internal/domain"
	apperrors "github.com/pscheid92/roomqa/internal/platform/errors"
	"github.com/pscheid92/roomqa/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleListRooms(t *testing.T) {
	app := &mockAppService{
		listRoomsFn: func(_ context.Context) ([]domain.Room, error) {
			return []domain.Room{{ID: "r1", Theme: "Go"}, {ID: "r2", Theme: "Rust"}}, nil
		},
	}
	srv := newTestServer(t, app)

	rec := serve(srv, http.MethodGet, "/rooms", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"ID":"r1","Theme":"Go"},{"ID":"r2","Theme":"Rust"}]`, rec.Body.String())
}

func TestHandleListRooms_EmptyIsArray(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := serve(srv, http.MethodGet, "/rooms", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandleListRooms_StoreFailure(t *testing.T) {
	app := &mockAppService{
		listRoomsFn: func(_ context.Context) ([]domain.Room, error) {
			return nil, apperrors.InternalError("failed to list rooms", errors.New("disk on fire"))
		},
	}
	srv := newTestServer(t, app)

	rec := serve(srv, http.MethodGet, "/rooms", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}

func TestHandleCreateRoom(t *testing.T) {
	var gotTheme string
	app := &mockAppService{
		createRoomFn: func(_ context.Context, theme string) (string, error) {
			gotTheme = theme
			return "room-42", nil
		},
	}
	srv := newTestServer(t, app)

	rec := serve(srv, http.MethodPost, "/rooms", `{"theme":"Go concurrency"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Go concurrency", gotTheme)

	var resp wire.IDResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "room-42", resp.ID)
}

func TestHandleCreateRoom_InvalidJSON(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := serve(srv, http.MethodPost, "/rooms", `{"theme":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"validation"`)
}

func TestHandleCreateRoom_ValidationFromService(t *testing.T) {
	app := &mockAppService{
		createRoomFn: func(_ context.Context, _ string) (string, error) {
			return "", apperrors.ValidationError("theme must not be empty")
		},
	}
	srv := newTestServer(t, app)

	rec := serve(srv, http.MethodPost, "/rooms", `{"theme":"  "}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "theme must not be empty")
}

func TestHandleGetRoom(t *testing.T) {
	app := &mockAppService{
		getRoomFn: func(_ context.Context, roomID string) (*domain.Room, error) {
			if roomID != "r1" {
				return nil, apperrors.NotFoundError("room not found").WithField("room_id", roomID)
			}
			return &domain.Room{ID: "r1", Theme: "Go"}, nil
		},
	}
	srv := newTestServer(t, app)

	t.Run("found", func(t *testing.T) {
		rec := serve(srv, http.MethodGet, "/rooms/r1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ID":"r1","Theme":"Go"}`, rec.Body.String())
	})

	t.Run("missing", func(t *testing.T) {
		rec := serve(srv, http.MethodGet, "/rooms/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), `"room_id":"nope"`)
	})
}

func TestRoutes_UnknownPathIsNotFound(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := serve(srv, http.MethodGet, "/nowhere", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"not_found"`)
}

func TestRoutes_SetCorrelationHeader(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := serve(srv, http.MethodGet, "/rooms", "")

	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
