package httpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/roomqa/internal/broadcast"
	"github.com/pscheid92/roomqa/internal/domain"
	apperrors "github.com/pscheid92/roomqa/internal/platform/errors"
	"github.com/pscheid92/roomqa/internal/platform/config"
)

// --- Mock implementations ---

type mockAppService struct {
	listRoomsFn     func(ctx context.Context) ([]domain.Room, error)
	getRoomFn       func(ctx context.Context, roomID string) (*domain.Room, error)
	createRoomFn    func(ctx context.Context, theme string) (string, error)
	listMessagesFn  func(ctx context.Context, roomID string) ([]domain.Message, error)
	getMessageFn    func(ctx context.Context, roomID, messageID string) (*domain.Message, error)
	createMessageFn func(ctx context.Context, roomID, text string) (string, error)
	reactFn         func(ctx context.Context, roomID, messageID string) (int64, error)
	unreactFn       func(ctx context.Context, roomID, messageID string) (int64, error)
	markAnsweredFn  func(ctx context.Context, roomID, messageID string) error
}

var errRoomMissing = apperrors.NotFoundError("room not found")

func (m *mockAppService) ListRooms(ctx context.Context) ([]domain.Room, error) {
	if m.listRoomsFn != nil {
		return m.listRoomsFn(ctx)
	}
	return nil, nil
}

func (m *mockAppService) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	if m.getRoomFn != nil {
		return m.getRoomFn(ctx, roomID)
	}
	return nil, errRoomMissing
}

func (m *mockAppService) CreateRoom(ctx context.Context, theme string) (string, error) {
	if m.createRoomFn != nil {
		return m.createRoomFn(ctx, theme)
	}
	return "room-1", nil
}

func (m *mockAppService) ListMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	if m.listMessagesFn != nil {
		return m.listMessagesFn(ctx, roomID)
	}
	return nil, nil
}

func (m *mockAppService) GetMessage(ctx context.Context, roomID, messageID string) (*domain.Message, error) {
	if m.getMessageFn != nil {
		return m.getMessageFn(ctx, roomID, messageID)
	}
	return nil, apperrors.NotFoundError("message not found")
}

func (m *mockAppService) CreateMessage(ctx context.Context, roomID, text string) (string, error) {
	if m.createMessageFn != nil {
		return m.createMessageFn(ctx, roomID, text)
	}
	return "msg-1", nil
}

func (m *mockAppService) React(ctx context.Context, roomID, messageID string) (int64, error) {
	if m.reactFn != nil {
		return m.reactFn(ctx, roomID, messageID)
	}
	return 1, nil
}

func (m *mockAppService) Unreact(ctx context.Context, roomID, messageID string) (int64, error) {
	if m.unreactFn != nil {
		return m.unreactFn(ctx, roomID, messageID)
	}
	return 0, nil
}

func (m *mockAppService) MarkAnswered(ctx context.Context, roomID, messageID string) error {
	if m.markAnsweredFn != nil {
		return m.markAnsweredFn(ctx, roomID, messageID)
	}
	return nil
}

type mockSubscriber struct {
	rooms []string
}

func (m *mockSubscriber) Reserve(string) (*broadcast.Connection, error) {
	return nil, broadcast.ErrRoomFull
}

func (m *mockSubscriber) Refuse(socket broadcast.Socket, _ broadcast.CloseReason) {
	_ = socket.Close()
}

func (m *mockSubscriber) ActiveRooms() []string { return m.rooms }

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:           "development",
		AppURL:           "http://localhost:8080",
		StoreBackend:     config.StoreMemory,
		CommandRateLimit: 1000,
		CommandRateBurst: 1000,
	}
}

func newTestServer(t *testing.T, app appService, opts ...func(*Server)) *Server {
	t.Helper()

	srv := &Server{
		echo:       echo.New(),
		config:     testConfig(),
		app:        app,
		subscriber: &mockSubscriber{},
	}
	srv.upgrader.CheckOrigin = NewCheckOrigin(srv.config.AppURL, true)

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()
	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withSubscriber(sub subscriber) func(*Server) {
	return func(s *Server) {
		s.subscriber = sub
	}
}

// serve runs a request through the full middleware and routing stack.
func serve(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func newContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

var _ http.Handler = (*Server)(nil)
