// Package roomclient is the Go client for a roomqa server: REST commands,
// the per-room event stream, and a Session that keeps a reconciled view of
// one room alive across reconnects.
package roomclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pscheid92/roomqa/internal/domain"
	"github.com/pscheid92/roomqa/internal/platform/correlation"
	apperrors "github.com/pscheid92/roomqa/internal/platform/errors"
	"github.com/pscheid92/roomqa/internal/platform/version"
	"github.com/pscheid92/roomqa/internal/wire"
)

const defaultTimeout = 10 * time.Second

// Client issues commands and snapshot reads against one server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has a 10s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient builds a client for baseURL, e.g. "http://localhost:8080".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  version.UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	if err := c.do(ctx, http.MethodGet, "/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *Client) CreateRoom(ctx context.Context, theme string) (string, error) {
	var resp wire.IDResponse
	if err := c.do(ctx, http.MethodPost, "/rooms", wire.CreateRoomRequest{Theme: theme}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	var room domain.Room
	if err := c.do(ctx, http.MethodGet, roomPath(roomID), nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// ListMessages fetches the room snapshot in creation order.
func (c *Client) ListMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	var messages []domain.Message
	if err := c.do(ctx, http.MethodGet, roomPath(roomID)+"/messages", nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) GetMessage(ctx context.Context, roomID, messageID string) (*domain.Message, error) {
	var msg domain.Message
	if err := c.do(ctx, http.MethodGet, messagePath(roomID, messageID), nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) CreateMessage(ctx context.Context, roomID, text string) (string, error) {
	var resp wire.IDResponse
	body := wire.CreateMessageRequest{Message: text}
	if err := c.do(ctx, http.MethodPost, roomPath(roomID)+"/messages", body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// React adds one reaction and returns the resulting count.
func (c *Client) React(ctx context.Context, roomID, messageID string) (int64, error) {
	var resp wire.CountResponse
	if err := c.do(ctx, http.MethodPatch, messagePath(roomID, messageID)+"/react", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Unreact removes one reaction and returns the resulting count.
func (c *Client) Unreact(ctx context.Context, roomID, messageID string) (int64, error) {
	var resp wire.CountResponse
	if err := c.do(ctx, http.MethodDelete, messagePath(roomID, messageID)+"/react", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) MarkAnswered(ctx context.Context, roomID, messageID string) error {
	return c.do(ctx, http.MethodPatch, messagePath(roomID, messageID)+"/answer", nil, nil)
}

func roomPath(roomID string) string {
	return "/rooms/" + url.PathEscape(roomID)
}

func messagePath(roomID, messageID string) string {
	return roomPath(roomID) + "/messages/" + url.PathEscape(messageID)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if id, ok := correlation.ID(ctx); ok {
		req.Header.Set(correlation.Header, id)
	}
	return req, nil
}

// do sends one request. Non-2xx responses become structured errors and
// network failures become transport errors.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return apperrors.TransportError("request failed", err).
			WithField("method", method).
			WithField("path", path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.TransportError("failed to decode response", err).WithField("path", path)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body apperrors.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &body)
	return apperrors.FromResponse(resp.StatusCode, body)
}
