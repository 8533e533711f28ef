package roomclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/pscheid92/roomqa/internal/domain"
	"github.com/pscheid92/roomqa/internal/platform/correlation"
	apperrors "github.com/pscheid92/roomqa/internal/platform/errors"
	"github.com/pscheid92/roomqa/internal/wire"
)

// Stream is one open subscription to a room's events. Events arrive in the
// order the server pushed them. A Stream is not safe for concurrent Next.
type Stream struct {
	roomID string
	ws     *websocket.Conn
}

// Subscribe opens the room's event stream. A missing room is reported as a
// not-found error before any stream is established.
func (c *Client) Subscribe(ctx context.Context, roomID string) (*Stream, error) {
	target := streamURL(c.baseURL) + "/subscribe/" + roomID

	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	if id, ok := correlation.ID(ctx); ok {
		header.Set(correlation.Header, id)
	}

	ws, resp, err := websocket.Dial(ctx, target, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, decodeError(resp)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.TransportError("failed to open event stream", err).WithField("room_id", roomID)
	}
	return &Stream{roomID: roomID, ws: ws}, nil
}

func streamURL(baseURL string) string {
	if rest, ok := strings.CutPrefix(baseURL, "https://"); ok {
		return "wss://" + rest
	}
	return "ws://" + strings.TrimPrefix(baseURL, "http://")
}

// Next blocks until the next event arrives. Frames of unknown kind are
// skipped. When the stream ends it returns a transport error carrying the
// close status, or ctx's error if ctx was cancelled.
func (s *Stream) Next(ctx context.Context) (domain.Event, error) {
	for {
		typ, data, err := s.ws.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, apperrors.TransportError("event stream closed", err).
				WithField("room_id", s.roomID).
				WithField("close_status", int(websocket.CloseStatus(err)))
		}
		if typ != websocket.MessageText {
			continue
		}

		event, err := wire.DecodeEvent(data)
		if err != nil {
			if !errors.Is(err, wire.ErrUnknownKind) {
				slog.WarnContext(ctx, "Dropping malformed event", "room_id", s.roomID, "error", err)
			}
			continue
		}
		return event, nil
	}
}

func (s *Stream) Close() error {
	return s.ws.Close(websocket.StatusNormalClosure, "leaving room")
}
