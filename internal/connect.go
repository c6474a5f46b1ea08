package internal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
)

// Conn is the small slice of a websocket connection the chat flow touches.
// *websocket.Conn satisfies it; tests substitute in-memory fakes.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens one duplex connection scoped to a room. No retry: a failed
// handshake surfaces only through the returned error.
type Dialer func(ctx context.Context, roomID int64) (Conn, error)

// NewRoomDialer builds a Dialer that attaches the bearer token as a query
// parameter, the only auth mechanism the backend supports on websockets.
func NewRoomDialer(wsBase, token string) Dialer {
	return func(ctx context.Context, roomID int64) (Conn, error) {
		joinURL, err := buildRoomURL(wsBase, roomID, token)
		if err != nil {
			return nil, err
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, joinURL, http.Header{})
		if err != nil {
			return nil, fmt.Errorf("dial room %d: %w", roomID, err)
		}
		return conn, nil
	}
}

func buildRoomURL(base string, roomID int64, token string) (string, error) {
	if roomID <= 0 {
		return "", fmt.Errorf("invalid room id %d", roomID)
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", fmt.Errorf("invalid scheme for websocket: %s", parsed.Scheme)
	}
	parsed.Path = fmt.Sprintf("%s/chat/%d/", trimTrailingSlash(parsed.Path), roomID)
	query := parsed.Query()
	query.Set("token", token)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func trimTrailingSlash(path string) string {
	for len(path) > 0 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}
