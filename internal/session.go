package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// SessionState tracks the room session lifecycle. There is no reconnect
// state: a closed session stays closed.
type SessionState int

const (
	StateClosed SessionState = iota
	StateConnecting
	StateOpen
)

// Account is the locally persisted identity: the one place user id, role and
// token live instead of being re-read ad hoc all over the view layer.
type Account struct {
	UserID     int64
	Username   string
	UserType   string // "user" | "trainer"
	Token      string
	PTChatroom int64
}

// Alerts surfaced when a guarded operation is rejected locally. The view
// shows these verbatim.
var (
	ErrAlreadyOwned = errors.New("You already own this workout!")
	ErrOwnPTRoom    = errors.New("Cannot leave the chat room with your personal trainer!")
	ErrClientPTRoom = errors.New("Cannot leave: the client still has this chat room as their PT chat.")
)

// RoomSession owns the one live connection for one chat room: it hydrates
// history over REST, classifies inbound frames, and guards outgoing sends.
// At most one live connection per room; opening again closes the old one.
// Sends, reads and close run on separate goroutines, so state, conn and
// every write on the connection share one mutex.
type RoomSession struct {
	api     *APIClient
	dial    Dialer
	roomID  int64
	self    Account
	logger  *slog.Logger
	metrics *Metrics

	mu        sync.Mutex
	state     SessionState
	conn      Conn
	closeOnce sync.Once

	roomName string
	roster   *Roster
	history  []FeedItem
}

// NewRoomSession builds a session in the Closed state. Call Open to connect.
func NewRoomSession(api *APIClient, dial Dialer, self Account, roomID int64, logger *slog.Logger, metrics *Metrics) *RoomSession {
	return &RoomSession{
		api:     api,
		dial:    dial,
		roomID:  roomID,
		self:    self,
		logger:  logger,
		metrics: metrics,
		roster:  NewRoster(),
	}
}

// Open hydrates the room over REST and then dials the websocket. Each fetch
// failure is contained: the session opens with whatever slices resolved, and
// the view renders partial data. Only a failed handshake aborts.
func (s *RoomSession) Open(ctx context.Context) error {
	s.mu.Lock()
	wasOpen := s.state == StateOpen
	s.mu.Unlock()
	if wasOpen {
		s.closeConn()
	}
	s.mu.Lock()
	s.state = StateConnecting
	s.mu.Unlock()

	if room, err := s.api.GetChatRoom(ctx, s.roomID); err != nil {
		s.logger.Warn("fetch chat room", "room_id", s.roomID, "err", err)
	} else {
		s.roomName = room.Name
	}
	if participants, err := s.api.Participants(ctx, s.roomID); err != nil {
		s.logger.Warn("fetch participants", "room_id", s.roomID, "err", err)
	} else {
		for _, user := range participants {
			s.roster.Add(user)
		}
	}
	var texts, shares []FeedItem
	var err error
	if texts, err = s.api.Messages(ctx, s.roomID); err != nil {
		s.logger.Warn("fetch messages", "room_id", s.roomID, "err", err)
	}
	if shares, err = s.api.WorkoutMessages(ctx, s.roomID); err != nil {
		s.logger.Warn("fetch workout messages", "room_id", s.roomID, "err", err)
	}
	s.history = MergeFeed(texts, shares)

	conn, err := s.dial(ctx, s.roomID)
	s.mu.Lock()
	if err != nil {
		s.state = StateClosed
		s.mu.Unlock()
		return err
	}
	s.conn = conn
	s.state = StateOpen
	s.mu.Unlock()
	s.metrics.RoomConnected()
	return nil
}

// History returns the merged REST-fetched feed, sorted by sent-at ascending.
func (s *RoomSession) History() []FeedItem { return s.history }

// RoomName returns the room's display name, empty until hydrated.
func (s *RoomSession) RoomName() string { return s.roomName }

// Roster returns the participant roster for sender display names.
func (s *RoomSession) Roster() *Roster { return s.roster }

// State reports the session lifecycle state.
func (s *RoomSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ReadFrame blocks for the next inbound frame and classifies it. The second
// return is false for frames the session ignores: notification frames belong
// to the aggregator channel, never the room feed.
func (s *RoomSession) ReadFrame() (FeedItem, bool, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return FeedItem{}, false, errors.New("session not open")
	}
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			return FeedItem{}, false, err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		frame, err := DecodeFrame(payload, nowFn())
		if err != nil {
			s.logger.Warn("bad frame", "room_id", s.roomID, "err", err)
			continue
		}
		s.metrics.FrameReceived()
		switch frame.Kind {
		case FrameMessage, FrameWorkout, FrameConfirmation, FrameLeave:
			return frame.Item, true, nil
		default:
			// notification and unknown frames are dropped here
			return FeedItem{}, false, nil
		}
	}
}

// SendText transmits a text frame. Guarded no-op when the session is not
// open or the body is blank; the body itself goes out as composed, trimming
// is only the emptiness check.
func (s *RoomSession) SendText(body string) error {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	return s.sendJSON(outboundText{Type: "message", Message: body})
}

// SendWorkout shares a workout into the room. No-op without a selection.
func (s *RoomSession) SendWorkout(workout *Workout) error {
	if workout == nil {
		return nil
	}
	return s.sendJSON(outboundWorkout{Type: "workout", Workout: *workout})
}

// AcceptWorkout requests ownership of a shared workout. Rejected locally
// when the current user already owns it; the mutation itself happens on the
// backend in response to the confirmation frame.
func (s *RoomSession) AcceptWorkout(share WorkoutShare) error {
	if share.OwnedBy(s.self.UserID) {
		return ErrAlreadyOwned
	}
	return s.sendJSON(outboundConfirmation{
		Type:      "confirmation",
		WorkoutID: share.ID,
		UserID:    s.self.UserID,
		Message:   fmt.Sprintf("%s has accepted the workout: %s", s.self.Username, share.Name),
	})
}

// LeaveRoom runs the role-specific guards, then transmits a leave frame,
// deletes the room over REST and closes the session. A blocked leave returns
// the alert error and transmits nothing.
func (s *RoomSession) LeaveRoom(ctx context.Context) error {
	switch s.self.UserType {
	case "user":
		if s.self.PTChatroom == s.roomID {
			return ErrOwnPTRoom
		}
	case "trainer":
		client, ok := s.roster.Other(s.self.UserID)
		if !ok {
			s.logger.Info("client already left the room", "room_id", s.roomID)
			break
		}
		clientUser, err := s.api.GetUser(ctx, client.ID)
		if err != nil {
			// same containment as the handshake path: log and move on
			s.logger.Warn("fetch client profile", "user_id", client.ID, "err", err)
			break
		}
		if clientUser.Profile != nil && clientUser.Profile.PTChatroom == s.roomID {
			return ErrClientPTRoom
		}
	}

	if s.State() != StateOpen {
		return nil
	}
	if err := s.sendJSON(outboundLeave{
		Type:    "leave",
		UserID:  s.self.UserID,
		Message: fmt.Sprintf("%s has left the chat room", s.self.Username),
	}); err != nil {
		return err
	}
	if err := s.api.DeleteChatRoom(ctx, s.roomID); err != nil {
		return err
	}
	s.Close()
	return nil
}

// Close closes the live connection exactly once. Sends after close are
// dropped by the Open guards, not queued.
func (s *RoomSession) Close() {
	s.closeOnce.Do(func() {
		s.closeConn()
	})
}

// closeConn holds the session mutex across the close handshake so the close
// control frame cannot interleave with an in-flight sendJSON write.
func (s *RoomSession) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = s.conn.Close()
		s.conn = nil
		s.metrics.RoomDisconnected()
	}
	s.state = StateClosed
}

// sendJSON re-checks the open state under the lock: a close that won the
// race turns the send into the usual guarded no-op instead of a write on a
// dead connection.
func (s *RoomSession) sendJSON(payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen || s.conn == nil {
		return nil
	}
	return s.conn.WriteMessage(websocket.TextMessage, encoded)
}

// DisplayName resolves a wire sender (numeric id or literal name) to a
// username via the roster. A numeric id with no roster entry resolves to an
// empty name, matching how the previous clients rendered departed senders.
func (s *RoomSession) DisplayName(sender string) string {
	if id, err := strconv.ParseInt(sender, 10, 64); err == nil {
		name, _ := s.roster.Name(id)
		return name
	}
	return sender
}

// Roster maps participant ids to usernames for one room. Mutated only from
// the session's own event flow, but guarded anyway since the aggregator and
// TUI goroutines may read it.
type Roster struct {
	mu    sync.Mutex
	users map[int64]User
}

func NewRoster() *Roster {
	return &Roster{users: make(map[int64]User)}
}

func (r *Roster) Add(user User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
}

func (r *Roster) Name(id int64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	return user.Username, ok
}

// Other returns a participant other than selfID, used by the trainer leave
// guard to locate the paired client.
func (r *Roster) Other(selfID int64) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, user := range r.users {
		if id != selfID {
			return user, true
		}
	}
	return User{}, false
}

func (r *Roster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}
