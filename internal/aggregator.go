package internal

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/gorilla/websocket"
)

// Aggregator maintains one background connection per room the user
// participates in and surfaces at most one live notification per room, the
// most recent winning. It never retries a dropped connection on its own; a
// later Reconcile may redial it.
type Aggregator struct {
	api     *APIClient
	dial    Dialer
	selfID  int64
	logger  *slog.Logger
	metrics *Metrics

	mu            sync.Mutex
	conns         map[int64]Conn
	notifications []Notification
	seen          map[int64]bool
	closed        bool

	updates chan struct{}
}

// NewAggregator builds an aggregator with no connections. Seed is the
// REST-fetched backlog of raw notifications.
func NewAggregator(api *APIClient, dial Dialer, selfID int64, seed []Notification, logger *slog.Logger, metrics *Metrics) *Aggregator {
	a := &Aggregator{
		api:     api,
		dial:    dial,
		selfID:  selfID,
		logger:  logger,
		metrics: metrics,
		conns:   make(map[int64]Conn),
		seen:    make(map[int64]bool),
		updates: make(chan struct{}, 1),
	}
	for _, n := range seed {
		a.Add(n)
	}
	return a
}

// Reconcile brings the tracked connection set in line with roomIDs: rooms no
// longer present are closed and dropped, new rooms are dialed and listened
// on. Rooms already connected are left untouched. Invalid ids and failed
// handshakes are logged and skipped, never retried here.
func (a *Aggregator) Reconcile(ctx context.Context, roomIDs []int64) {
	wanted := make(map[int64]bool, len(roomIDs))
	for _, id := range roomIDs {
		wanted[id] = true
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	for id, conn := range a.conns {
		if !wanted[id] {
			_ = conn.Close()
			delete(a.conns, id)
			a.metrics.RoomDisconnected()
		}
	}
	missing := make([]int64, 0, len(roomIDs))
	for _, id := range roomIDs {
		if _, ok := a.conns[id]; !ok {
			missing = append(missing, id)
		}
	}
	a.mu.Unlock()

	for _, id := range missing {
		conn, err := a.dial(ctx, id)
		if err != nil {
			a.logger.Warn("notification dial failed", "room_id", id, "err", err)
			continue
		}
		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			_ = conn.Close()
			return
		}
		if _, ok := a.conns[id]; ok {
			// an overlapping reconcile connected this room first
			a.mu.Unlock()
			_ = conn.Close()
			continue
		}
		a.conns[id] = conn
		a.mu.Unlock()
		a.metrics.RoomConnected()
		go a.listen(id, conn)
	}
}

// listen reads notification frames off one background connection until it
// errors, then forgets the connection so a later Reconcile may redial.
func (a *Aggregator) listen(roomID int64, conn Conn) {
	defer func() {
		a.mu.Lock()
		if a.conns[roomID] == conn {
			delete(a.conns, roomID)
		}
		a.mu.Unlock()
	}()
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		frame, err := DecodeFrame(payload, nowFn())
		if err != nil {
			a.logger.Warn("bad notification frame", "room_id", roomID, "err", err)
			continue
		}
		if frame.Kind != FrameNotification {
			continue
		}
		a.Add(frame.Notification)
	}
}

// Add appends one notification unless it is a self-notification or an id
// already held. The id check keeps dashboard refreshes from piling the same
// REST backlog entries onto the raw list.
func (a *Aggregator) Add(n Notification) {
	if n.Sender == a.selfID {
		return
	}
	a.mu.Lock()
	if n.ID != 0 && a.seen[n.ID] {
		a.mu.Unlock()
		return
	}
	if n.ID != 0 {
		a.seen[n.ID] = true
	}
	a.notifications = append(a.notifications, n)
	a.mu.Unlock()
	a.metrics.NotificationKept()
	select {
	case a.updates <- struct{}{}:
	default:
	}
}

// Unique returns the deduplicated view: at most one notification per room,
// the most recent for that room, newest first.
func (a *Aggregator) Unique() []Notification {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Dedupe(a.notifications)
}

// Dedupe sorts notifications by sent-at descending and keeps the first
// occurrence per distinct chat-room id.
func Dedupe(notifications []Notification) []Notification {
	sorted := append([]Notification(nil), notifications...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SentAt.After(sorted[j].SentAt)
	})
	seen := make(map[int64]bool, len(sorted))
	unique := sorted[:0]
	for _, n := range sorted {
		if seen[n.ChatRoomID] {
			continue
		}
		seen[n.ChatRoomID] = true
		unique = append(unique, n)
	}
	return unique
}

// Open clears every raw notification for the given room over REST and drops
// them locally, then leaves navigation to the caller. Fire and forget: a
// partially failed delete is logged, never rolled back.
func (a *Aggregator) Open(ctx context.Context, roomID int64) {
	a.mu.Lock()
	var kept, doomed []Notification
	for _, n := range a.notifications {
		if n.ChatRoomID == roomID {
			doomed = append(doomed, n)
		} else {
			kept = append(kept, n)
		}
	}
	a.notifications = kept
	a.mu.Unlock()

	for _, n := range doomed {
		if err := a.api.DeleteNotification(ctx, n.ID); err != nil {
			a.logger.Warn("delete notification", "notification_id", n.ID, "err", err)
		}
	}
}

// Updates signals that the notification list changed; the view recomputes
// its unique view on each receive.
func (a *Aggregator) Updates() <-chan struct{} { return a.updates }

// TrackedRooms lists room ids with a live background connection.
func (a *Aggregator) TrackedRooms() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]int64, 0, len(a.conns))
	for id := range a.conns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close tears down every tracked connection. Called on view unmount.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	for id, conn := range a.conns {
		_ = conn.Close()
		delete(a.conns, id)
		a.metrics.RoomDisconnected()
	}
}
