package internal

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gymchat/internal/storage"
)

const connectTimeout = 10 * time.Second

// messages emitted by the async commands below

type loginMsg struct {
	account Account
	err     error
}

type roomsMsg struct {
	rooms []ChatRoom
	err   error
}

type workoutsMsg struct {
	workouts []Workout
	err      error
}

type workoutSessionsMsg struct {
	sessions []WorkoutSession
	err      error
}

type notificationsMsg struct {
	notifications []Notification
	err           error
}

type clientsMsg struct {
	clients []User
	err     error
}

// notificationTickMsg fires whenever the aggregator's list changed.
type notificationTickMsg struct{}

type notificationCacheMsg struct {
	notifications []Notification
}

type roomsReconciledMsg struct{}

type roomCreatedMsg struct{ err error }

// gen-carrying chat messages: anything tagged with a stale generation is
// dropped by Update, so a slow connect or read for a room the user already
// left cannot touch the current view.

type sessionOpenedMsg struct {
	gen     int
	session *RoomSession
	err     error
}

type roomCacheMsg struct {
	gen   int
	items []FeedItem
}

type frameMsg struct {
	gen  int
	item FeedItem
	ok   bool
	err  error
}

type roomLeftMsg struct {
	gen int
	err error
}

type actionDoneMsg struct{ err error }

func (model *TUIModel) loginCmd(username, password string) tea.Cmd {
	api := model.api
	store := model.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		account, err := api.Login(ctx, username, password)
		if err != nil {
			return loginMsg{err: err}
		}
		if user, err := api.GetUser(ctx, account.UserID); err == nil && user.Profile != nil {
			account.PTChatroom = user.Profile.PTChatroom
		}
		if err := store.SaveSession(ctx, storage.Session{
			UserID:     account.UserID,
			Username:   account.Username,
			UserType:   account.UserType,
			Token:      account.Token,
			PTChatroom: account.PTChatroom,
		}); err != nil {
			return loginMsg{err: fmt.Errorf("persist session: %w", err)}
		}
		return loginMsg{account: account}
	}
}

func (model *TUIModel) fetchRoomsCmd() tea.Cmd {
	api := model.api
	return func() tea.Msg {
		rooms, err := api.ChatRooms(context.Background())
		return roomsMsg{rooms: rooms, err: err}
	}
}

func (model *TUIModel) fetchWorkoutsCmd() tea.Cmd {
	api := model.api
	return func() tea.Msg {
		workouts, err := api.Workouts(context.Background())
		return workoutsMsg{workouts: workouts, err: err}
	}
}

func (model *TUIModel) fetchWorkoutSessionsCmd() tea.Cmd {
	api := model.api
	return func() tea.Msg {
		sessions, err := api.WorkoutSessions(context.Background())
		return workoutSessionsMsg{sessions: sessions, err: err}
	}
}

func (model *TUIModel) fetchNotificationsCmd() tea.Cmd {
	api := model.api
	return func() tea.Msg {
		notifications, err := api.Notifications(context.Background())
		return notificationsMsg{notifications: notifications, err: err}
	}
}

func (model *TUIModel) fetchClientsCmd() tea.Cmd {
	api := model.api
	return func() tea.Msg {
		clients, err := api.Users(context.Background())
		return clientsMsg{clients: clients, err: err}
	}
}

// loadNotificationCacheCmd seeds the notification pane from the local cache
// so it renders before the REST backlog resolves.
func (model *TUIModel) loadNotificationCacheCmd() tea.Cmd {
	store := model.store
	return func() tea.Msg {
		cached, err := store.NotificationCache(context.Background())
		if err != nil {
			return notificationCacheMsg{}
		}
		notifications := make([]Notification, 0, len(cached))
		for _, n := range cached {
			notifications = append(notifications, Notification{
				ID:           n.ID,
				Sender:       n.Sender,
				ChatRoomID:   n.ChatRoomID,
				ChatRoomName: n.ChatRoomName,
				SentAt:       n.SentAt,
				Message:      n.Message,
				WorkoutName:  n.WorkoutName,
			})
		}
		return notificationCacheMsg{notifications: notifications}
	}
}

func (model *TUIModel) persistNotificationCacheCmd(notifications []Notification) tea.Cmd {
	store := model.store
	logger := model.logger
	cached := make([]storage.CachedNotification, 0, len(notifications))
	for _, n := range notifications {
		cached = append(cached, storage.CachedNotification{
			ID:           n.ID,
			Sender:       n.Sender,
			ChatRoomID:   n.ChatRoomID,
			ChatRoomName: n.ChatRoomName,
			SentAt:       n.SentAt,
			Message:      n.Message,
			WorkoutName:  n.WorkoutName,
		})
	}
	return func() tea.Msg {
		if err := store.ReplaceNotificationCache(context.Background(), cached); err != nil {
			logger.Warn("cache notifications", "err", err)
		}
		return nil
	}
}

// reconcileCmd aligns the aggregator's background connections with the room
// list. Runs off the update loop because each missing room costs a handshake.
func (model *TUIModel) reconcileCmd(roomIDs []int64) tea.Cmd {
	aggregator := model.aggregator
	ids := append([]int64(nil), roomIDs...)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		aggregator.Reconcile(ctx, ids)
		return roomsReconciledMsg{}
	}
}

// waitNotificationCmd blocks until the aggregator reports a change. Update
// re-issues it after every tick so there is always exactly one waiter.
func (model *TUIModel) waitNotificationCmd() tea.Cmd {
	aggregator := model.aggregator
	return func() tea.Msg {
		<-aggregator.Updates()
		return notificationTickMsg{}
	}
}

// clearNotificationsCmd deletes a room's raw notifications before joining it.
func (model *TUIModel) clearNotificationsCmd(roomID int64) tea.Cmd {
	aggregator := model.aggregator
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		aggregator.Open(ctx, roomID)
		return notificationTickMsg{}
	}
}

// openRoomCmd hydrates and connects a room session, then refreshes the local
// feed cache from the fetched history.
func (model *TUIModel) openRoomCmd(gen int, roomID int64) tea.Cmd {
	session := NewRoomSession(model.api, model.roomDialer(), model.self, roomID, model.logger, model.metrics)
	store := model.store
	logger := model.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := session.Open(ctx); err != nil {
			return sessionOpenedMsg{gen: gen, err: err}
		}
		if err := store.ReplaceRoomCache(ctx, roomID, toCachedMessages(roomID, session.History())); err != nil {
			logger.Warn("cache room feed", "room_id", roomID, "err", err)
		}
		return sessionOpenedMsg{gen: gen, session: session}
	}
}

// loadCacheCmd renders the locally cached feed while the live connect runs.
func (model *TUIModel) loadCacheCmd(gen int, roomID int64) tea.Cmd {
	store := model.store
	return func() tea.Msg {
		cached, err := store.RoomCache(context.Background(), roomID)
		if err != nil {
			return roomCacheMsg{gen: gen}
		}
		return roomCacheMsg{gen: gen, items: fromCachedMessages(cached)}
	}
}

// readFrameCmd blocks for the next inbound frame. Update re-issues it after
// every frameMsg, keeping a single reader per session.
func readFrameCmd(gen int, session *RoomSession) tea.Cmd {
	return func() tea.Msg {
		item, ok, err := session.ReadFrame()
		return frameMsg{gen: gen, item: item, ok: ok, err: err}
	}
}

func sendTextCmd(session *RoomSession, body string) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: session.SendText(body)}
	}
}

func shareWorkoutCmd(session *RoomSession, workout Workout) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: session.SendWorkout(&workout)}
	}
}

func acceptWorkoutCmd(session *RoomSession, share WorkoutShare) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: session.AcceptWorkout(share)}
	}
}

// leaveRoomCmd runs the guarded leave flow; a blocked leave comes back as the
// alert error with the session still open.
func (model *TUIModel) leaveRoomCmd(gen int, session *RoomSession, roomID int64) tea.Cmd {
	store := model.store
	logger := model.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := session.LeaveRoom(ctx); err != nil {
			return roomLeftMsg{gen: gen, err: err}
		}
		if err := store.DropRoomCache(ctx, roomID); err != nil {
			logger.Warn("drop room cache", "room_id", roomID, "err", err)
		}
		return roomLeftMsg{gen: gen}
	}
}

func (model *TUIModel) createRoomCmd(name string, participantNames []string) tea.Cmd {
	api := model.api
	selfID := model.self.UserID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		users, err := api.Users(ctx)
		if err != nil {
			return roomCreatedMsg{err: err}
		}
		byName := make(map[string]int64, len(users))
		for _, user := range users {
			byName[user.Username] = user.ID
		}
		ids := []int64{selfID}
		for _, raw := range participantNames {
			username := strings.TrimSpace(raw)
			if username == "" {
				continue
			}
			id, ok := byName[username]
			if !ok {
				return roomCreatedMsg{err: fmt.Errorf("no such user: %s", username)}
			}
			if id != selfID {
				ids = append(ids, id)
			}
		}
		return roomCreatedMsg{err: api.CreateChatRoom(ctx, name, ids)}
	}
}

// deleteRoomCmd removes a room from the sidebar. The same role guards apply
// as for an in-room leave: they just run against fresh REST data instead of a
// hydrated session.
func (model *TUIModel) deleteRoomCmd(room ChatRoom) tea.Cmd {
	api := model.api
	self := model.self
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		switch self.UserType {
		case "user":
			if self.PTChatroom == room.ID {
				return actionDoneMsg{err: ErrOwnPTRoom}
			}
		case "trainer":
			participants, err := api.Participants(ctx, room.ID)
			if err != nil {
				return actionDoneMsg{err: err}
			}
			for _, participant := range participants {
				if participant.ID == self.UserID {
					continue
				}
				user, err := api.GetUser(ctx, participant.ID)
				if err != nil {
					continue
				}
				if user.Profile != nil && user.Profile.PTChatroom == room.ID {
					return actionDoneMsg{err: ErrClientPTRoom}
				}
			}
		}
		return actionDoneMsg{err: api.DeleteChatRoom(ctx, room.ID)}
	}
}

func (model *TUIModel) deleteWorkoutCmd(workoutID int64) tea.Cmd {
	api := model.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		return actionDoneMsg{err: api.DeleteWorkout(ctx, workoutID)}
	}
}

func toCachedMessages(roomID int64, items []FeedItem) []storage.CachedMessage {
	cached := make([]storage.CachedMessage, 0, len(items))
	for _, item := range items {
		msg := storage.CachedMessage{
			RoomID:  roomID,
			Kind:    int(item.Kind),
			Sender:  item.Sender,
			Content: item.Content,
			SentAt:  item.SentAt,
		}
		if item.Workout != nil {
			msg.WorkoutID = item.Workout.ID
			msg.WorkoutName = item.Workout.Name
		}
		cached = append(cached, msg)
	}
	return cached
}

func fromCachedMessages(cached []storage.CachedMessage) []FeedItem {
	items := make([]FeedItem, 0, len(cached))
	for _, msg := range cached {
		item := FeedItem{
			Kind:    FeedKind(msg.Kind),
			Sender:  msg.Sender,
			Content: msg.Content,
			SentAt:  msg.SentAt,
		}
		if msg.Kind == int(KindWorkout) {
			item.Workout = &WorkoutShare{ID: msg.WorkoutID, Name: msg.WorkoutName}
		}
		items = append(items, item)
	}
	return items
}
