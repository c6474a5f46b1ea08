package internal

import (
	"log/slog"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"gymchat/internal/storage"
)

// tui model struct for all the components and modes
type TUIModel struct {
	api     *APIClient
	store   *storage.Store
	wsBase  string
	logger  *slog.Logger
	metrics *Metrics

	textInput textinput.Model
	self      Account
	mode      appMode
	alert     string
	lastError error

	// dashboard state
	rooms         []ChatRoom
	notifications []Notification
	workouts      []Workout
	sessions      []WorkoutSession
	clients       []User
	pane          dashPane
	cursor        int
	aggregator    *Aggregator

	// room creation flow
	pendingLogin    string
	pendingRoomName string

	// chat state
	session     *RoomSession
	feed        []FeedItem
	chatGen     int
	pickerOpen  bool
	pickerIndex int
}

type appMode int

const (
	modeLogin appMode = iota
	modePassword
	modeDashboard
	modeRoomName
	modeRoomParticipants
	modeChat
)

type dashPane int

const (
	paneRooms dashPane = iota
	paneNotifications
	paneWorkouts
	paneCount
)

// NewTUIModel builds the client model. With a persisted session the model
// starts on the dashboard, otherwise on the login prompt.
func NewTUIModel(api *APIClient, store *storage.Store, wsBase string, self Account, logger *slog.Logger, metrics *Metrics) *TUIModel {
	input := textinput.New()
	input.CharLimit = 0
	input.Focus()

	model := &TUIModel{
		api:       api,
		store:     store,
		wsBase:    wsBase,
		logger:    logger,
		metrics:   metrics,
		textInput: input,
		self:      self,
	}
	if self.Token == "" {
		model.mode = modeLogin
		model.textInput.Placeholder = "Username…"
		model.textInput.Prompt = "login> "
	} else {
		model.enterDashboard()
	}
	return model
}

func (model *TUIModel) Init() tea.Cmd {
	if model.mode == modeDashboard {
		return model.dashboardCmds()
	}
	return nil
}

// enterDashboard resets dashboard state and builds the aggregator that owns
// the per-room background connections.
func (model *TUIModel) enterDashboard() {
	model.mode = modeDashboard
	model.pane = paneRooms
	model.cursor = 0
	model.textInput.SetValue("")
	model.textInput.Blur()
	model.textInput.Prompt = ""
	model.textInput.Placeholder = ""
	if model.aggregator == nil {
		model.aggregator = NewAggregator(model.api, model.roomDialer(), model.self.UserID, nil, model.logger, model.metrics)
	}
}

func (model *TUIModel) roomDialer() Dialer {
	return NewRoomDialer(model.wsBase, model.api.Token)
}

// dashboardCmds kicks off the independent fetches. Each one resolves on its
// own; the dashboard renders whatever has landed so far.
func (model *TUIModel) dashboardCmds() tea.Cmd {
	cmds := []tea.Cmd{
		model.fetchRoomsCmd(),
		model.fetchWorkoutsCmd(),
		model.loadNotificationCacheCmd(),
		model.fetchNotificationsCmd(),
		model.waitNotificationCmd(),
	}
	if model.self.UserType == "trainer" {
		cmds = append(cmds, model.fetchClientsCmd())
	} else {
		cmds = append(cmds, model.fetchWorkoutSessionsCmd())
	}
	return tea.Batch(cmds...)
}

// paneLen reports how many rows the focused dashboard pane has.
func (model *TUIModel) paneLen() int {
	switch model.pane {
	case paneRooms:
		return len(model.rooms)
	case paneNotifications:
		return len(model.notifications)
	case paneWorkouts:
		return len(model.workouts)
	}
	return 0
}

func (model *TUIModel) clampCursor() {
	if limit := model.paneLen(); model.cursor >= limit {
		model.cursor = limit - 1
	}
	if model.cursor < 0 {
		model.cursor = 0
	}
}

// workoutShares returns the feed's workout shares, oldest first, for the
// accept flow.
func (model *TUIModel) workoutShares() []FeedItem {
	var shares []FeedItem
	for _, item := range model.feed {
		if item.Kind == KindWorkout && item.Workout != nil {
			shares = append(shares, item)
		}
	}
	return shares
}
