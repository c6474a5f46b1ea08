package internal

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

func (model *TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return model.handleKey(msg)

	case loginMsg:
		if msg.err != nil {
			model.alert = "Login failed: " + msg.err.Error()
			model.mode = modeLogin
			model.textInput.EchoMode = textinput.EchoNormal
			model.textInput.Placeholder = "Username…"
			model.textInput.Prompt = "login> "
			model.textInput.SetValue("")
			return model, nil
		}
		model.self = msg.account
		model.alert = ""
		model.enterDashboard()
		return model, model.dashboardCmds()

	case roomsMsg:
		if msg.err != nil {
			model.noteError("load chat rooms", msg.err)
			return model, nil
		}
		model.rooms = msg.rooms
		model.clampCursor()
		ids := make([]int64, 0, len(msg.rooms))
		for _, room := range msg.rooms {
			ids = append(ids, room.ID)
		}
		return model, model.reconcileCmd(ids)

	case workoutsMsg:
		if msg.err != nil {
			model.noteError("load workouts", msg.err)
			return model, nil
		}
		model.workouts = msg.workouts
		model.clampCursor()
		return model, nil

	case workoutSessionsMsg:
		if msg.err != nil {
			model.noteError("load workout sessions", msg.err)
			return model, nil
		}
		model.sessions = msg.sessions
		return model, nil

	case clientsMsg:
		if msg.err != nil {
			model.noteError("load users", msg.err)
			return model, nil
		}
		model.clients = msg.clients
		return model, nil

	case notificationsMsg:
		if msg.err != nil {
			model.noteError("load notifications", msg.err)
			return model, nil
		}
		for _, notification := range msg.notifications {
			model.aggregator.Add(notification)
		}
		model.notifications = model.aggregator.Unique()
		model.clampCursor()
		return model, model.persistNotificationCacheCmd(msg.notifications)

	case notificationCacheMsg:
		for _, notification := range msg.notifications {
			model.aggregator.Add(notification)
		}
		model.notifications = model.aggregator.Unique()
		model.clampCursor()
		return model, nil

	case notificationTickMsg:
		model.notifications = model.aggregator.Unique()
		model.clampCursor()
		return model, model.waitNotificationCmd()

	case roomsReconciledMsg:
		return model, nil

	case roomCreatedMsg:
		if msg.err != nil {
			model.alert = "Could not create chat room: " + msg.err.Error()
			return model, nil
		}
		model.alert = "Chat room created."
		return model, model.fetchRoomsCmd()

	case sessionOpenedMsg:
		if msg.gen != model.chatGen {
			if msg.session != nil {
				msg.session.Close()
			}
			return model, nil
		}
		if msg.err != nil {
			model.enterDashboard()
			model.alert = "Could not join the chat room: " + msg.err.Error()
			return model, nil
		}
		model.session = msg.session
		model.feed = MergeFeed(msg.session.History())
		return model, readFrameCmd(model.chatGen, msg.session)

	case roomCacheMsg:
		if msg.gen != model.chatGen || model.session != nil || len(msg.items) == 0 {
			return model, nil
		}
		model.feed = msg.items
		return model, nil

	case frameMsg:
		if msg.gen != model.chatGen {
			return model, nil
		}
		if msg.err != nil {
			// dropped connections stay dropped, no retry loop
			model.alert = "Connection lost."
			if model.session != nil {
				model.session.Close()
			}
			return model, nil
		}
		if msg.ok {
			model.feed = append(model.feed, msg.item)
		}
		return model, readFrameCmd(model.chatGen, model.session)

	case roomLeftMsg:
		if msg.gen != model.chatGen {
			return model, nil
		}
		if msg.err != nil {
			model.alert = msg.err.Error()
			return model, nil
		}
		model.closeChat()
		model.enterDashboard()
		model.alert = "You left the chat room."
		return model, model.dashboardCmds()

	case actionDoneMsg:
		if msg.err != nil {
			model.alert = msg.err.Error()
		}
		return model, nil
	}

	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(msg)
	return model, cmd
}

func (model *TUIModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return model, model.quit()
	}

	switch model.mode {
	case modeLogin:
		return model.handleLoginKey(msg)
	case modePassword:
		return model.handlePasswordKey(msg)
	case modeDashboard:
		return model.handleDashboardKey(msg)
	case modeRoomName, modeRoomParticipants:
		return model.handleRoomCreateKey(msg)
	case modeChat:
		return model.handleChatKey(msg)
	}
	return model, nil
}

func (model *TUIModel) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		username := strings.TrimSpace(model.textInput.Value())
		if username == "" {
			return model, nil
		}
		model.pendingLogin = username
		model.mode = modePassword
		model.textInput.SetValue("")
		model.textInput.Placeholder = "Password…"
		model.textInput.Prompt = "password> "
		model.textInput.EchoMode = textinput.EchoPassword
		return model, nil
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(msg)
	return model, cmd
}

func (model *TUIModel) handlePasswordKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		password := model.textInput.Value()
		if password == "" {
			return model, nil
		}
		model.textInput.SetValue("")
		model.textInput.EchoMode = textinput.EchoNormal
		model.alert = "Signing in…"
		return model, model.loginCmd(model.pendingLogin, password)
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(msg)
	return model, cmd
}

func (model *TUIModel) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return model, model.quit()
	case "tab":
		model.pane = (model.pane + 1) % paneCount
		model.cursor = 0
		return model, nil
	case "up", "k":
		if model.cursor > 0 {
			model.cursor--
		}
		return model, nil
	case "down", "j":
		if model.cursor < model.paneLen()-1 {
			model.cursor++
		}
		return model, nil
	case "r":
		model.alert = ""
		return model, model.dashboardCmds()
	case "n":
		model.mode = modeRoomName
		model.textInput.SetValue("")
		model.textInput.Placeholder = "Room name…"
		model.textInput.Prompt = "name> "
		model.textInput.Focus()
		return model, nil
	case "d":
		switch model.pane {
		case paneWorkouts:
			if model.cursor < len(model.workouts) {
				workout := model.workouts[model.cursor]
				model.alert = "Deleting workout " + workout.Name + "…"
				return model, tea.Sequence(model.deleteWorkoutCmd(workout.ID), model.fetchWorkoutsCmd())
			}
		case paneRooms:
			if model.cursor < len(model.rooms) {
				room := model.rooms[model.cursor]
				model.alert = "Deleting chat room " + room.Name + "…"
				return model, tea.Sequence(model.deleteRoomCmd(room), model.fetchRoomsCmd())
			}
		}
		return model, nil
	case "enter":
		return model.handleDashboardEnter()
	}
	return model, nil
}

func (model *TUIModel) handleDashboardEnter() (tea.Model, tea.Cmd) {
	switch model.pane {
	case paneRooms:
		if model.cursor < len(model.rooms) {
			return model, model.joinRoom(model.rooms[model.cursor].ID, nil)
		}
	case paneNotifications:
		if model.cursor < len(model.notifications) {
			notification := model.notifications[model.cursor]
			clear := model.clearNotificationsCmd(notification.ChatRoomID)
			return model, model.joinRoom(notification.ChatRoomID, clear)
		}
	}
	return model, nil
}

// joinRoom bumps the generation so anything still in flight for the previous
// room gets dropped, then kicks off the cache render and the live connect.
func (model *TUIModel) joinRoom(roomID int64, extra tea.Cmd) tea.Cmd {
	model.chatGen++
	model.mode = modeChat
	model.session = nil
	model.feed = nil
	model.pickerOpen = false
	model.alert = ""
	model.textInput.SetValue("")
	model.textInput.Placeholder = "Message… (/workout, /leave, /quit)"
	model.textInput.Prompt = "> "
	model.textInput.Focus()

	cmds := []tea.Cmd{
		model.loadCacheCmd(model.chatGen, roomID),
		model.openRoomCmd(model.chatGen, roomID),
	}
	if extra != nil {
		cmds = append(cmds, extra)
	}
	return tea.Batch(cmds...)
}

func (model *TUIModel) handleRoomCreateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		model.enterDashboard()
		return model, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(model.textInput.Value())
		if value == "" {
			return model, nil
		}
		if model.mode == modeRoomName {
			model.pendingRoomName = value
			model.mode = modeRoomParticipants
			model.textInput.SetValue("")
			model.textInput.Placeholder = "Participant usernames, comma separated…"
			model.textInput.Prompt = "with> "
			return model, nil
		}
		participants := strings.Split(value, ",")
		name := model.pendingRoomName
		model.enterDashboard()
		model.alert = "Creating chat room…"
		return model, model.createRoomCmd(name, participants)
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(msg)
	return model, cmd
}

func (model *TUIModel) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if model.pickerOpen {
		switch msg.String() {
		case "esc":
			model.pickerOpen = false
			return model, nil
		case "up", "k":
			if model.pickerIndex > 0 {
				model.pickerIndex--
			}
			return model, nil
		case "down", "j":
			if model.pickerIndex < len(model.workouts)-1 {
				model.pickerIndex++
			}
			return model, nil
		case "enter":
			model.pickerOpen = false
			if model.session != nil && model.pickerIndex < len(model.workouts) {
				return model, shareWorkoutCmd(model.session, model.workouts[model.pickerIndex])
			}
			return model, nil
		}
		return model, nil
	}

	switch msg.String() {
	case "esc":
		model.closeChat()
		model.enterDashboard()
		return model, model.dashboardCmds()
	case "ctrl+a":
		return model, model.acceptNewestShare()
	case "enter":
		return model.handleChatEnter()
	}

	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(msg)
	return model, cmd
}

func (model *TUIModel) handleChatEnter() (tea.Model, tea.Cmd) {
	body := model.textInput.Value()
	model.textInput.SetValue("")

	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "/") {
		switch trimmed {
		case "/quit":
			return model, model.quit()
		case "/leave":
			if model.session == nil {
				return model, nil
			}
			model.alert = "Leaving…"
			return model, model.leaveRoomCmd(model.chatGen, model.session, model.session.roomID)
		case "/workout":
			if len(model.workouts) == 0 {
				model.alert = "No workouts to share."
				return model, nil
			}
			model.pickerOpen = true
			model.pickerIndex = 0
			return model, nil
		case "/accept":
			return model, model.acceptNewestShare()
		default:
			model.alert = "Unknown command: " + trimmed
			return model, nil
		}
	}

	if model.session == nil {
		return model, nil
	}
	return model, sendTextCmd(model.session, body)
}

// acceptNewestShare targets the most recent workout share in the feed.
func (model *TUIModel) acceptNewestShare() tea.Cmd {
	if model.session == nil {
		return nil
	}
	shares := model.workoutShares()
	if len(shares) == 0 {
		model.alert = "No workout share to accept."
		return nil
	}
	return acceptWorkoutCmd(model.session, *shares[len(shares)-1].Workout)
}

// closeChat tears down the live session and invalidates in-flight chat work.
func (model *TUIModel) closeChat() {
	if model.session != nil {
		model.session.Close()
		model.session = nil
	}
	model.chatGen++
	model.feed = nil
	model.pickerOpen = false
}

func (model *TUIModel) quit() tea.Cmd {
	model.closeChat()
	if model.aggregator != nil {
		model.aggregator.Close()
	}
	return tea.Quit
}

func (model *TUIModel) noteError(action string, err error) {
	model.lastError = err
	model.logger.Warn(action, "err", err)
	model.alert = "Could not " + action + "."
}
