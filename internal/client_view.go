package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Width(64)

	focusedPaneStyle = paneStyle.Copy().
				BorderForeground(lipgloss.Color("205"))

	paneTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	ownMessageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	otherMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	systemLineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	workoutStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

const (
	feedWindow = 18
	feedWidth  = 62
)

var (
	ownLineStyle = lipgloss.NewStyle().
			Width(feedWidth).
			Align(lipgloss.Right)

	systemCenterStyle = lipgloss.NewStyle().
				Width(feedWidth).
				Align(lipgloss.Center)
)

func (model *TUIModel) View() string {
	switch model.mode {
	case modeLogin, modePassword:
		return model.loginView()
	case modeRoomName, modeRoomParticipants:
		return model.roomCreateView()
	case modeChat:
		return model.chatView()
	default:
		return model.dashboardView()
	}
}

func (model *TUIModel) loginView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("gymchat") + "\n\n")
	b.WriteString("Sign in with your coaching account.\n\n")
	b.WriteString(model.textInput.View() + "\n")
	if model.alert != "" {
		b.WriteString("\n" + alertStyle.Render(model.alert) + "\n")
	}
	b.WriteString("\n" + mutedStyle.Render("enter to continue · ctrl+c to quit"))
	return b.String()
}

func (model *TUIModel) roomCreateView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("New chat room") + "\n\n")
	if model.mode == modeRoomParticipants {
		b.WriteString(mutedStyle.Render("Name: "+model.pendingRoomName) + "\n\n")
	}
	b.WriteString(model.textInput.View() + "\n")
	b.WriteString("\n" + mutedStyle.Render("enter to confirm · esc to cancel"))
	return b.String()
}

func (model *TUIModel) dashboardView() string {
	header := titleStyle.Render("gymchat") + mutedStyle.Render(
		fmt.Sprintf("  %s (%s)", model.self.Username, model.self.UserType))

	panes := lipgloss.JoinVertical(lipgloss.Left,
		model.renderRoomsPane(),
		model.renderNotificationsPane(),
		model.renderWorkoutsPane(),
	)

	var footer strings.Builder
	if model.alert != "" {
		footer.WriteString(alertStyle.Render(model.alert) + "\n")
	}
	footer.WriteString(mutedStyle.Render("tab switch pane · enter open · n new room · d delete workout · r refresh · q quit"))

	return header + "\n" + panes + "\n" + footer.String()
}

func (model *TUIModel) renderRoomsPane() string {
	var b strings.Builder
	b.WriteString(paneTitleStyle.Render("Chat rooms") + "\n")
	if len(model.rooms) == 0 {
		b.WriteString(mutedStyle.Render("No chat rooms yet."))
	}
	for i, room := range model.rooms {
		line := fmt.Sprintf("%s (%d members)", room.Name, len(room.Participants))
		b.WriteString(model.renderRow(paneRooms, i, line))
	}
	return model.paneFrame(paneRooms).Render(b.String())
}

func (model *TUIModel) renderNotificationsPane() string {
	var b strings.Builder
	b.WriteString(paneTitleStyle.Render("Notifications") + "\n")
	if len(model.notifications) == 0 {
		b.WriteString(mutedStyle.Render("Nothing new."))
	}
	now := nowFn()
	for i, notification := range model.notifications {
		body := notification.Message
		if notification.WorkoutName != "" {
			body = "shared a workout: " + notification.WorkoutName
		}
		line := fmt.Sprintf("%s: %s %s",
			notification.ChatRoomName,
			body,
			timeStyle.Render(FormatTimeAgo(notification.SentAt, now)))
		b.WriteString(model.renderRow(paneNotifications, i, line))
	}
	return model.paneFrame(paneNotifications).Render(b.String())
}

func (model *TUIModel) renderWorkoutsPane() string {
	var b strings.Builder
	b.WriteString(paneTitleStyle.Render("Workouts") + "\n")
	if len(model.workouts) == 0 {
		b.WriteString(mutedStyle.Render("No workouts."))
	}
	for i, workout := range model.workouts {
		b.WriteString(model.renderRow(paneWorkouts, i, workout.Name))
	}
	switch {
	case model.self.UserType == "trainer" && len(model.clients) > 0:
		names := make([]string, 0, len(model.clients))
		for _, client := range model.clients {
			if client.ID != model.self.UserID {
				names = append(names, client.Username)
			}
		}
		b.WriteString("\n" + mutedStyle.Render("Clients: "+strings.Join(names, ", ")))
	case model.self.UserType != "trainer" && len(model.sessions) > 0:
		b.WriteString("\n" + paneTitleStyle.Render("Recent sessions") + "\n")
		sessions := model.sessions
		if len(sessions) > 3 {
			sessions = sessions[len(sessions)-3:]
		}
		for _, session := range sessions {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  %s · %d kcal", session.StartTime, session.CaloriesBurned)) + "\n")
		}
	}
	return model.paneFrame(paneWorkouts).Render(b.String())
}

func (model *TUIModel) renderRow(pane dashPane, index int, line string) string {
	if model.pane == pane && model.cursor == index {
		return cursorStyle.Render("› "+line) + "\n"
	}
	return "  " + line + "\n"
}

func (model *TUIModel) paneFrame(pane dashPane) lipgloss.Style {
	if model.pane == pane {
		return focusedPaneStyle
	}
	return paneStyle
}

func (model *TUIModel) chatView() string {
	name := "Connecting…"
	if model.session != nil {
		if roomName := model.session.RoomName(); roomName != "" {
			name = roomName
		} else {
			name = "Chat room"
		}
	}
	header := titleStyle.Render(name)

	var b strings.Builder
	items := model.feed
	if len(items) > feedWindow {
		items = items[len(items)-feedWindow:]
	}
	for _, item := range items {
		b.WriteString(model.renderFeedItem(item) + "\n")
	}
	feed := paneStyle.Copy().Height(feedWindow).Render(b.String())

	var footer strings.Builder
	if model.pickerOpen {
		footer.WriteString(model.renderWorkoutPicker() + "\n")
	}
	footer.WriteString(model.textInput.View() + "\n")
	if model.alert != "" {
		footer.WriteString(alertStyle.Render(model.alert) + "\n")
	}
	footer.WriteString(mutedStyle.Render("/workout share · ctrl+a accept share · /leave leave · esc back"))

	return header + "\n" + feed + "\n" + footer.String()
}

// renderFeedItem lays out one feed line: own messages hug the right edge,
// other senders the left, and system lines sit centered between them.
func (model *TUIModel) renderFeedItem(item FeedItem) string {
	stamp := timeStyle.Render(item.SentAt.Format("15:04"))
	switch item.Kind {
	case KindWorkout:
		name := ""
		if item.Workout != nil {
			name = item.Workout.Name
		}
		line := fmt.Sprintf("%s %s %s",
			stamp,
			workoutStyle.Render("🏋 "+name),
			mutedStyle.Render("shared by "+model.senderName(item.Sender)))
		if model.isOwn(item.Sender) {
			return ownLineStyle.Render(line)
		}
		return line
	case KindConfirmation, KindLeave, KindSystem:
		return systemCenterStyle.Render(systemLineStyle.Render(item.Content))
	default:
		sender := model.senderName(item.Sender)
		if model.isOwn(item.Sender) {
			line := fmt.Sprintf("%s %s %s", item.Content, ownMessageStyle.Render("‹ you"), stamp)
			return ownLineStyle.Render(line)
		}
		return fmt.Sprintf("%s %s %s", stamp, otherMessageStyle.Render(sender+":"), item.Content)
	}
}

func (model *TUIModel) isOwn(sender string) bool {
	return model.senderName(sender) == model.self.Username
}

func (model *TUIModel) senderName(sender string) string {
	if model.session != nil {
		return model.session.DisplayName(sender)
	}
	return sender
}

func (model *TUIModel) renderWorkoutPicker() string {
	var b strings.Builder
	b.WriteString(paneTitleStyle.Render("Share a workout") + "\n")
	for i, workout := range model.workouts {
		if i == model.pickerIndex {
			b.WriteString(cursorStyle.Render("› "+workout.Name) + "\n")
			continue
		}
		b.WriteString("  " + workout.Name + "\n")
	}
	b.WriteString(mutedStyle.Render("enter to share · esc to cancel"))
	return paneStyle.Render(b.String())
}
