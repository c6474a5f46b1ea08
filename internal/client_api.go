package internal

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
)

var httpTimeout = 5 * time.Second

// nowFn is swapped out in tests that need deterministic timestamps.
var nowFn = time.Now

// ErrUnauthorized is returned when the backend rejects the bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// APIClient wraps the gym-coaching REST backend. It is a client of, not an
// owner of, the resources it touches: all mutations happen server side.
type APIClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewAPIClient builds a client for the given base URL. The token may be set
// later, after login.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: httpTimeout},
	}
}

// User is a chat participant as the backend serializes it.
type User struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Profile  *Profile `json:"profile,omitempty"`
}

// Profile carries the role-specific fields the leave guard needs.
type Profile struct {
	PTChatroom int64 `json:"pt_chatroom"`
}

// ChatRoom is a room resource. Created and deleted via REST only.
type ChatRoom struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Participants []User `json:"participants"`
}

// Workout is a workout template the user owns and may share into a room.
type Workout struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// WorkoutSession is one performed workout shown on the dashboard feed.
type WorkoutSession struct {
	ID             int64  `json:"id"`
	Workout        int64  `json:"workout"`
	StartTime      string `json:"start_time"`
	CaloriesBurned int64  `json:"calories_burned"`
}

type storedMessage struct {
	ID       int64  `json:"id"`
	Sender   flexID `json:"sender"`
	Content  string `json:"content"`
	DateSent string `json:"date_sent"`
}

type storedWorkoutMessage struct {
	ID       int64          `json:"id"`
	Sender   flexID         `json:"sender"`
	DateSent string         `json:"date_sent"`
	Workout  workoutPayload `json:"workout"`
}

type notificationResource struct {
	ID             int64  `json:"id"`
	Sender         int64  `json:"sender"`
	ChatRoomID     int64  `json:"chat_room_id"`
	ChatRoomName   string `json:"chat_room_name"`
	DateSent       string `json:"date_sent"`
	Message        string `json:"message"`
	WorkoutMessage *struct {
		Name string `json:"name"`
	} `json:"workout_message"`
}

type tokenResponse struct {
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	UserType string `json:"user_type"`
}

// Login exchanges credentials for a bearer token and stores it on the client.
// The token endpoint also serializes the identity fields, so the returned
// Account is usable immediately. Token refresh stays an external concern.
func (c *APIClient) Login(ctx context.Context, username, password string) (Account, error) {
	payload := map[string]string{"username": username, "password": password}
	var resp tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/token/", payload, &resp); err != nil {
		return Account{}, err
	}
	if resp.Access == "" {
		return Account{}, errors.New("login response missing access token")
	}
	c.Token = resp.Access
	account := Account{
		UserID:   resp.UserID,
		Username: username,
		UserType: resp.UserType,
		Token:    resp.Access,
	}
	if resp.Username != "" {
		account.Username = resp.Username
	}
	if account.UserType == "" {
		account.UserType = "user"
	}
	return account, nil
}

// ChatRooms lists every room the authenticated user participates in.
func (c *APIClient) ChatRooms(ctx context.Context) ([]ChatRoom, error) {
	var rooms []ChatRoom
	err := c.doJSON(ctx, http.MethodGet, "/chat/", nil, &rooms)
	return rooms, err
}

// GetChatRoom fetches one room's metadata (name, participants).
func (c *APIClient) GetChatRoom(ctx context.Context, roomID int64) (*ChatRoom, error) {
	var room ChatRoom
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/chat/%d/", roomID), nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// CreateChatRoom creates a room with the given participants. The caller is
// expected to include their own id.
func (c *APIClient) CreateChatRoom(ctx context.Context, name string, participantIDs []int64) error {
	payload := map[string]any{"name": name, "participants": participantIDs}
	return c.doJSON(ctx, http.MethodPost, "/chat/create/", payload, nil)
}

// DeleteChatRoom deletes a room.
func (c *APIClient) DeleteChatRoom(ctx context.Context, roomID int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/chat/delete/%d/", roomID), nil, nil)
}

// Participants lists a room's members.
func (c *APIClient) Participants(ctx context.Context, roomID int64) ([]User, error) {
	var users []User
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/chat/%d/participants/", roomID), nil, &users)
	return users, err
}

// Messages fetches a room's prior text messages as feed items.
func (c *APIClient) Messages(ctx context.Context, roomID int64) ([]FeedItem, error) {
	var stored []storedMessage
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/chat/%d/messages/", roomID), nil, &stored); err != nil {
		return nil, err
	}
	items := make([]FeedItem, 0, len(stored))
	for _, msg := range stored {
		items = append(items, FeedItem{
			Kind:    KindText,
			Content: msg.Content,
			Sender:  msg.Sender.String(),
			SentAt:  parseSentAt(msg.DateSent, time.Now()),
		})
	}
	return items, nil
}

// WorkoutMessages fetches a room's prior workout shares as feed items.
func (c *APIClient) WorkoutMessages(ctx context.Context, roomID int64) ([]FeedItem, error) {
	var stored []storedWorkoutMessage
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/chat/%d/workout_messages/", roomID), nil, &stored); err != nil {
		return nil, err
	}
	items := make([]FeedItem, 0, len(stored))
	for _, msg := range stored {
		items = append(items, FeedItem{
			Kind:   KindWorkout,
			Sender: msg.Sender.String(),
			SentAt: parseSentAt(msg.DateSent, time.Now()),
			Workout: &WorkoutShare{
				ID:     msg.Workout.ID,
				Owners: msg.Workout.Owners,
				Name:   msg.Workout.Name,
			},
		})
	}
	return items, nil
}

// Workouts lists the authenticated user's workout templates.
func (c *APIClient) Workouts(ctx context.Context) ([]Workout, error) {
	var workouts []Workout
	err := c.doJSON(ctx, http.MethodGet, "/workout/", nil, &workouts)
	return workouts, err
}

// DeleteWorkout deletes a workout template.
func (c *APIClient) DeleteWorkout(ctx context.Context, workoutID int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/workout/delete/%d/", workoutID), nil, nil)
}

// WorkoutSessions lists the user's performed sessions for the dashboard feed.
func (c *APIClient) WorkoutSessions(ctx context.Context) ([]WorkoutSession, error) {
	var sessions []WorkoutSession
	err := c.doJSON(ctx, http.MethodGet, "/workout_session/", nil, &sessions)
	return sessions, err
}

// Notifications lists the user's raw (undeduplicated) notifications.
func (c *APIClient) Notifications(ctx context.Context) ([]Notification, error) {
	var stored []notificationResource
	if err := c.doJSON(ctx, http.MethodGet, "/notification/", nil, &stored); err != nil {
		return nil, err
	}
	notifications := make([]Notification, 0, len(stored))
	for _, n := range stored {
		workoutName := ""
		if n.WorkoutMessage != nil {
			workoutName = n.WorkoutMessage.Name
		}
		notifications = append(notifications, Notification{
			ID:           n.ID,
			Sender:       n.Sender,
			ChatRoomID:   n.ChatRoomID,
			ChatRoomName: n.ChatRoomName,
			SentAt:       parseSentAt(n.DateSent, time.Now()),
			Message:      n.Message,
			WorkoutName:  workoutName,
		})
	}
	return notifications, nil
}

// DeleteNotification deletes one notification belonging to the current user.
func (c *APIClient) DeleteNotification(ctx context.Context, notificationID int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/notification/delete/%d/", notificationID), nil, nil)
}

// Users lists all users, used when picking chat room participants.
func (c *APIClient) Users(ctx context.Context) ([]User, error) {
	var users []User
	err := c.doJSON(ctx, http.MethodGet, "/user/", nil, &users)
	return users, err
}

// GetUser fetches one user with profile, used by the trainer leave guard.
func (c *APIClient) GetUser(ctx context.Context, userID int64) (*User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/user/%d/", userID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *APIClient) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, readResponseError(resp.Body))
	}
	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// readResponseError pulls a human-readable message out of an error body. The
// backend returns either {"error": "..."} or DRF-style field maps.
func readResponseError(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return "request failed"
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err == nil {
		if msg, ok := parsed["error"].(string); ok {
			return msg
		}
		if msg, ok := parsed["detail"].(string); ok {
			return msg
		}
		var fields []string
		for field, value := range parsed {
			fields = append(fields, fmt.Sprintf("%s: %v", field, value))
		}
		if len(fields) > 0 {
			return strings.Join(fields, "; ")
		}
	}
	return strings.TrimSpace(string(data))
}

// HTTPBaseFromWS derives the REST base URL from a websocket base, for setups
// where only the ws endpoint is configured.
func HTTPBaseFromWS(wsBase string) (string, error) {
	parsed, err := url.Parse(wsBase)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "ws":
		parsed.Scheme = "http"
	case "wss":
		parsed.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported scheme %s", parsed.Scheme)
	}
	parsed.Path = ""
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return strings.TrimRight(parsed.String(), "/"), nil
}
