package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// FeedKind tags one entry in a room's merged message feed.
type FeedKind int

const (
	KindText FeedKind = iota
	KindWorkout
	KindConfirmation
	KindLeave
	KindSystem
)

// FeedItem is one rendered line of a room feed: a text message, a shared
// workout, or a system line (confirmation/leave). Items are immutable once
// received and ordered by SentAt ascending.
type FeedItem struct {
	Kind    FeedKind
	Content string
	Sender  string
	SentAt  time.Time
	Workout *WorkoutShare
}

// WorkoutShare is the workout variant of a chat message. Accepting it adds
// the current user to the owner list via the backend, never locally.
type WorkoutShare struct {
	ID     int64
	Owners []int64
	Name   string
}

// OwnedBy reports whether userID already appears in the owner list.
func (w WorkoutShare) OwnedBy(userID int64) bool {
	for _, owner := range w.Owners {
		if owner == userID {
			return true
		}
	}
	return false
}

// Notification is an out-of-room alert delivered on a background connection.
type Notification struct {
	ID           int64
	Sender       int64
	ChatRoomID   int64
	ChatRoomName string
	SentAt       time.Time
	Message      string
	WorkoutName  string
}

// FrameKind is the type discriminator of one websocket payload.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameMessage
	FrameWorkout
	FrameConfirmation
	FrameLeave
	FrameNotification
)

// Frame is one classified inbound payload. Item is set for the four room
// frame kinds, Notification only for FrameNotification.
type Frame struct {
	Kind         FrameKind
	Item         FeedItem
	Notification Notification
}

// flexID tolerates the backend sending ids either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func (f flexID) String() string { return string(f) }

func (f flexID) Int64() int64 {
	n, _ := strconv.ParseInt(string(f), 10, 64)
	return n
}

type workoutPayload struct {
	ID       int64   `json:"id"`
	Owners   []int64 `json:"owners"`
	Name     string  `json:"name"`
	DateSent string  `json:"date_sent"`
}

type inboundFrame struct {
	Type           string          `json:"type"`
	Content        string          `json:"content"`
	Sender         flexID          `json:"sender"`
	DateSent       string          `json:"date_sent"`
	Workout        *workoutPayload `json:"workout"`
	AddedToWorkout string          `json:"added_to_workout"`
	LeftTheChat    string          `json:"left_the_group_chat"`

	// notification fields
	ID             int64  `json:"id"`
	ChatRoomID     int64  `json:"chat_room_id"`
	ChatRoomName   string `json:"chat_room_name"`
	Message        string `json:"message"`
	WorkoutMessage *struct {
		Name string `json:"name"`
	} `json:"workout_message"`
}

// DecodeFrame classifies one inbound payload by its type discriminator.
// Missing timestamps fall back to now, matching what the browser clients did.
func DecodeFrame(payload []byte, now time.Time) (Frame, error) {
	var raw inboundFrame
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}

	sentAt := parseSentAt(raw.DateSent, now)

	switch raw.Type {
	case "message":
		return Frame{Kind: FrameMessage, Item: FeedItem{
			Kind:    KindText,
			Content: raw.Content,
			Sender:  raw.Sender.String(),
			SentAt:  sentAt,
		}}, nil
	case "workout":
		if raw.Workout == nil {
			return Frame{}, fmt.Errorf("workout frame without workout body")
		}
		if raw.Workout.DateSent != "" {
			sentAt = parseSentAt(raw.Workout.DateSent, now)
		}
		return Frame{Kind: FrameWorkout, Item: FeedItem{
			Kind:   KindWorkout,
			Sender: raw.Sender.String(),
			SentAt: sentAt,
			Workout: &WorkoutShare{
				ID:     raw.Workout.ID,
				Owners: raw.Workout.Owners,
				Name:   raw.Workout.Name,
			},
		}}, nil
	case "confirmation":
		name := ""
		if raw.Workout != nil {
			name = raw.Workout.Name
		}
		return Frame{Kind: FrameConfirmation, Item: FeedItem{
			Kind:    KindConfirmation,
			Content: fmt.Sprintf("%s has accepted the workout: %s", raw.AddedToWorkout, name),
			Sender:  raw.AddedToWorkout,
			SentAt:  sentAt,
		}}, nil
	case "leave":
		return Frame{Kind: FrameLeave, Item: FeedItem{
			Kind:    KindLeave,
			Content: fmt.Sprintf("%s has left the chat room", raw.LeftTheChat),
			Sender:  raw.LeftTheChat,
			SentAt:  sentAt,
		}}, nil
	case "notification":
		workoutName := ""
		if raw.WorkoutMessage != nil {
			workoutName = raw.WorkoutMessage.Name
		}
		return Frame{Kind: FrameNotification, Notification: Notification{
			ID:           raw.ID,
			Sender:       raw.Sender.Int64(),
			ChatRoomID:   raw.ChatRoomID,
			ChatRoomName: raw.ChatRoomName,
			SentAt:       sentAt,
			Message:      raw.Message,
			WorkoutName:  workoutName,
		}}, nil
	default:
		return Frame{Kind: FrameUnknown}, nil
	}
}

func parseSentAt(value string, now time.Time) time.Time {
	if value == "" {
		return now
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return now
}

// MergeFeed combines REST-fetched history and live items into one feed sorted
// ascending by sent-at. The sort is stable so simultaneous timestamps keep
// arrival order.
func MergeFeed(parts ...[]FeedItem) []FeedItem {
	var merged []FeedItem
	for _, part := range parts {
		merged = append(merged, part...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].SentAt.Before(merged[j].SentAt)
	})
	return merged
}

// outbound frames, matching the backend consumer contract

type outboundText struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type outboundWorkout struct {
	Type    string  `json:"type"`
	Workout Workout `json:"workout"`
}

type outboundConfirmation struct {
	Type      string `json:"type"`
	WorkoutID int64  `json:"workout_id"`
	UserID    int64  `json:"user_id"`
	Message   string `json:"message"`
}

type outboundLeave struct {
	Type    string `json:"type"`
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
}
