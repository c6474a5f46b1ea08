package internal

import (
	"testing"
	"time"
)

var frameNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestDecodeFrameMessage(t *testing.T) {
	payload := []byte(`{"type":"message","content":"see you at 6","sender":"coach_amy","date_sent":"2024-05-01T11:58:00Z"}`)
	frame, err := DecodeFrame(payload, frameNow)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Kind != FrameMessage {
		t.Fatalf("kind = %d, want FrameMessage", frame.Kind)
	}
	if frame.Item.Content != "see you at 6" || frame.Item.Sender != "coach_amy" {
		t.Fatalf("unexpected item: %+v", frame.Item)
	}
	want := time.Date(2024, 5, 1, 11, 58, 0, 0, time.UTC)
	if !frame.Item.SentAt.Equal(want) {
		t.Fatalf("sent at = %v, want %v", frame.Item.SentAt, want)
	}
}

func TestDecodeFrameNumericSender(t *testing.T) {
	payload := []byte(`{"type":"message","content":"hi","sender":42}`)
	frame, err := DecodeFrame(payload, frameNow)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Item.Sender != "42" {
		t.Fatalf("sender = %q, want %q", frame.Item.Sender, "42")
	}
	if !frame.Item.SentAt.Equal(frameNow) {
		t.Fatalf("missing timestamp should fall back to now, got %v", frame.Item.SentAt)
	}
}

func TestDecodeFrameWorkout(t *testing.T) {
	payload := []byte(`{"type":"workout","sender":"7","workout":{"id":3,"owners":[7],"name":"Leg day","date_sent":"2024-05-01T10:00:00Z"}}`)
	frame, err := DecodeFrame(payload, frameNow)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Kind != FrameWorkout {
		t.Fatalf("kind = %d, want FrameWorkout", frame.Kind)
	}
	if frame.Item.Workout == nil || frame.Item.Workout.Name != "Leg day" || frame.Item.Workout.ID != 3 {
		t.Fatalf("unexpected workout: %+v", frame.Item.Workout)
	}
	if !frame.Item.Workout.OwnedBy(7) {
		t.Fatal("owner 7 not recognized")
	}
	if frame.Item.Workout.OwnedBy(8) {
		t.Fatal("non-owner 8 recognized")
	}
}

func TestDecodeFrameWorkoutMissingBody(t *testing.T) {
	if _, err := DecodeFrame([]byte(`{"type":"workout","sender":"7"}`), frameNow); err == nil {
		t.Fatal("expected error for workout frame without body")
	}
}

func TestDecodeFrameConfirmation(t *testing.T) {
	payload := []byte(`{"type":"confirmation","added_to_workout":"sam","workout":{"name":"Leg day"}}`)
	frame, err := DecodeFrame(payload, frameNow)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Kind != FrameConfirmation {
		t.Fatalf("kind = %d, want FrameConfirmation", frame.Kind)
	}
	want := "sam has accepted the workout: Leg day"
	if frame.Item.Content != want {
		t.Fatalf("content = %q, want %q", frame.Item.Content, want)
	}
}

func TestDecodeFrameLeave(t *testing.T) {
	payload := []byte(`{"type":"leave","left_the_group_chat":"sam"}`)
	frame, err := DecodeFrame(payload, frameNow)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Kind != FrameLeave {
		t.Fatalf("kind = %d, want FrameLeave", frame.Kind)
	}
	if frame.Item.Content != "sam has left the chat room" {
		t.Fatalf("content = %q", frame.Item.Content)
	}
}

func TestDecodeFrameNotification(t *testing.T) {
	payload := []byte(`{"type":"notification","id":9,"sender":5,"chat_room_id":2,"chat_room_name":"PT with Amy","date_sent":"2024-05-01T11:00:00Z","message":"new message","workout_message":{"name":"Leg day"}}`)
	frame, err := DecodeFrame(payload, frameNow)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Kind != FrameNotification {
		t.Fatalf("kind = %d, want FrameNotification", frame.Kind)
	}
	n := frame.Notification
	if n.ID != 9 || n.Sender != 5 || n.ChatRoomID != 2 || n.ChatRoomName != "PT with Amy" || n.WorkoutName != "Leg day" {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestDecodeFrameUnknownType(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"type":"presence"}`), frameNow)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Kind != FrameUnknown {
		t.Fatalf("kind = %d, want FrameUnknown", frame.Kind)
	}
}

func TestDecodeFrameBadJSON(t *testing.T) {
	if _, err := DecodeFrame([]byte(`{`), frameNow); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestMergeFeedOrdersAscending(t *testing.T) {
	at := func(minute int) time.Time {
		return frameNow.Add(time.Duration(minute) * time.Minute)
	}
	texts := []FeedItem{
		{Kind: KindText, Content: "third", SentAt: at(3)},
		{Kind: KindText, Content: "first", SentAt: at(1)},
	}
	shares := []FeedItem{
		{Kind: KindWorkout, Content: "second", SentAt: at(2)},
	}

	merged := MergeFeed(texts, shares)
	if len(merged) != 3 {
		t.Fatalf("len = %d, want 3", len(merged))
	}
	for i, want := range []string{"first", "second", "third"} {
		if merged[i].Content != want {
			t.Fatalf("merged[%d] = %q, want %q", i, merged[i].Content, want)
		}
	}
}

func TestMergeFeedStableOnTies(t *testing.T) {
	tie := frameNow
	merged := MergeFeed(
		[]FeedItem{{Content: "a", SentAt: tie}, {Content: "b", SentAt: tie}},
		[]FeedItem{{Content: "c", SentAt: tie}},
	)
	for i, want := range []string{"a", "b", "c"} {
		if merged[i].Content != want {
			t.Fatalf("tie order broken at %d: got %q, want %q", i, merged[i].Content, want)
		}
	}
}
