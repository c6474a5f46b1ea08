package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store
}

func TestSessionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetSession(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}

	if err := store.SaveSession(ctx, Session{
		UserID: 7, Username: "sam", UserType: "user", Token: "jwt-a", PTChatroom: 2,
	}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	session, err := store.GetSession(ctx)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.UserID != 7 || session.Username != "sam" || session.Token != "jwt-a" || session.PTChatroom != 2 {
		t.Fatalf("unexpected session: %+v", session)
	}

	// a second save replaces, never duplicates
	if err := store.SaveSession(ctx, Session{
		UserID: 9, Username: "amy", UserType: "trainer", Token: "jwt-b",
	}); err != nil {
		t.Fatalf("second SaveSession: %v", err)
	}
	session, err = store.GetSession(ctx)
	if err != nil {
		t.Fatalf("GetSession after replace: %v", err)
	}
	if session.UserID != 9 || session.Token != "jwt-b" {
		t.Fatalf("session not replaced: %+v", session)
	}

	if err := store.ClearSession(ctx); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if _, err := store.GetSession(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err after clear = %v, want ErrNoSession", err)
	}
}

func TestRoomCacheRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	messages := []CachedMessage{
		{RoomID: 5, Kind: 0, Sender: "amy", Content: "welcome", SentAt: base.Add(time.Minute)},
		{RoomID: 5, Kind: 1, Sender: "amy", WorkoutID: 3, WorkoutName: "Leg day", SentAt: base},
	}
	if err := store.ReplaceRoomCache(ctx, 5, messages); err != nil {
		t.Fatalf("ReplaceRoomCache: %v", err)
	}

	cached, err := store.RoomCache(ctx, 5)
	if err != nil {
		t.Fatalf("RoomCache: %v", err)
	}
	if len(cached) != 2 {
		t.Fatalf("len = %d, want 2", len(cached))
	}
	// ordered ascending by sent-at, so the workout share comes first
	if cached[0].WorkoutName != "Leg day" || cached[1].Content != "welcome" {
		t.Fatalf("unexpected order: %+v", cached)
	}

	// replace swaps the whole feed
	if err := store.ReplaceRoomCache(ctx, 5, messages[:1]); err != nil {
		t.Fatalf("second ReplaceRoomCache: %v", err)
	}
	cached, err = store.RoomCache(ctx, 5)
	if err != nil {
		t.Fatalf("RoomCache after replace: %v", err)
	}
	if len(cached) != 1 || cached[0].Content != "welcome" {
		t.Fatalf("replace did not swap: %+v", cached)
	}
}

func TestNotificationCacheRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	backlog := []CachedNotification{
		{ID: 1, Sender: 9, ChatRoomID: 5, ChatRoomName: "PT with Amy", SentAt: base, Message: "new message"},
		{ID: 2, Sender: 9, ChatRoomID: 5, ChatRoomName: "PT with Amy", SentAt: base.Add(time.Minute), WorkoutName: "Leg day"},
	}
	if err := store.ReplaceNotificationCache(ctx, backlog); err != nil {
		t.Fatalf("ReplaceNotificationCache: %v", err)
	}

	cached, err := store.NotificationCache(ctx)
	if err != nil {
		t.Fatalf("NotificationCache: %v", err)
	}
	if len(cached) != 2 {
		t.Fatalf("len = %d, want 2", len(cached))
	}
	// newest first
	if cached[0].ID != 2 || cached[0].WorkoutName != "Leg day" || cached[1].Message != "new message" {
		t.Fatalf("unexpected order: %+v", cached)
	}

	if err := store.ReplaceNotificationCache(ctx, backlog[:1]); err != nil {
		t.Fatalf("second ReplaceNotificationCache: %v", err)
	}
	cached, err = store.NotificationCache(ctx)
	if err != nil {
		t.Fatalf("NotificationCache after replace: %v", err)
	}
	if len(cached) != 1 || cached[0].ID != 1 {
		t.Fatalf("replace did not swap: %+v", cached)
	}
}

func TestRoomCacheIsolatedPerRoom(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.ReplaceRoomCache(ctx, 1, []CachedMessage{{RoomID: 1, Sender: "a", Content: "one", SentAt: now}}); err != nil {
		t.Fatalf("cache room 1: %v", err)
	}
	if err := store.ReplaceRoomCache(ctx, 2, []CachedMessage{{RoomID: 2, Sender: "b", Content: "two", SentAt: now}}); err != nil {
		t.Fatalf("cache room 2: %v", err)
	}

	if err := store.DropRoomCache(ctx, 1); err != nil {
		t.Fatalf("DropRoomCache: %v", err)
	}
	gone, err := store.RoomCache(ctx, 1)
	if err != nil {
		t.Fatalf("RoomCache(1): %v", err)
	}
	if len(gone) != 0 {
		t.Fatalf("room 1 cache not dropped: %+v", gone)
	}
	kept, err := store.RoomCache(ctx, 2)
	if err != nil {
		t.Fatalf("RoomCache(2): %v", err)
	}
	if len(kept) != 1 || kept[0].Content != "two" {
		t.Fatalf("room 2 cache affected: %+v", kept)
	}
}
