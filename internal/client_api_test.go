package internal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoginReturnsAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/token/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, map[string]any{
			"access": "jwt-token", "refresh": "r",
			"user_id": 7, "username": "sam", "user_type": "trainer",
		})
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "")
	account, err := client.Login(context.Background(), "sam", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if account.UserID != 7 || account.Username != "sam" || account.UserType != "trainer" {
		t.Fatalf("unexpected account: %+v", account)
	}
	if client.Token != "jwt-token" {
		t.Fatalf("token = %q", client.Token)
	}
}

func TestLoginRejectsMissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"refresh": "only"})
	}))
	defer server.Close()

	if _, err := NewAPIClient(server.URL, "").Login(context.Background(), "sam", "x"); err == nil {
		t.Fatal("expected error for response without access token")
	}
}

func TestRequestsCarryBearerToken(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		writeJSON(w, []map[string]any{})
	}))
	defer server.Close()

	if _, err := NewAPIClient(server.URL, "jwt-token").ChatRooms(context.Background()); err != nil {
		t.Fatalf("ChatRooms: %v", err)
	}
	if got != "Bearer jwt-token" {
		t.Fatalf("authorization header = %q", got)
	}
}

func TestUnauthorizedIsSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewAPIClient(server.URL, "expired").Notifications(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestServerErrorMessageExtraction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]any{"error": "name already taken"})
	}))
	defer server.Close()

	err := NewAPIClient(server.URL, "tok").CreateChatRoom(context.Background(), "dup", []int64{7})
	if err == nil || !strings.Contains(err.Error(), "name already taken") {
		t.Fatalf("err = %v, want the server message", err)
	}
}

func TestNotificationsMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{
			"id": 9, "sender": 5, "chat_room_id": 2, "chat_room_name": "PT with Amy",
			"date_sent": "2024-05-01T11:00:00Z", "message": "new message",
			"workout_message": map[string]any{"name": "Leg day"},
		}})
	}))
	defer server.Close()

	notifications, err := NewAPIClient(server.URL, "tok").Notifications(context.Background())
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("len = %d, want 1", len(notifications))
	}
	n := notifications[0]
	if n.ID != 9 || n.ChatRoomID != 2 || n.WorkoutName != "Leg day" {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestHTTPBaseFromWS(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ws://localhost:8000", "http://localhost:8000"},
		{"wss://gym.example.com/", "https://gym.example.com"},
	}
	for _, tc := range cases {
		got, err := HTTPBaseFromWS(tc.in)
		if err != nil {
			t.Fatalf("HTTPBaseFromWS(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("HTTPBaseFromWS(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if _, err := HTTPBaseFromWS("https://already-http"); err == nil {
		t.Fatal("expected error for non-websocket scheme")
	}
}
