package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestBuildRoomURL(t *testing.T) {
	got, err := buildRoomURL("ws://localhost:8000", 5, "jwt-token")
	if err != nil {
		t.Fatalf("buildRoomURL: %v", err)
	}
	want := "ws://localhost:8000/chat/5/?token=jwt-token"
	if got != want {
		t.Fatalf("url = %q, want %q", got, want)
	}
}

func TestBuildRoomURLTrimsBasePath(t *testing.T) {
	got, err := buildRoomURL("wss://gym.example.com/ws/", 12, "tok")
	if err != nil {
		t.Fatalf("buildRoomURL: %v", err)
	}
	if got != "wss://gym.example.com/ws/chat/12/?token=tok" {
		t.Fatalf("url = %q", got)
	}
}

func TestBuildRoomURLRejectsBadInput(t *testing.T) {
	if _, err := buildRoomURL("ws://localhost:8000", 0, "tok"); err == nil {
		t.Fatal("expected error for room id 0")
	}
	if _, err := buildRoomURL("ws://localhost:8000", -3, "tok"); err == nil {
		t.Fatal("expected error for negative room id")
	}
	if _, err := buildRoomURL("http://localhost:8000", 5, "tok"); err == nil {
		t.Fatal("expected error for non-websocket scheme")
	}
}

func TestRoomDialerHandshake(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotPath, gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conn.Close()
	}))
	defer server.Close()

	wsBase := "ws" + strings.TrimPrefix(server.URL, "http")
	dial := NewRoomDialer(wsBase, "jwt-token")
	conn, err := dial(context.Background(), 5)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if gotPath != "/chat/5/" {
		t.Fatalf("path = %q, want %q", gotPath, "/chat/5/")
	}
	if gotToken != "jwt-token" {
		t.Fatalf("token = %q, want %q", gotToken, "jwt-token")
	}
}

func TestRoomDialerRejectsInvalidRoom(t *testing.T) {
	dial := NewRoomDialer("ws://localhost:8000", "tok")
	if _, err := dial(context.Background(), 0); err == nil {
		t.Fatal("expected error for invalid room id")
	}
}
