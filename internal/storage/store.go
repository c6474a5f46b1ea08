package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5000

// Store wraps the SQLite handle backing the client's local state: the
// persisted auth session and an offline cache of room feeds, so a rejoined
// room renders instantly before the REST fetches resolve.
type Store struct {
	db *sql.DB
}

// Session is the persisted login: the single source of identity for the
// whole client instead of scattered ad hoc reads.
type Session struct {
	UserID     int64
	Username   string
	UserType   string
	Token      string
	PTChatroom int64
	SavedAt    time.Time
}

// CachedMessage is one locally cached feed entry for a room.
type CachedMessage struct {
	RoomID      int64
	Kind        int
	Sender      string
	Content     string
	WorkoutID   int64
	WorkoutName string
	SentAt      time.Time
}

// CachedNotification is one locally cached notification, keyed by backend id.
type CachedNotification struct {
	ID           int64
	Sender       int64
	ChatRoomID   int64
	ChatRoomName string
	SentAt       time.Time
	Message      string
	WorkoutName  string
}

// ErrNoSession is returned when no login has been persisted.
var ErrNoSession = errors.New("no stored session")

// NewStore initializes the SQLite database at the provided path. Call Close
// when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "gymchat.db"
	}
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d&_pragma=foreign_keys=ON", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS session (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			user_id INTEGER NOT NULL,
			username TEXT NOT NULL,
			user_type TEXT NOT NULL,
			token TEXT NOT NULL,
			pt_chatroom INTEGER NOT NULL DEFAULT 0,
			saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS cached_messages (
			room_id INTEGER NOT NULL,
			kind INTEGER NOT NULL,
			sender TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			workout_id INTEGER NOT NULL DEFAULT 0,
			workout_name TEXT NOT NULL DEFAULT '',
			sent_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cached_messages_room
			ON cached_messages(room_id, sent_at);`,
		`CREATE TABLE IF NOT EXISTS cached_notifications (
			id INTEGER PRIMARY KEY,
			sender INTEGER NOT NULL,
			chat_room_id INTEGER NOT NULL,
			chat_room_name TEXT NOT NULL DEFAULT '',
			sent_at DATETIME NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			workout_name TEXT NOT NULL DEFAULT ''
		);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveSession persists the login, replacing any previous one.
func (s *Store) SaveSession(ctx context.Context, session Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session(id, user_id, username, user_type, token, pt_chatroom, saved_at)
		VALUES(1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			username = excluded.username,
			user_type = excluded.user_type,
			token = excluded.token,
			pt_chatroom = excluded.pt_chatroom,
			saved_at = CURRENT_TIMESTAMP
	`, session.UserID, session.Username, session.UserType, session.Token, session.PTChatroom)
	return err
}

// GetSession returns the persisted login, or ErrNoSession.
func (s *Store) GetSession(ctx context.Context) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, username, user_type, token, pt_chatroom, saved_at FROM session WHERE id = 1
	`)
	var session Session
	if err := row.Scan(&session.UserID, &session.Username, &session.UserType, &session.Token, &session.PTChatroom, &session.SavedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	return &session, nil
}

// ClearSession removes the persisted login (logout).
func (s *Store) ClearSession(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE id = 1`)
	return err
}

// ReplaceRoomCache swaps the cached feed for a room in one transaction.
func (s *Store) ReplaceRoomCache(ctx context.Context, roomID int64, messages []CachedMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM cached_messages WHERE room_id = ?`, roomID); err != nil {
		return err
	}
	for _, msg := range messages {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO cached_messages(room_id, kind, sender, content, workout_id, workout_name, sent_at)
			VALUES(?, ?, ?, ?, ?, ?, ?)
		`, roomID, msg.Kind, msg.Sender, msg.Content, msg.WorkoutID, msg.WorkoutName, msg.SentAt.UTC()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RoomCache returns the cached feed for a room ordered by sent-at ascending.
func (s *Store) RoomCache(ctx context.Context, roomID int64) ([]CachedMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id, kind, sender, content, workout_id, workout_name, sent_at
		FROM cached_messages
		WHERE room_id = ?
		ORDER BY sent_at ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []CachedMessage
	for rows.Next() {
		var msg CachedMessage
		if err := rows.Scan(&msg.RoomID, &msg.Kind, &msg.Sender, &msg.Content, &msg.WorkoutID, &msg.WorkoutName, &msg.SentAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ReplaceNotificationCache swaps the cached notification backlog.
func (s *Store) ReplaceNotificationCache(ctx context.Context, notifications []CachedNotification) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM cached_notifications`); err != nil {
		return err
	}
	for _, n := range notifications {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO cached_notifications(id, sender, chat_room_id, chat_room_name, sent_at, message, workout_name)
			VALUES(?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, n.ID, n.Sender, n.ChatRoomID, n.ChatRoomName, n.SentAt.UTC(), n.Message, n.WorkoutName); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// NotificationCache returns the cached backlog, newest first.
func (s *Store) NotificationCache(ctx context.Context) ([]CachedNotification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, chat_room_id, chat_room_name, sent_at, message, workout_name
		FROM cached_notifications
		ORDER BY sent_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []CachedNotification
	for rows.Next() {
		var n CachedNotification
		if err := rows.Scan(&n.ID, &n.Sender, &n.ChatRoomID, &n.ChatRoomName, &n.SentAt, &n.Message, &n.WorkoutName); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// DropRoomCache removes a room's cached feed, used after leaving a room.
func (s *Store) DropRoomCache(ctx context.Context, roomID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cached_messages WHERE room_id = ?`, roomID)
	return err
}
