package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keepmind9/slackline/internal/chat"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	mention_name TEXT NOT NULL DEFAULT '',
	metadata     TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS users_mention_name ON users (mention_name);
CREATE TABLE IF NOT EXISTS rooms (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '{}'
);`

// SQLiteStore persists users and rooms in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the database at path; ":memory:" is allowed
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store requires a path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) FindUserByID(id string) (*chat.User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, name, mention_name, metadata FROM users WHERE id = ?`, id))
}

func (s *SQLiteStore) FindUserByMentionName(name string) (*chat.User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, name, mention_name, metadata FROM users WHERE mention_name = ? LIMIT 1`, name))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*chat.User, error) {
	var u chat.User
	var meta string
	if err := row.Scan(&u.ID, &u.Name, &u.MentionName, &meta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	if err := decodeMetadata(meta, &u.Metadata); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) SaveUser(user *chat.User) error {
	meta, err := encodeMetadata(user.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
INSERT INTO users (id, name, mention_name, metadata) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	mention_name = excluded.mention_name,
	metadata = excluded.metadata`,
		user.ID, user.Name, user.MentionName, meta)
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", user.ID, err)
	}
	return nil
}

func (s *SQLiteStore) FindRoomByID(id string) (*chat.Room, error) {
	var r chat.Room
	var meta string
	err := s.db.QueryRow(`SELECT id, name, metadata FROM rooms WHERE id = ?`, id).
		Scan(&r.ID, &r.Name, &meta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read room: %w", err)
	}
	if err := decodeMetadata(meta, &r.Metadata); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) SaveRoom(room *chat.Room) error {
	meta, err := encodeMetadata(room.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
INSERT INTO rooms (id, name, metadata) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	metadata = excluded.metadata`,
		room.ID, room.Name, meta)
	if err != nil {
		return fmt.Errorf("failed to save room %s: %w", room.ID, err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(raw string, out *map[string]any) error {
	if raw == "" || raw == "{}" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to decode metadata: %w", err)
	}
	return nil
}
