// Package store holds the persistence collaborators the adapter writes users and rooms to.
package store

import (
	"errors"
	"fmt"

	"github.com/keepmind9/slackline/internal/chat"
)

// ErrNotFound is returned when a lookup misses
var ErrNotFound = errors.New("not found")

// UserStore persists framework users
type UserStore interface {
	FindUserByID(id string) (*chat.User, error)
	FindUserByMentionName(name string) (*chat.User, error)
	SaveUser(user *chat.User) error
}

// RoomStore persists framework rooms
type RoomStore interface {
	FindRoomByID(id string) (*chat.Room, error)
	SaveRoom(room *chat.Room) error
}

// Store is a backend serving both users and rooms
type Store interface {
	UserStore
	RoomStore
	Close() error
}

// Open returns the backend for driver; path is only used by sqlite
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
