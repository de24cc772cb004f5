package store

import (
	"sync"

	"github.com/keepmind9/slackline/internal/chat"
)

// MemoryStore keeps users and rooms in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]chat.User
	rooms map[string]chat.Room
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]chat.User),
		rooms: make(map[string]chat.Room),
	}
}

func (s *MemoryStore) FindUserByID(id string) (*chat.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.Metadata = cloneMetadata(u.Metadata)
	return &u, nil
}

func (s *MemoryStore) FindUserByMentionName(name string) (*chat.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.MentionName == name {
			u.Metadata = cloneMetadata(u.Metadata)
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SaveUser(user *chat.User) error {
	u := *user
	u.Metadata = cloneMetadata(user.Metadata)
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) FindRoomByID(id string) (*chat.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.Metadata = cloneMetadata(r.Metadata)
	return &r, nil
}

func (s *MemoryStore) SaveRoom(room *chat.Room) error {
	r := *room
	r.Metadata = cloneMetadata(room.Metadata)
	s.mu.Lock()
	s.rooms[r.ID] = r
	s.mu.Unlock()
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
