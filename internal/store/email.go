package store

import (
	"strings"
	"sync"

	"github.com/keepmind9/slackline/internal/chat"
)

// EmailIndex wraps a UserStore and keeps an email -> user id index current on every save
type EmailIndex struct {
	UserStore

	mu     sync.RWMutex
	byKey  map[string]string
	byUser map[string]string
}

// NewEmailIndex wraps users
func NewEmailIndex(users UserStore) *EmailIndex {
	return &EmailIndex{
		UserStore: users,
		byKey:     make(map[string]string),
		byUser:    make(map[string]string),
	}
}

// SaveUser saves through to the wrapped store, then indexes the email.
// A changed or removed email no longer resolves to the user.
func (e *EmailIndex) SaveUser(user *chat.User) error {
	if err := e.UserStore.SaveUser(user); err != nil {
		return err
	}
	key := strings.ToLower(user.Email())

	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.byUser[user.ID]; ok && old != key && e.byKey[old] == user.ID {
		delete(e.byKey, old)
	}
	if key == "" {
		delete(e.byUser, user.ID)
		return nil
	}
	e.byKey[key] = user.ID
	e.byUser[user.ID] = key
	return nil
}

// FindUserByEmail looks a user up by email address
func (e *EmailIndex) FindUserByEmail(email string) (*chat.User, error) {
	e.mu.RLock()
	id, ok := e.byKey[strings.ToLower(email)]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return e.UserStore.FindUserByID(id)
}
