package slack

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/keepmind9/slackline/internal/chat"
	"github.com/keepmind9/slackline/internal/logger"
	"github.com/keepmind9/slackline/internal/slack/api"
	"github.com/keepmind9/slackline/internal/store"
	"github.com/sirupsen/logrus"
)

// UserCreated is the payload of the slack_user_created event
type UserCreated struct {
	User   *chat.User
	Record api.UserRecord
}

// ChannelCreated is the payload of the slack_channel_created event
type ChannelCreated struct {
	Room   *chat.Room
	Record api.ChannelRecord
}

// UserRegistry turns Slack user records into framework users
type UserRegistry struct {
	users store.UserStore
	robot chat.Robot

	mu     sync.RWMutex
	selfID string
}

// NewUserRegistry creates a registry writing to users
func NewUserRegistry(users store.UserStore, robot chat.Robot) *UserRegistry {
	return &UserRegistry{users: users, robot: robot}
}

// SetSelfID records the bot's own user id
func (r *UserRegistry) SetSelfID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selfID = id
}

// SelfID returns the bot's own user id
func (r *UserRegistry) SelfID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selfID
}

// IsSelf reports whether id is the bot's own user id
func (r *UserRegistry) IsSelf(id string) bool {
	self := r.SelfID()
	return self != "" && id == self
}

// Upsert saves rec as a framework user and announces it. When rec is the bot
// itself the robot's identity is updated as well.
func (r *UserRegistry) Upsert(rec api.UserRecord) (*chat.User, error) {
	if rec.ID == "" {
		return nil, errors.New("user record has no id")
	}

	user := &chat.User{
		ID:          rec.ID,
		Name:        rec.DisplayName(),
		MentionName: rec.Name,
		Metadata:    userMetadata(rec),
	}
	if user.MentionName == "" {
		user.MentionName = user.Name
	}
	if err := r.users.SaveUser(user); err != nil {
		return nil, fmt.Errorf("failed to save user %s: %w", rec.ID, err)
	}

	if r.IsSelf(rec.ID) {
		logger.WithFields(logrus.Fields{
			"name":         user.Name,
			"mention_name": user.MentionName,
		}).Debug("updating-robot-identity")
		r.robot.SetIdentity(user.Name, user.MentionName)
	}

	r.robot.Trigger(chat.EventSlackUserCreated, UserCreated{User: user, Record: rec})
	return user, nil
}

// UpsertMany upserts every record and returns all failures together
func (r *UserRegistry) UpsertMany(recs []api.UserRecord) error {
	var result *multierror.Error
	for _, rec := range recs {
		if _, err := r.Upsert(rec); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Find returns a known user without creating one
func (r *UserRegistry) Find(id string) (*chat.User, bool) {
	user, err := r.users.FindUserByID(id)
	if err != nil {
		return nil, false
	}
	return user, true
}

// FindOrCreate returns the user with id, saving a bare user named after the
// id when none is known yet
func (r *UserRegistry) FindOrCreate(id string) (*chat.User, error) {
	if id == "" {
		return nil, errors.New("user id is empty")
	}

	user, err := r.users.FindUserByID(id)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user %s: %w", id, err)
	}

	user = &chat.User{ID: id, Name: id, MentionName: id}
	if err := r.users.SaveUser(user); err != nil {
		return nil, fmt.Errorf("failed to save user %s: %w", id, err)
	}
	return user, nil
}

// userMetadata is the record's profile without empty values, plus its names
func userMetadata(rec api.UserRecord) map[string]any {
	metadata := make(map[string]any, len(rec.Profile)+2)
	for k, v := range rec.Profile {
		if isEmptyValue(v) {
			continue
		}
		metadata[k] = v
	}
	metadata["name"] = rec.DisplayName()
	metadata["mention_name"] = rec.Name
	return metadata
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return val == ""
	case []any:
		for _, item := range val {
			if item != nil {
				return false
			}
		}
		return true
	case map[string]any:
		return len(val) == 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

// RoomRegistry turns Slack channel records into framework rooms
type RoomRegistry struct {
	rooms store.RoomStore
	robot chat.Robot
}

// NewRoomRegistry creates a registry writing to rooms
func NewRoomRegistry(rooms store.RoomStore, robot chat.Robot) *RoomRegistry {
	return &RoomRegistry{rooms: rooms, robot: robot}
}

// Upsert saves rec as a framework room and announces it
func (r *RoomRegistry) Upsert(rec api.ChannelRecord) (*chat.Room, error) {
	if rec.ID == "" {
		return nil, errors.New("channel record has no id")
	}

	metadata := map[string]any{}
	if rec.Created != 0 {
		metadata["created"] = rec.Created
	}
	if rec.Creator != "" {
		metadata["creator"] = rec.Creator
	}

	room := &chat.Room{ID: rec.ID, Name: rec.Name, Metadata: metadata}
	if err := r.rooms.SaveRoom(room); err != nil {
		return nil, fmt.Errorf("failed to save room %s: %w", rec.ID, err)
	}

	r.robot.Trigger(chat.EventSlackChannelCreated, ChannelCreated{Room: room, Record: rec})
	return room, nil
}

// UpsertMany upserts every record and returns all failures together
func (r *RoomRegistry) UpsertMany(recs []api.ChannelRecord) error {
	var result *multierror.Error
	for _, rec := range recs {
		if _, err := r.Upsert(rec); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Find returns a known room
func (r *RoomRegistry) Find(id string) (*chat.Room, bool) {
	room, err := r.rooms.FindRoomByID(id)
	if err != nil {
		return nil, false
	}
	return room, true
}

// Resolve returns the known room with id, or a bare room carrying only the id
func (r *RoomRegistry) Resolve(id string) *chat.Room {
	if room, ok := r.Find(id); ok {
		return room
	}
	return &chat.Room{ID: id}
}
