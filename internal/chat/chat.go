// Package chat defines the host framework abstractions the Slack adapter speaks to.
//
// The framework owns persistence, routing and handler registration. Adapters only
// hand it users, rooms, messages and reactions, and receive send requests back.
package chat

import (
	"context"
	"errors"
)

// Events triggered on the robot by adapters
const (
	EventConnected            = "connected"
	EventDisconnected         = "disconnected"
	EventSlackUserCreated     = "slack_user_created"
	EventSlackChannelCreated  = "slack_channel_created"
	EventSlackReactionAdded   = "slack_reaction_added"
	EventSlackReactionRemoved = "slack_reaction_removed"
)

// ErrSourceRequired is returned when a source has neither a user nor a room
var ErrSourceRequired = errors.New("source requires a user or a room")

// User is a chat participant known to the framework
type User struct {
	ID          string
	Name        string
	MentionName string
	Metadata    map[string]any
}

// Email returns the email address stored in the user's metadata, if any
func (u *User) Email() string {
	if u == nil || u.Metadata == nil {
		return ""
	}
	email, _ := u.Metadata["email"].(string)
	return email
}

// Room is a conversation the robot can see
type Room struct {
	ID       string
	Name     string
	Metadata map[string]any
}

// Source describes where a message came from or where a reply should go
type Source struct {
	User           *User
	Room           string
	RoomObject     *Room
	PrivateMessage bool
	Thread         string
}

// NewSource builds a source; a source without a room is always private
func NewSource(user *User, room *Room, private bool) (Source, error) {
	if user == nil && room == nil {
		return Source{}, ErrSourceRequired
	}
	src := Source{User: user, PrivateMessage: private}
	if room != nil {
		src.Room = room.ID
		src.RoomObject = room
	} else {
		src.PrivateMessage = true
	}
	return src, nil
}

// Message is an inbound chat message handed to the framework
type Message struct {
	Body       string
	Source     Source
	Command    bool
	Extensions map[string]any
}

// ReactionEvent tells whether a reaction was added or removed
type ReactionEvent string

const (
	ReactionAdded   ReactionEvent = "added"
	ReactionRemoved ReactionEvent = "removed"
)

// ReactionItem is the thing a reaction was attached to
type ReactionItem struct {
	Type      string
	Channel   string
	Timestamp string
	File      string
}

// Reaction is an emoji reaction; its body is the emoji name
type Reaction struct {
	Name   string
	Item   ReactionItem
	Event  ReactionEvent
	Source Source
}

// Body returns the emoji name
func (r *Reaction) Body() string {
	return r.Name
}

// Robot is the part of the host framework an adapter talks to
type Robot interface {
	Name() string
	MentionName() string
	SetIdentity(name, mentionName string)
	Receive(msg *Message)
	Trigger(event string, payload any)
}

// Adapter is what the host framework drives
type Adapter interface {
	Run(ctx context.Context) error
	SendMessages(ctx context.Context, target Source, strings []string) error
	SetTopic(ctx context.Context, target Source, topic string) error
	Roster(ctx context.Context, roomID string) ([]string, error)
	MentionFormat(name string) string
	ShutDown()
	Done() <-chan struct{}
}
