// Package sqsrelay feeds chat messages published to an SQS queue into the robot.
//
// Another service may mirror Slack traffic onto a queue; the relay delivers those
// messages as if they had arrived on the stream.
package sqsrelay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/keepmind9/slackline/internal/chat"
	"github.com/keepmind9/slackline/internal/logger"
	"github.com/keepmind9/slackline/internal/store"
	"github.com/sirupsen/logrus"
)

// Payload is the body of one queued message
type Payload struct {
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Sender turns queued payloads into robot messages
type Sender struct {
	robot    chat.Robot
	users    store.UserStore
	robotID  string
	channels map[string]bool
}

// NewSender creates a sender. A nil channelIDs accepts every channel; the
// robotID's own messages are never delivered.
func NewSender(robot chat.Robot, users store.UserStore, robotID string, channelIDs []string) *Sender {
	s := &Sender{robot: robot, users: users, robotID: robotID}
	if channelIDs != nil {
		s.channels = make(map[string]bool, len(channelIDs))
		for _, id := range channelIDs {
			s.channels[id] = true
		}
	}
	return s
}

// Deliver hands body to the robot and reports whether it was delivered
func (s *Sender) Deliver(body string) (bool, error) {
	var p Payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return false, fmt.Errorf("invalid relay payload: %w", err)
	}

	fields := logrus.Fields{
		"user_id":    p.UserID,
		"channel_id": p.ChannelID,
	}
	if !s.channelAllowed(p.ChannelID) {
		logger.WithFields(fields).Debug("relay-channel-not-whitelisted")
		return false, nil
	}
	if p.UserID == s.robotID {
		logger.WithFields(fields).Debug("relay-ignoring-own-message")
		return false, nil
	}

	user, err := s.user(p)
	if err != nil {
		return false, err
	}
	source, err := chat.NewSource(user, &chat.Room{ID: p.ChannelID}, false)
	if err != nil {
		return false, err
	}

	s.robot.Receive(&chat.Message{
		Body:   p.Text,
		Source: source,
		Extensions: map[string]any{
			"slack": map[string]any{"timestamp": p.Timestamp},
		},
	})
	logger.WithFields(fields).Debug("relay-message-delivered")
	return true, nil
}

func (s *Sender) channelAllowed(id string) bool {
	return s.channels == nil || s.channels[id]
}

// user returns the known sender, or saves one named after the payload
func (s *Sender) user(p Payload) (*chat.User, error) {
	if p.UserID == "" {
		return nil, errors.New("relay payload has no user_id")
	}

	user, err := s.users.FindUserByID(p.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up relay user %s: %w", p.UserID, err)
	}

	name := p.UserName
	if name == "" {
		name = p.UserID
	}
	user = &chat.User{
		ID:          p.UserID,
		Name:        name,
		MentionName: name,
		Metadata:    map[string]any{"user_name": p.UserName},
	}
	if err := s.users.SaveUser(user); err != nil {
		return nil, fmt.Errorf("failed to save relay user %s: %w", p.UserID, err)
	}
	return user, nil
}
