package slack

import (
	"context"
	"fmt"

	"github.com/keepmind9/slackline/internal/chat"
	"github.com/keepmind9/slackline/internal/logger"
	"github.com/sirupsen/logrus"
)

// supportedSubtypes are the message subtypes dispatched to the robot
var supportedSubtypes = map[string]bool{
	"bot_message": true,
	"me_message":  true,
}

// MessageHandler translates decoded stream events into framework calls
type MessageHandler struct {
	robot      chat.Robot
	users      *UserRegistry
	rooms      *RoomRegistry
	classifier *Classifier
}

// NewMessageHandler creates a handler
func NewMessageHandler(robot chat.Robot, users *UserRegistry, rooms *RoomRegistry, classifier *Classifier) *MessageHandler {
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	return &MessageHandler{
		robot:      robot,
		users:      users,
		rooms:      rooms,
		classifier: classifier,
	}
}

// HandleFrame decodes and handles one raw stream frame
func (h *MessageHandler) HandleFrame(ctx context.Context, frame []byte) error {
	ev, err := DecodeEvent(frame)
	if err != nil {
		return err
	}
	return h.Handle(ctx, ev)
}

// Handle applies one event
func (h *MessageHandler) Handle(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case *HelloEvent:
		logger.Info("connected-to-slack")
		h.robot.Trigger(chat.EventConnected, nil)
		return nil
	case *MessageEvent:
		return h.handleMessage(e)
	case *UserChangeEvent:
		logger.WithField("user_id", e.User.ID).Debug("updating-user-data")
		_, err := h.users.Upsert(e.User)
		return err
	case *BotChangeEvent:
		logger.WithField("bot_id", e.Bot.ID).Debug("updating-bot-user-data")
		_, err := h.users.Upsert(e.Bot)
		return err
	case *ChannelEvent:
		logger.WithFields(logrus.Fields{
			"type":       e.Type,
			"channel_id": e.Channel.ID,
		}).Debug("updating-room-data")
		_, err := h.rooms.Upsert(e.Channel)
		return err
	case *ErrorEvent:
		logger.WithFields(logrus.Fields{
			"code":    e.Code,
			"message": e.Msg,
		}).Error("slack-stream-error")
		return nil
	case *ReactionEvent:
		return h.handleReaction(e)
	case *UnknownEvent:
		if !e.ReplyTo {
			logger.WithField("type", e.Type).Debug("ignoring-unsupported-slack-event")
		}
		return nil
	default:
		return fmt.Errorf("unhandled event %T", ev)
	}
}

func (h *MessageHandler) handleMessage(e *MessageEvent) error {
	if e.Subtype != "" && !supportedSubtypes[e.Subtype] {
		logger.WithField("subtype", e.Subtype).Debug("ignoring-message-subtype")
		return nil
	}

	user, err := h.users.FindOrCreate(e.Sender())
	if err != nil {
		return fmt.Errorf("failed to resolve message sender: %w", err)
	}

	if e.Subtype == "bot_message" && h.users.IsSelf(user.ID) {
		logger.Debug("ignoring-own-message")
		return nil
	}

	channel := e.Conversation()
	source, err := h.sourceFor(user, channel)
	if err != nil {
		return err
	}
	source.Thread = e.ThreadTS

	msg := &chat.Message{
		Body:    messageBody(e.Text, h.users.SelfID(), h.robot.MentionName(), e.Attachments, h.lookup()),
		Source:  source,
		Command: source.PrivateMessage,
		Extensions: map[string]any{
			"slack": map[string]any{
				"timestamp": e.TS,
				"thread_ts": e.ThreadTS,
			},
		},
	}

	logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"channel": channel,
		"private": source.PrivateMessage,
	}).Debug("dispatching-message")
	h.robot.Receive(msg)
	return nil
}

func (h *MessageHandler) handleReaction(e *ReactionEvent) error {
	user, err := h.users.FindOrCreate(e.User)
	if err != nil {
		return fmt.Errorf("failed to resolve reacting user: %w", err)
	}
	if h.users.IsSelf(user.ID) {
		logger.Debug("ignoring-own-reaction")
		return nil
	}

	source, err := h.sourceFor(user, e.Item.Channel)
	if err != nil {
		return err
	}

	reaction := &chat.Reaction{
		Name: e.Reaction,
		Item: chat.ReactionItem{
			Type:      e.Item.Type,
			Channel:   e.Item.Channel,
			Timestamp: e.Item.TS,
			File:      e.Item.File,
		},
		Event:  chat.ReactionRemoved,
		Source: source,
	}
	event := chat.EventSlackReactionRemoved
	if e.Added() {
		reaction.Event = chat.ReactionAdded
		event = chat.EventSlackReactionAdded
	}

	logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"reaction": e.Reaction,
		"event":    reaction.Event,
	}).Debug("dispatching-reaction")
	h.robot.Trigger(event, reaction)
	return nil
}

func (h *MessageHandler) sourceFor(user *chat.User, channel string) (chat.Source, error) {
	if channel == "" {
		return chat.NewSource(user, nil, true)
	}
	return chat.NewSource(user, h.rooms.Resolve(channel), h.classifier.IsDirect(channel))
}

func (h *MessageHandler) lookup() nameLookup {
	return nameLookup{
		userMention: func(id string) (string, bool) {
			user, ok := h.users.Find(id)
			if !ok {
				return "", false
			}
			return user.MentionName, true
		},
		roomName: func(id string) (string, bool) {
			room, ok := h.rooms.Find(id)
			if !ok || room.Name == "" {
				return "", false
			}
			return room.Name, true
		},
	}
}
