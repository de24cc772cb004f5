package slack

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/keepmind9/slackline/internal/slack/api"
	goslack "github.com/slack-go/slack"
	"github.com/tidwall/gjson"
)

// Event is one decoded stream frame. The set of implementations is closed;
// MessageHandler.Handle switches over all of them.
type Event interface {
	eventType() string
}

// HelloEvent is sent once the stream is ready
type HelloEvent struct{}

// MessageEvent is a chat message posted to a conversation
type MessageEvent struct {
	Channel     string               `json:"channel"`
	Group       string               `json:"group"`
	User        string               `json:"user"`
	BotID       string               `json:"bot_id"`
	Text        string               `json:"text"`
	Subtype     string               `json:"subtype"`
	TS          string               `json:"ts"`
	ThreadTS    string               `json:"thread_ts"`
	Attachments []goslack.Attachment `json:"attachments"`
}

// Conversation returns the channel the message was posted in
func (e *MessageEvent) Conversation() string {
	if e.Channel != "" {
		return e.Channel
	}
	return e.Group
}

// Sender returns the posting user, or the bot id for integrations without one
func (e *MessageEvent) Sender() string {
	if e.User != "" {
		return e.User
	}
	return e.BotID
}

// UserChangeEvent carries a new or updated user (user_change, team_join)
type UserChangeEvent struct {
	Type string
	User api.UserRecord
}

// BotChangeEvent carries a new or updated bot (bot_added, bot_changed)
type BotChangeEvent struct {
	Type string
	Bot  api.UserRecord
}

// ChannelEvent carries a new or renamed conversation
// (channel_created, channel_rename, group_rename)
type ChannelEvent struct {
	Type    string
	Channel api.ChannelRecord
}

// ErrorEvent is a stream-level error notice
type ErrorEvent struct {
	Code int
	Msg  string
}

// ReactionItemRecord is the thing a reaction points at
type ReactionItemRecord struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	TS      string `json:"ts"`
	File    string `json:"file"`
}

// ReactionEvent is an emoji reaction being added or removed
type ReactionEvent struct {
	Type     string             `json:"type"`
	User     string             `json:"user"`
	Reaction string             `json:"reaction"`
	ItemUser string             `json:"item_user"`
	Item     ReactionItemRecord `json:"item"`
	EventTS  string             `json:"event_ts"`
}

// Added reports whether the reaction was added rather than removed
func (e *ReactionEvent) Added() bool {
	return e.Type == "reaction_added"
}

// UnknownEvent is any frame without a dedicated type
type UnknownEvent struct {
	Type string
	// ReplyTo is set when the frame acknowledges one of our own sends
	ReplyTo bool
}

func (*HelloEvent) eventType() string { return "hello" }
func (*MessageEvent) eventType() string { return "message" }
func (e *UserChangeEvent) eventType() string { return e.Type }
func (e *BotChangeEvent) eventType() string { return e.Type }
func (e *ChannelEvent) eventType() string { return e.Type }
func (*ErrorEvent) eventType() string { return "error" }
func (e *ReactionEvent) eventType() string { return e.Type }
func (e *UnknownEvent) eventType() string { return e.Type }

// ErrInvalidFrame is returned for frames that are not a JSON object
var ErrInvalidFrame = errors.New("invalid stream frame")

// DecodeEvent decodes one stream frame
func DecodeEvent(frame []byte) (Event, error) {
	if !gjson.ValidBytes(frame) || !gjson.ParseBytes(frame).IsObject() {
		return nil, ErrInvalidFrame
	}

	typ := gjson.GetBytes(frame, "type").String()
	switch typ {
	case "hello":
		return &HelloEvent{}, nil
	case "message":
		ev := &MessageEvent{}
		return decodeInto(typ, frame, ev)
	case "user_change", "team_join":
		ev := &UserChangeEvent{Type: typ}
		return decodeField(typ, frame, "user", &ev.User, ev)
	case "bot_added", "bot_changed":
		ev := &BotChangeEvent{Type: typ}
		return decodeField(typ, frame, "bot", &ev.Bot, ev)
	case "channel_created", "channel_rename", "group_rename":
		ev := &ChannelEvent{Type: typ}
		return decodeField(typ, frame, "channel", &ev.Channel, ev)
	case "error":
		return &ErrorEvent{
			Code: int(gjson.GetBytes(frame, "error.code").Int()),
			Msg:  gjson.GetBytes(frame, "error.msg").String(),
		}, nil
	case "reaction_added", "reaction_removed":
		ev := &ReactionEvent{}
		return decodeInto(typ, frame, ev)
	default:
		return &UnknownEvent{
			Type:    typ,
			ReplyTo: gjson.GetBytes(frame, "reply_to").Exists(),
		}, nil
	}
}

func decodeInto(typ string, frame []byte, ev Event) (Event, error) {
	if err := json.Unmarshal(frame, ev); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", typ, err)
	}
	return ev, nil
}

func decodeField(typ string, frame []byte, field string, out any, ev Event) (Event, error) {
	raw := gjson.GetBytes(frame, field)
	if !raw.IsObject() {
		return nil, fmt.Errorf("%s event has no %s object", typ, field)
	}
	if err := json.Unmarshal([]byte(raw.Raw), out); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", typ, err)
	}
	return ev, nil
}
