package slack

import (
	"context"
	"errors"

	"github.com/keepmind9/slackline/internal/chat"
	goslack "github.com/slack-go/slack"
)

// ChatService offers Slack features the generic adapter interface has no room for
type ChatService struct {
	adapter *Adapter
}

// SendAttachments posts attachments to target
func (s *ChatService) SendAttachments(ctx context.Context, target chat.Source, attachments ...goslack.Attachment) error {
	if len(attachments) == 0 {
		return nil
	}
	channel, err := s.adapter.channelFor(ctx, target)
	if err != nil {
		return err
	}
	_, err = s.adapter.client.SendAttachments(ctx, channel, attachments, target.Thread)
	return err
}

// AddReaction reacts to msg with the emoji name
func (s *ChatService) AddReaction(ctx context.Context, msg *chat.Message, name string) error {
	timestamp := MessageTimestamp(msg)
	if timestamp == "" {
		return errors.New("message has no slack timestamp")
	}
	if msg.Source.Room == "" {
		return errors.New("message has no room")
	}
	return s.adapter.client.AddReaction(ctx, msg.Source.Room, timestamp, name)
}

// MessageTimestamp returns the Slack timestamp stored in a message's extensions
func MessageTimestamp(msg *chat.Message) string {
	if msg == nil {
		return ""
	}
	ext, ok := msg.Extensions["slack"].(map[string]any)
	if !ok {
		return ""
	}
	ts, _ := ext["timestamp"].(string)
	return ts
}
