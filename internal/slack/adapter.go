package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/keepmind9/slackline/internal/chat"
	"github.com/keepmind9/slackline/internal/logger"
	"github.com/keepmind9/slackline/internal/slack/api"
	"github.com/keepmind9/slackline/internal/store"
	"github.com/sirupsen/logrus"
	goslack "github.com/slack-go/slack"
)

// Send paths for outbound messages
const (
	SendViaRTM = "rtm"
	SendViaWeb = "web"
)

// WebAPI is the part of the Web API client the adapter uses
type WebAPI interface {
	SnapshotFetcher
	DirectChannelOpener
	SendMessages(ctx context.Context, channel string, texts []string, thread string) (json.RawMessage, error)
	SendAttachments(ctx context.Context, channel string, attachments []goslack.Attachment, thread string) (json.RawMessage, error)
	SetTopic(ctx context.Context, channel, topic string) (string, error)
	AddReaction(ctx context.Context, channel, timestamp, name string) error
	ChannelMembers(ctx context.Context, channel string) ([]string, error)
	GroupMembers(ctx context.Context, channel string) ([]string, error)
	MPIMMembers(ctx context.Context, channel string) ([]string, error)
	IMUser(ctx context.Context, channel string) (string, error)
}

// Config holds the adapter settings
type Config struct {
	SendVia              string
	Proxy                string
	PingInterval         time.Duration
	MaxMessageBytes      int
	ConversationPrefixes map[string][]string
}

// Option configures an Adapter
type Option func(*Adapter)

// WithStreamDialer replaces the websocket dialer
func WithStreamDialer(d StreamDialer) Option {
	return func(a *Adapter) { a.dialer = d }
}

// Adapter connects the framework robot to Slack
type Adapter struct {
	client     WebAPI
	robot      chat.Robot
	classifier *Classifier
	sendVia    string
	dialer     StreamDialer

	users *UserRegistry
	rooms *RoomRegistry
	ims   *DirectChannelCache
	conn  *Connection

	disconnectOnce sync.Once
}

var _ chat.Adapter = (*Adapter)(nil)

// NewAdapter creates an adapter for robot persisting users and rooms to the given stores
func NewAdapter(client WebAPI, robot chat.Robot, users store.UserStore, rooms store.RoomStore, cfg Config, opts ...Option) (*Adapter, error) {
	classifier, err := NewClassifier(cfg.ConversationPrefixes)
	if err != nil {
		return nil, err
	}

	sendVia := cfg.SendVia
	switch sendVia {
	case "":
		sendVia = SendViaRTM
	case SendViaRTM, SendViaWeb:
	default:
		return nil, fmt.Errorf("invalid send_via %q (expected %s or %s)", sendVia, SendViaRTM, SendViaWeb)
	}

	a := &Adapter{
		client:     client,
		robot:      robot,
		classifier: classifier,
		sendVia:    sendVia,
		dialer:     WebsocketDialer{Proxy: cfg.Proxy},
	}
	for _, opt := range opts {
		opt(a)
	}

	a.users = NewUserRegistry(users, robot)
	a.rooms = NewRoomRegistry(rooms, robot)
	a.ims = NewDirectChannelCache(client)
	handler := NewMessageHandler(robot, a.users, a.rooms, classifier)
	a.conn = NewConnection(client, a.dialer, a.ims, a.users, a.rooms, handler,
		WithPingInterval(cfg.PingInterval),
		WithMaxMessageBytes(cfg.MaxMessageBytes),
		WithDisconnectHandler(a.disconnected),
	)
	return a, nil
}

// Run connects to Slack; it returns once the stream is open
func (a *Adapter) Run(ctx context.Context) error {
	return a.conn.Run(ctx)
}

// Done is closed when the stream has ended
func (a *Adapter) Done() <-chan struct{} {
	return a.conn.Done()
}

// ShutDown closes the stream; the disconnected event follows once it is down
func (a *Adapter) ShutDown() {
	a.conn.ShutDown()
}

func (a *Adapter) disconnected() {
	a.disconnectOnce.Do(func() {
		logger.Info("disconnected-from-slack")
		a.robot.Trigger(chat.EventDisconnected, nil)
	})
}

// SendMessages sends strings to target. Private targets go to the user's
// direct channel. Threaded replies always use the Web API since stream
// frames cannot carry a thread.
func (a *Adapter) SendMessages(ctx context.Context, target chat.Source, strings []string) error {
	if len(strings) == 0 {
		return nil
	}

	channel, err := a.channelFor(ctx, target)
	if err != nil {
		return err
	}

	if a.sendVia == SendViaWeb || target.Thread != "" {
		if _, err := a.client.SendMessages(ctx, channel, strings, target.Thread); err != nil {
			logger.WithFields(logrus.Fields{
				"channel": channel,
				"error":   err,
			}).Error("failed-to-send-message-to-slack")
			return err
		}
		logger.WithField("channel", channel).Debug("message-sent-via-web-api")
		return nil
	}

	return a.conn.Send(channel, strings)
}

// channelFor resolves where a message for target should be posted
func (a *Adapter) channelFor(ctx context.Context, target chat.Source) (string, error) {
	if target.PrivateMessage {
		if target.User == nil {
			return "", errors.New("private message target has no user")
		}
		return a.ims.ImFor(ctx, target.User.ID)
	}
	if target.Room == "" {
		return "", errors.New("message target has no room")
	}
	return target.Room, nil
}

// SetTopic sets the topic of the target's room
func (a *Adapter) SetTopic(ctx context.Context, target chat.Source, topic string) error {
	if target.Room == "" {
		return errors.New("topic target has no room")
	}
	_, err := a.client.SetTopic(ctx, target.Room, topic)
	return err
}

// Roster lists the user ids in a conversation
func (a *Adapter) Roster(ctx context.Context, roomID string) ([]string, error) {
	switch kind := a.classifier.Classify(roomID); kind {
	case KindChannel:
		return a.client.ChannelMembers(ctx, roomID)
	case KindGroup:
		members, err := a.client.GroupMembers(ctx, roomID)
		if api.IsAPIError(err, "channel_not_found") {
			return a.client.MPIMMembers(ctx, roomID)
		}
		return members, err
	case KindMultiParty:
		return a.client.MPIMMembers(ctx, roomID)
	case KindDirect:
		user, err := a.client.IMUser(ctx, roomID)
		if err != nil {
			return nil, err
		}
		return []string{user}, nil
	default:
		return nil, fmt.Errorf("cannot list members of %s: unknown conversation kind", roomID)
	}
}

// MentionFormat renders a mention of name
func (a *Adapter) MentionFormat(name string) string {
	return "@" + name
}

// ChatService exposes Slack-specific operations beyond the adapter interface
func (a *Adapter) ChatService() *ChatService {
	return &ChatService{adapter: a}
}

// Connection exposes the underlying stream connection
func (a *Adapter) Connection() *Connection {
	return a.conn
}
