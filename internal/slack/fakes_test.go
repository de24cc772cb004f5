package slack

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keepmind9/slackline/internal/chat"
	"github.com/keepmind9/slackline/internal/slack/api"
	goslack "github.com/slack-go/slack"
)

// MockRobot records everything an adapter hands to the framework
type MockRobot struct {
	mu          sync.Mutex
	name        string
	mentionName string
	messages    []*chat.Message
	events      []triggered
	received    chan *chat.Message
}

type triggered struct {
	Event   string
	Payload any
}

func NewMockRobot(name, mentionName string) *MockRobot {
	return &MockRobot{
		name:        name,
		mentionName: mentionName,
		received:    make(chan *chat.Message, 100),
	}
}

func (r *MockRobot) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

func (r *MockRobot) MentionName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mentionName
}

func (r *MockRobot) SetIdentity(name, mentionName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
	r.mentionName = mentionName
}

func (r *MockRobot) Receive(msg *chat.Message) {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	r.received <- msg
}

func (r *MockRobot) Trigger(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, triggered{Event: event, Payload: payload})
}

func (r *MockRobot) Messages() []*chat.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*chat.Message(nil), r.messages...)
}

// Events returns the payloads triggered for event, in order
func (r *MockRobot) Events(event string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var payloads []any
	for _, e := range r.events {
		if e.Event == event {
			payloads = append(payloads, e.Payload)
		}
	}
	return payloads
}

// MockConn is an in-memory stream; Close and a peer close both end reads
type MockConn struct {
	incoming  chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	writes     [][]byte
	pings      int
	closeCalls int
	writeErr   error
}

func NewMockConn() *MockConn {
	return &MockConn{
		incoming: make(chan []byte, 100),
		closed:   make(chan struct{}),
	}
}

func (c *MockConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.incoming:
		return data, nil
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (c *MockConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *MockConn) Ping(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return nil
}

func (c *MockConn) Close() error {
	c.mu.Lock()
	c.closeCalls++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Push queues a frame as if the peer sent it
func (c *MockConn) Push(frame string) {
	c.incoming <- []byte(frame)
}

// PeerClose ends the stream from the remote side
func (c *MockConn) PeerClose() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *MockConn) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.writes))
	for i, w := range c.writes {
		out[i] = string(w)
	}
	return out
}

func (c *MockConn) Pings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

// MockDialer hands out one MockConn
type MockDialer struct {
	conn  *MockConn
	err   error
	dials atomic.Int32
	url   atomic.Value
}

func (d *MockDialer) Dial(ctx context.Context, endpoint string) (StreamConn, error) {
	d.dials.Add(1)
	d.url.Store(endpoint)
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

// MockWebAPI is a scripted Web API
type MockWebAPI struct {
	mu sync.Mutex

	snapshot    *api.Snapshot
	snapshotErr error
	rtmStarts   int
	rtmGate     chan struct{}

	ims        map[string]string
	imOpens    map[string]int
	imOpenErr  error
	imOpenGate chan struct{}

	posts     []webPost
	topics    map[string]string
	reactions []string
	members   map[string][]string
	mpims     map[string][]string
	imUsers   map[string]string
	groupErr  error
	postErr   error
}

type webPost struct {
	Channel     string
	Texts       []string
	Attachments []goslack.Attachment
	Thread      string
}

func NewMockWebAPI(snapshot *api.Snapshot) *MockWebAPI {
	return &MockWebAPI{
		snapshot: snapshot,
		ims:      make(map[string]string),
		imOpens:  make(map[string]int),
		topics:   make(map[string]string),
		members:  make(map[string][]string),
		mpims:    make(map[string][]string),
		imUsers:  make(map[string]string),
	}
}

func (m *MockWebAPI) RTMStart(ctx context.Context) (*api.Snapshot, error) {
	m.mu.Lock()
	m.rtmStarts++
	gate := m.rtmGate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	return m.snapshot, nil
}

func (m *MockWebAPI) IMOpen(ctx context.Context, userID string) (*api.IMOpenResponse, error) {
	m.mu.Lock()
	m.imOpens[userID]++
	gate := m.imOpenGate
	err := m.imOpenErr
	id, ok := m.ims[userID]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		id = "D" + userID
	}
	return &api.IMOpenResponse{ID: id}, nil
}

func (m *MockWebAPI) IMOpens(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.imOpens[userID]
}

func (m *MockWebAPI) RTMStarts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rtmStarts
}

func (m *MockWebAPI) SendMessages(ctx context.Context, channel string, texts []string, thread string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return nil, m.postErr
	}
	m.posts = append(m.posts, webPost{Channel: channel, Texts: texts, Thread: thread})
	return json.RawMessage(`{"ok":true}`), nil
}

func (m *MockWebAPI) SendAttachments(ctx context.Context, channel string, attachments []goslack.Attachment, thread string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, webPost{Channel: channel, Attachments: attachments, Thread: thread})
	return json.RawMessage(`{"ok":true}`), nil
}

func (m *MockWebAPI) Posts() []webPost {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]webPost(nil), m.posts...)
}

func (m *MockWebAPI) SetTopic(ctx context.Context, channel, topic string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics[channel] = topic
	return topic, nil
}

func (m *MockWebAPI) AddReaction(ctx context.Context, channel, timestamp, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reactions = append(m.reactions, channel+"/"+timestamp+"/"+name)
	return nil
}

func (m *MockWebAPI) ChannelMembers(ctx context.Context, channel string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[channel], nil
}

func (m *MockWebAPI) GroupMembers(ctx context.Context, channel string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groupErr != nil {
		return nil, m.groupErr
	}
	return m.members[channel], nil
}

func (m *MockWebAPI) MPIMMembers(ctx context.Context, channel string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mpims[channel], nil
}

func (m *MockWebAPI) IMUser(ctx context.Context, channel string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.imUsers[channel], nil
}

// testSnapshot is a small team: the bot, bob and one channel
func testSnapshot() *api.Snapshot {
	return &api.Snapshot{
		URL:  "wss://example.com/stream",
		Self: api.SelfRecord{ID: "U12345678", Name: "lita"},
		Users: []api.UserRecord{
			{ID: "U12345678", Name: "lita", RealName: "Lita Bot"},
			{ID: "U1", Name: "bob", RealName: ""},
		},
		IMs:      []api.IMRecord{{ID: "D1", User: "U1"}},
		Channels: []api.ChannelRecord{{ID: "C1", Name: "general"}},
	}
}
