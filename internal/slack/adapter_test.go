package slack

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/keepmind9/slackline/internal/chat"
	"github.com/keepmind9/slackline/internal/slack/api"
	"github.com/keepmind9/slackline/internal/store"
	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adapterFixture struct {
	robot   *MockRobot
	web     *MockWebAPI
	conn    *MockConn
	store   *store.MemoryStore
	adapter *Adapter
}

func newAdapterFixture(t *testing.T, cfg Config, snapshot *api.Snapshot) *adapterFixture {
	t.Helper()
	f := &adapterFixture{
		robot: NewMockRobot("Lita", "lita"),
		web:   NewMockWebAPI(snapshot),
		conn:  NewMockConn(),
		store: store.NewMemoryStore(),
	}

	adapter, err := NewAdapter(f.web, f.robot, f.store, f.store, cfg, WithStreamDialer(&MockDialer{conn: f.conn}))
	require.NoError(t, err)
	f.adapter = adapter
	t.Cleanup(adapter.ShutDown)
	return f
}

func (f *adapterFixture) run(t *testing.T) {
	t.Helper()
	require.NoError(t, f.adapter.Run(context.Background()))
}

func (f *adapterFixture) nextMessage(t *testing.T) *chat.Message {
	t.Helper()
	select {
	case msg := <-f.robot.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message dispatched")
		return nil
	}
}

func TestNewAdapter_InvalidConfig(t *testing.T) {
	st := store.NewMemoryStore()

	_, err := NewAdapter(NewMockWebAPI(nil), NewMockRobot("Lita", "lita"), st, st, Config{SendVia: "carrier-pigeon"})
	assert.ErrorContains(t, err, "invalid send_via")

	_, err = NewAdapter(NewMockWebAPI(nil), NewMockRobot("Lita", "lita"), st, st, Config{
		ConversationPrefixes: map[string][]string{"nope": {"N"}},
	})
	assert.Error(t, err)
}

func TestAdapter_EndToEnd_DispatchesMessage(t *testing.T) {
	snapshot := &api.Snapshot{
		URL:   "wss://example.com/stream",
		Self:  api.SelfRecord{ID: "U12345678", Name: "lita"},
		Users: []api.UserRecord{{ID: "U1", Name: "bob", RealName: ""}},
	}
	f := newAdapterFixture(t, Config{}, snapshot)
	f.run(t)

	f.conn.Push(`{"type":"message","channel":"C1","user":"U1","text":"hi"}`)
	msg := f.nextMessage(t)

	assert.Equal(t, "hi", msg.Body)
	assert.Equal(t, "C1", msg.Source.Room)
	assert.Equal(t, "bob", msg.Source.User.Name)
	assert.Equal(t, "bob", msg.Source.User.MentionName)
}

func TestAdapter_EndToEnd_OwnBotMessageIsDropped(t *testing.T) {
	f := newAdapterFixture(t, Config{}, testSnapshot())
	f.run(t)

	f.conn.Push(`{"type":"message","subtype":"bot_message","channel":"C1","user":"U12345678","text":"echo"}`)
	f.conn.Push(`{"type":"message","channel":"C1","user":"U1","text":"after"}`)

	msg := f.nextMessage(t)
	assert.Equal(t, "after", msg.Body)
	assert.Len(t, f.robot.Messages(), 1)
}

func TestAdapter_SendMessages_OversizedRaisesBeforeTransport(t *testing.T) {
	f := newAdapterFixture(t, Config{}, testSnapshot())
	f.run(t)
	target := chat.Source{Room: "C1"}

	err := f.adapter.SendMessages(context.Background(), target, []string{strings.Repeat("x", 16001)})
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Empty(t, f.conn.Writes())

	require.NoError(t, f.adapter.SendMessages(context.Background(), target, []string{"ok"}))
	assert.Len(t, f.conn.Writes(), 1)
}

func TestAdapter_SendMessages_PrivateUsesDirectChannel(t *testing.T) {
	f := newAdapterFixture(t, Config{}, testSnapshot())
	f.run(t)

	bob := &chat.User{ID: "U1"}
	require.NoError(t, f.adapter.SendMessages(context.Background(), chat.Source{User: bob, PrivateMessage: true}, []string{"psst"}))
	carl := &chat.User{ID: "U2"}
	require.NoError(t, f.adapter.SendMessages(context.Background(), chat.Source{User: carl, PrivateMessage: true}, []string{"hey"}))

	assert.Equal(t, []string{
		`{"id":1,"type":"message","text":"psst","channel":"D1"}`,
		`{"id":1,"type":"message","text":"hey","channel":"DU2"}`,
	}, f.conn.Writes())
	assert.Equal(t, 0, f.web.IMOpens("U1"))
	assert.Equal(t, 1, f.web.IMOpens("U2"))
}

func TestAdapter_SendMessages_InvalidTargets(t *testing.T) {
	f := newAdapterFixture(t, Config{}, testSnapshot())
	f.run(t)

	assert.Error(t, f.adapter.SendMessages(context.Background(), chat.Source{PrivateMessage: true}, []string{"x"}))
	assert.Error(t, f.adapter.SendMessages(context.Background(), chat.Source{}, []string{"x"}))
	assert.NoError(t, f.adapter.SendMessages(context.Background(), chat.Source{}, nil))
}

func TestAdapter_SendMessages_ViaWebAPI(t *testing.T) {
	f := newAdapterFixture(t, Config{SendVia: SendViaWeb}, testSnapshot())
	f.run(t)

	require.NoError(t, f.adapter.SendMessages(context.Background(), chat.Source{Room: "C1"}, []string{"one", "two"}))

	assert.Empty(t, f.conn.Writes())
	assert.Equal(t, []webPost{{Channel: "C1", Texts: []string{"one", "two"}}}, f.web.Posts())
}

func TestAdapter_SendMessages_ThreadUsesWebAPI(t *testing.T) {
	f := newAdapterFixture(t, Config{}, testSnapshot())
	f.run(t)

	require.NoError(t, f.adapter.SendMessages(context.Background(), chat.Source{Room: "C1", Thread: "1.0"}, []string{"reply"}))

	assert.Empty(t, f.conn.Writes())
	assert.Equal(t, []webPost{{Channel: "C1", Texts: []string{"reply"}, Thread: "1.0"}}, f.web.Posts())
}

func TestAdapter_SendMessages_WebAPIError(t *testing.T) {
	f := newAdapterFixture(t, Config{SendVia: SendViaWeb}, testSnapshot())
	f.web.postErr = &api.APIError{Method: "chat.postMessage", Code: "channel_not_found"}

	err := f.adapter.SendMessages(context.Background(), chat.Source{Room: "C404"}, []string{"x"})
	assert.True(t, api.IsAPIError(err, "channel_not_found"))
}

func TestAdapter_SetTopic(t *testing.T) {
	f := newAdapterFixture(t, Config{}, testSnapshot())

	require.NoError(t, f.adapter.SetTopic(context.Background(), chat.Source{Room: "C1"}, "Topic"))
	assert.Equal(t, "Topic", f.web.topics["C1"])

	assert.Error(t, f.adapter.SetTopic(context.Background(), chat.Source{}, "Topic"))
}

func TestAdapter_Roster(t *testing.T) {
	f := newAdapterFixture(t, Config{}, testSnapshot())
	f.web.members["C1"] = []string{"U1", "U2"}
	f.web.members["G1"] = []string{"U3"}
	f.web.imUsers["D1"] = "U1"
	ctx := context.Background()

	members, err := f.adapter.Roster(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U2"}, members)

	members, err = f.adapter.Roster(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, []string{"U3"}, members)

	members, err = f.adapter.Roster(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, []string{"U1"}, members)

	_, err = f.adapter.Roster(ctx, "X1")
	assert.ErrorContains(t, err, "unknown conversation kind")
}

func TestAdapter_Roster_GroupFallsBackToMultiParty(t *testing.T) {
	f := newAdapterFixture(t, Config{}, testSnapshot())
	f.web.groupErr = &api.APIError{Method: "groups.info", Code: "channel_not_found"}
	f.web.mpims["G9"] = []string{"U1", "U4"}

	members, err := f.adapter.Roster(context.Background(), "G9")
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U4"}, members)

	f.web.groupErr = errors.New("timeout")
	_, err = f.adapter.Roster(context.Background(), "G9")
	assert.ErrorContains(t, err, "timeout")
}

func TestAdapter_Roster_ConfiguredMultiPartyPrefix(t *testing.T) {
	f := newAdapterFixture(t, Config{ConversationPrefixes: map[string][]string{"mpim": {"GM"}}}, testSnapshot())
	f.web.mpims["GM1"] = []string{"U5"}

	members, err := f.adapter.Roster(context.Background(), "GM1")
	require.NoError(t, err)
	assert.Equal(t, []string{"U5"}, members)
}

func TestAdapter_MentionFormat(t *testing.T) {
	f := newAdapterFixture(t, Config{}, testSnapshot())
	assert.Equal(t, "@carl", f.adapter.MentionFormat("carl"))
}

func TestAdapter_ShutDown_DisconnectedOnce(t *testing.T) {
	f := newAdapterFixture(t, Config{}, testSnapshot())
	f.run(t)

	f.adapter.ShutDown()
	f.adapter.ShutDown()
	select {
	case <-f.adapter.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("adapter did not stop")
	}

	assert.Len(t, f.robot.Events(chat.EventDisconnected), 1)
}

func TestAdapter_PeerClose_DisconnectedOnce(t *testing.T) {
	f := newAdapterFixture(t, Config{}, testSnapshot())
	f.run(t)

	f.conn.PeerClose()
	<-f.adapter.Done()
	f.adapter.ShutDown()

	assert.Len(t, f.robot.Events(chat.EventDisconnected), 1)
	assert.Equal(t, StateClosed, f.adapter.Connection().State())
}

func TestChatService_SendAttachments(t *testing.T) {
	f := newAdapterFixture(t, Config{}, testSnapshot())
	f.run(t)
	service := f.adapter.ChatService()
	attachment := api.NewAttachment("deployed", api.WithColor("good"))

	require.NoError(t, service.SendAttachments(context.Background(), chat.Source{Room: "C1"}, attachment))
	require.NoError(t, service.SendAttachments(context.Background(), chat.Source{User: &chat.User{ID: "U1"}, PrivateMessage: true}, attachment))
	require.NoError(t, service.SendAttachments(context.Background(), chat.Source{Room: "C1"}))

	posts := f.web.Posts()
	require.Len(t, posts, 2)
	assert.Equal(t, "C1", posts[0].Channel)
	assert.Equal(t, []goslack.Attachment{attachment}, posts[0].Attachments)
	assert.Equal(t, "D1", posts[1].Channel)
}

func TestChatService_AddReaction(t *testing.T) {
	f := newAdapterFixture(t, Config{}, testSnapshot())
	service := f.adapter.ChatService()
	msg := &chat.Message{
		Source:     chat.Source{Room: "C1"},
		Extensions: map[string]any{"slack": map[string]any{"timestamp": "1234.5678"}},
	}

	require.NoError(t, service.AddReaction(context.Background(), msg, "thumbsup"))
	assert.Equal(t, []string{"C1/1234.5678/thumbsup"}, f.web.reactions)

	assert.Error(t, service.AddReaction(context.Background(), &chat.Message{Source: chat.Source{Room: "C1"}}, "x"))
	assert.Equal(t, "", MessageTimestamp(nil))
}
