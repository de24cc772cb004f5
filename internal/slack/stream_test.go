package slack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/keepmind9/slackline/internal/chat"
	"github.com/keepmind9/slackline/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer sends hello, then echoes every text frame back
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello"}`)); err != nil {
			return
		}
		for {
			messageType, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(messageType, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestWebsocketDialer_RoundTrip(t *testing.T) {
	server := echoServer(t)
	endpoint := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, err := WebsocketDialer{}.Dial(context.Background(), endpoint)
	require.NoError(t, err)
	defer conn.Close()

	hello, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"hello"}`, string(hello))

	require.NoError(t, conn.WriteMessage([]byte(`{"id":1}`)))
	echoed, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(echoed))

	assert.NoError(t, conn.Ping(time.Now().Add(time.Second)))
}

func TestWebsocketDialer_CloseUnblocksRead(t *testing.T) {
	server := echoServer(t)
	endpoint := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, err := WebsocketDialer{}.Dial(context.Background(), endpoint)
	require.NoError(t, err)
	_, err = conn.ReadMessage()
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.ReadMessage()
		errCh <- err
	}()

	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("read was not unblocked")
	}
}

func TestWebsocketDialer_Errors(t *testing.T) {
	_, err := WebsocketDialer{Proxy: "://bad"}.Dial(context.Background(), "ws://127.0.0.1:1")
	assert.ErrorContains(t, err, "invalid proxy URL")

	_, err = WebsocketDialer{HandshakeTimeout: time.Second}.Dial(context.Background(), "ws://127.0.0.1:1")
	assert.Error(t, err)
}

func TestAdapter_OverWebsocket(t *testing.T) {
	server := echoServer(t)
	snapshot := testSnapshot()
	snapshot.URL = "ws" + strings.TrimPrefix(server.URL, "http")
	robot := NewMockRobot("Lita", "lita")
	st := store.NewMemoryStore()

	adapter, err := NewAdapter(NewMockWebAPI(snapshot), robot, st, st, Config{}, WithStreamDialer(WebsocketDialer{}))
	require.NoError(t, err)
	require.NoError(t, adapter.Run(context.Background()))

	require.Eventually(t, func() bool {
		return len(robot.Events(chat.EventConnected)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, adapter.SendMessages(context.Background(), chat.Source{Room: "C1"}, []string{"ping"}))

	adapter.ShutDown()
	select {
	case <-adapter.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("adapter did not stop")
	}
	assert.Len(t, robot.Events(chat.EventDisconnected), 1)
}
