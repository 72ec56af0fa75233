package wsclient

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEchoServer(t *testing.T, onConn func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		onConn(conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func nextEvent(t *testing.T, s Session) Event {
	t.Helper()
	select {
	case event, ok := <-s.Events():
		require.True(t, ok, "event stream ended unexpectedly")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for session event")
	}
	return Event{}
}

func TestGorillaSessionLifecycle(t *testing.T) {
	address := newEchoServer(t, func(conn *websocket.Conn) {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == `{"type":"ping"}` {
				_ = conn.WriteMessage(mt, []byte("ok"))
				continue
			}
			_ = conn.WriteMessage(mt, data)
		}
	})

	s := NewGorillaDialer(WithHandshakeTimeout(time.Second)).Open(address)
	defer s.Close()

	assert.Equal(t, EventOpened, nextEvent(t, s).Type)
	assert.True(t, s.IsOpen())

	require.NoError(t, s.Send(DefaultPingMessage))
	event := nextEvent(t, s)
	assert.Equal(t, EventMessage, event.Type)
	assert.Equal(t, "ok", string(event.Data))

	require.NoError(t, s.Send([]byte("hello")))
	event = nextEvent(t, s)
	assert.Equal(t, "hello", string(event.Data))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, s.IsOpen())
	assert.Error(t, s.Send([]byte("after close")))
}

func TestGorillaSessionServerClose(t *testing.T) {
	address := newEchoServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
		_, _, _ = conn.ReadMessage()
	})

	s := NewGorillaDialer().Open(address)
	defer s.Close()

	assert.Equal(t, EventOpened, nextEvent(t, s).Type)
	event := nextEvent(t, s)
	assert.Equal(t, EventClosed, event.Type)
	assert.Equal(t, websocket.CloseGoingAway, event.Code)
	assert.Equal(t, "bye", event.Reason)
	assert.False(t, s.IsOpen())
}

func TestGorillaSessionDialFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	address := "ws" + strings.TrimPrefix(server.URL, "http")
	server.Close()

	s := NewGorillaDialer(WithHandshakeTimeout(time.Second)).Open(address)
	defer s.Close()

	event := nextEvent(t, s)
	assert.Equal(t, EventError, event.Type)
	assert.Error(t, event.Err)

	event = nextEvent(t, s)
	assert.Equal(t, EventClosed, event.Type)
	assert.Equal(t, CloseAbnormal, event.Code)
	assert.False(t, s.IsOpen())
}
