package transport

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(DefaultConfig())
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		_ = hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func nextEvent(t *testing.T, hub *Hub) Event {
	t.Helper()
	select {
	case ev := <-hub.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transport event")
		return Event{}
	}
}

func TestHubConnectSendReceive(t *testing.T) {
	hub, url := newTestHub(t)
	assert.False(t, hub.PeerAttached())
	assert.ErrorIs(t, hub.SendText([]byte("x")), ErrNoPeer)

	conn := dial(t, url)

	ev := nextEvent(t, hub)
	assert.Equal(t, EventConnected, ev.Kind)
	assert.NotEmpty(t, ev.Peer)
	assert.True(t, hub.PeerAttached())
	assert.Equal(t, ev.Peer, hub.Peer())

	require.NoError(t, hub.SendText([]byte(`{"cmd":"next","seq":0,"timestamp":1}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.JSONEq(t, `{"cmd":"next","seq":0,"timestamp":1}`, string(data))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"cmd":"ping"}`)))
	ev = nextEvent(t, hub)
	assert.Equal(t, EventMessage, ev.Kind)
	assert.Equal(t, `{"cmd":"ping"}`, string(ev.Payload))
}

func TestHubDisconnectClearsPeer(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)
	connected := nextEvent(t, hub)

	require.NoError(t, conn.Close())

	ev := nextEvent(t, hub)
	assert.Equal(t, EventDisconnected, ev.Kind)
	assert.Equal(t, connected.Peer, ev.Peer)
	assert.False(t, hub.PeerAttached())
}

func TestHubNewPeerReplacesOld(t *testing.T) {
	hub, url := newTestHub(t)
	dial(t, url)
	first := nextEvent(t, hub)

	second := dial(t, url)
	ev := nextEvent(t, hub)
	require.Equal(t, EventConnected, ev.Kind)
	assert.NotEqual(t, first.Peer, ev.Peer)
	assert.Equal(t, ev.Peer, hub.Peer())

	require.NoError(t, hub.SendText([]byte(`{"cmd":"pong"}`)))
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := second.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"cmd":"pong"}`, string(data))
}

func TestHubClose(t *testing.T) {
	hub, url := newTestHub(t)
	dial(t, url)
	nextEvent(t, hub)

	require.NoError(t, hub.Close())
	assert.False(t, hub.PeerAttached())
	assert.ErrorIs(t, hub.SendText([]byte("x")), ErrClosed)
	assert.NoError(t, hub.Close(), "close is idempotent")
}

func TestHubDropsWhenQueueFull(t *testing.T) {
	hub := NewHub(Config{EventBuffer: 1})
	defer hub.Close()
	hub.emit(Event{Kind: EventMessage})
	hub.emit(Event{Kind: EventMessage})
	assert.Equal(t, 1, hub.Dropped())
	assert.Len(t, hub.events, 1)
}

func TestHubKeepsRoomForConnectionChanges(t *testing.T) {
	hub := NewHub(Config{EventBuffer: 4})
	defer hub.Close()

	for n := 0; n < 10; n++ {
		hub.emit(Event{Kind: EventMessage, Peer: "a"})
	}
	hub.emit(Event{Kind: EventDisconnected, Peer: "a"})

	assert.Equal(t, 7, hub.Dropped())
	require.Len(t, hub.events, 4)
	for n := 0; n < 3; n++ {
		assert.Equal(t, EventMessage, (<-hub.events).Kind)
	}
	assert.Equal(t, EventDisconnected, (<-hub.events).Kind)
}

func TestHubConnectionChangeWaitsForRoom(t *testing.T) {
	hub := NewHub(Config{EventBuffer: 1})
	hub.emit(Event{Kind: EventConnected, Peer: "a"})

	emitted := make(chan struct{})
	go func() {
		hub.emit(Event{Kind: EventDisconnected, Peer: "a"})
		close(emitted)
	}()

	assert.Equal(t, EventConnected, (<-hub.events).Kind)
	select {
	case <-emitted:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect not queued after room freed")
	}
	assert.Equal(t, EventDisconnected, (<-hub.events).Kind)
	assert.Zero(t, hub.Dropped())

	hub.emit(Event{Kind: EventConnected, Peer: "b"})
	blocked := make(chan struct{})
	go func() {
		hub.emit(Event{Kind: EventDisconnected, Peer: "b"})
		close(blocked)
	}()
	require.NoError(t, hub.Close())
	select {
	case <-blocked:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not release a waiting connection change")
	}
}

func TestHubDisconnectSurvivesMessageFlood(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)
	require.Eventually(t, hub.PeerAttached, 2*time.Second, time.Millisecond)

	for n := 0; n < 100; n++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"cmd":"ping"}`)))
	}
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return !hub.PeerAttached() }, 2*time.Second, time.Millisecond)

	counts := map[EventKind]int{}
	for counts[EventDisconnected] == 0 {
		counts[nextEvent(t, hub).Kind]++
	}
	assert.Equal(t, 1, counts[EventConnected])
	assert.Positive(t, hub.Dropped())
	assert.Equal(t, 100, counts[EventMessage]+hub.Dropped())
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "connected", EventConnected.String())
	assert.Equal(t, "disconnected", EventDisconnected.String())
	assert.Equal(t, "message", EventMessage.String())
	assert.Equal(t, "unknown", EventKind(9).String())
}
