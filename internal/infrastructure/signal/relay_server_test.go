package signal

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startRelay(t *testing.T, cfg RelayConfig) (*RelayServer, string) {
	server := NewRelayServer(cfg, zaptest.NewLogger(t).Sugar())
	ts := httptest.NewServer(http.HandlerFunc(server.HandleWebSocket))
	t.Cleanup(ts.Close)
	return server, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url, peerID string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(url+"?peer_id="+peerID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestRelayServer_Register(t *testing.T) {
	server, url := startRelay(t, RelayConfig{})

	conn := dial(t, url, "room-1")
	msg := readMessage(t, conn)

	assert.Equal(t, TypeRegistered, msg.Type)
	assert.Eventually(t, func() bool { return server.PeerCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestRelayServer_IdentityTaken(t *testing.T) {
	_, url := startRelay(t, RelayConfig{})

	first := dial(t, url, "room-1")
	require.Equal(t, TypeRegistered, readMessage(t, first).Type)

	second := dial(t, url, "room-1")
	msg := readMessage(t, second)

	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, CodeIdentityTaken, msg.Code)

	// The original holder keeps its registration.
	require.NoError(t, first.WriteJSON(Message{Type: TypeConnect, To: "room-1"}))
	echo := readMessage(t, first)
	assert.Equal(t, TypeConnect, echo.Type)
	assert.Equal(t, "room-1", echo.From)
}

func TestRelayServer_Routing(t *testing.T) {
	_, url := startRelay(t, RelayConfig{})

	broadcaster := dial(t, url, "room-1")
	require.Equal(t, TypeRegistered, readMessage(t, broadcaster).Type)
	receiver := dial(t, url, "rcv-1")
	require.Equal(t, TypeRegistered, readMessage(t, receiver).Type)

	require.NoError(t, receiver.WriteJSON(Message{Type: TypeConnect, To: "room-1"}))

	msg := readMessage(t, broadcaster)
	assert.Equal(t, TypeConnect, msg.Type)
	assert.Equal(t, "rcv-1", msg.From, "relay must stamp the sender identity")
}

func TestRelayServer_SpoofedFromIsOverwritten(t *testing.T) {
	_, url := startRelay(t, RelayConfig{})

	broadcaster := dial(t, url, "room-1")
	require.Equal(t, TypeRegistered, readMessage(t, broadcaster).Type)
	receiver := dial(t, url, "rcv-1")
	require.Equal(t, TypeRegistered, readMessage(t, receiver).Type)

	require.NoError(t, receiver.WriteJSON(Message{Type: TypeCall, To: "room-1", From: "someone-else"}))

	msg := readMessage(t, broadcaster)
	assert.Equal(t, "rcv-1", msg.From)
}

func TestRelayServer_UnknownDestination(t *testing.T) {
	_, url := startRelay(t, RelayConfig{})

	conn := dial(t, url, "rcv-1")
	require.Equal(t, TypeRegistered, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeConnect, To: "nobody"}))

	msg := readMessage(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, CodeUnknownPeer, msg.Code)
}

func TestRelayServer_PeerGone(t *testing.T) {
	_, url := startRelay(t, RelayConfig{})

	broadcaster := dial(t, url, "room-1")
	require.Equal(t, TypeRegistered, readMessage(t, broadcaster).Type)
	receiver := dial(t, url, "rcv-1")
	require.Equal(t, TypeRegistered, readMessage(t, receiver).Type)

	require.NoError(t, receiver.WriteJSON(Message{Type: TypeConnect, To: "room-1"}))
	require.Equal(t, TypeConnect, readMessage(t, broadcaster).Type)

	receiver.Close()

	msg := readMessage(t, broadcaster)
	assert.Equal(t, TypePeerGone, msg.Type)
	assert.Equal(t, "rcv-1", msg.From)
}

func TestRelayServer_IdentityFreedAfterDisconnect(t *testing.T) {
	server, url := startRelay(t, RelayConfig{})

	first := dial(t, url, "room-1")
	require.Equal(t, TypeRegistered, readMessage(t, first).Type)
	first.Close()

	assert.Eventually(t, func() bool { return server.PeerCount() == 0 }, time.Second, 10*time.Millisecond)

	second := dial(t, url, "room-1")
	assert.Equal(t, TypeRegistered, readMessage(t, second).Type)
}

func TestRelayServer_BadFrames(t *testing.T) {
	_, url := startRelay(t, RelayConfig{})

	conn := dial(t, url, "rcv-1")
	require.Equal(t, TypeRegistered, readMessage(t, conn).Type)

	t.Run("unknown type", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(Message{Type: "bogus", To: "room-1"}))
		msg := readMessage(t, conn)
		assert.Equal(t, TypeError, msg.Type)
		assert.Equal(t, CodeBadFrame, msg.Code)
	})

	t.Run("missing destination", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(Message{Type: TypeConnect}))
		msg := readMessage(t, conn)
		assert.Equal(t, TypeError, msg.Type)
		assert.Equal(t, CodeBadFrame, msg.Code)
	})
}

func TestRelayServer_ConnectionRateLimit(t *testing.T) {
	_, url := startRelay(t, RelayConfig{ConnsPerMinute: 2})

	dialOK := func(id string) bool {
		conn, resp, err := websocket.DefaultDialer.Dial(url+"?peer_id="+id, nil)
		if err != nil {
			if resp != nil {
				assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
			}
			return false
		}
		conn.Close()
		return true
	}

	assert.True(t, dialOK("p1"))
	assert.True(t, dialOK("p2"))
	assert.False(t, dialOK("p3"), "third connection in the same minute must be rejected")
}
