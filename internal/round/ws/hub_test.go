package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_SnapshotThenBroadcast(t *testing.T) {
	snap := func(context.Context) ([]byte, bool) {
		b, _ := json.Marshal(events.RoundEvent{Type: "SNAPSHOT", Round: events.RoundSnapshot{RoundID: "r-1", Phase: "OPEN"}})
		return b, true
	}
	hub := NewHub(func(*http.Request) bool { return true }, snap, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dial(t, srv)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first events.RoundEvent
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "SNAPSHOT", first.Type)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	hub.Broadcast(events.RoundEvent{Type: events.RoundBettingClosed, Round: events.RoundSnapshot{RoundID: "r-1", Phase: "PROCESSING"}})

	var next events.RoundEvent
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, events.RoundBettingClosed, next.Type)
	assert.Equal(t, "PROCESSING", next.Round.Phase)
}

func TestHub_PingPongAndDisconnect(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true }, nil, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dial(t, srv)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "ping"}))

	var pong map[string]string
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}
