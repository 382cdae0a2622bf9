package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/events"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ta *testApp) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = ta.app.Listener(ln) }()
	t.Cleanup(func() { _ = ta.app.Shutdown() })
	return ln.Addr().String()
}

func TestFeed_ReceivesPostEvents(t *testing.T) {
	ta := newTestApp(t)
	addr := ta.listen(t)
	session := ta.user("alice")

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/feed", nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return ta.srv.feedHub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	post := ta.createPost(session, "Live", "body", nil)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var e events.PostEvent
	require.NoError(t, json.Unmarshal(raw, &e))
	assert.Equal(t, events.PostCreated, e.Type)
	assert.Equal(t, post.ID, e.PostID)
	assert.Equal(t, "Live", e.Title)
	assert.Equal(t, "alice", e.Actor)
}

func TestFeed_ClosesOnShutdown(t *testing.T) {
	ta := newTestApp(t)
	addr := ta.listen(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/feed", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return ta.srv.feedHub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ta.srv.feedHub.Shutdown(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestFeed_RequiresUpgrade(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.get("/ws/feed")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestFeed_DisabledByFlag(t *testing.T) {
	ta := newTestApp(t, func(c *config.Config) { c.FeatureFlags = "live_feed=off" })

	assert.Equal(t, http.StatusNotFound, ta.get("/ws/feed").StatusCode)
	assert.NotContains(t, readBody(t, ta.get("/")), "/ws/feed")
}

func TestFeed_EnabledByDefault(t *testing.T) {
	ta := newTestApp(t)
	assert.Contains(t, readBody(t, ta.get("/")), "/ws/feed")
}
