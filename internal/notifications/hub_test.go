package notifications

import (
	"context"
	"testing"
	"time"

	"inkwell/internal/events"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func receive(t *testing.T, c *Client) events.PostEvent {
	t.Helper()
	select {
	case msg := <-c.Send:
		e, err := events.Decode(msg)
		require.NoError(t, err)
		return e
	case <-time.After(testEventuallyTimeout):
		t.Fatal("timed out waiting for feed message")
		return events.PostEvent{}
	}
}

func TestFeedHub_BroadcastReachesEveryClient(t *testing.T) {
	hub := NewFeedHub(0)
	a, err := hub.Register(nil, 0)
	require.NoError(t, err)
	b, err := hub.Register(nil, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Count())

	hub.Broadcast(events.PostEvent{Type: events.PostCreated, PostID: 3, Title: "Hi"})

	for _, c := range []*Client{a, b} {
		e := receive(t, c)
		assert.Equal(t, events.PostCreated, e.Type)
		assert.Equal(t, uint(3), e.PostID)
	}
}

func TestFeedHub_PublishActsAsPublisher(t *testing.T) {
	hub := NewFeedHub(0)
	c, err := hub.Register(nil, 0)
	require.NoError(t, err)

	var p events.Publisher = hub
	require.NoError(t, p.Publish(context.Background(), events.PostEvent{Type: events.PostLiked, PostID: 1, LikesCount: 4}))

	e := receive(t, c)
	assert.Equal(t, 4, e.LikesCount)
}

func TestFeedHub_ConnectionLimit(t *testing.T) {
	hub := NewFeedHub(1)
	_, err := hub.Register(nil, 0)
	require.NoError(t, err)

	_, err = hub.Register(nil, 0)
	assert.ErrorIs(t, err, ErrHubFull)
}

func TestFeedHub_UnregisterClosesSendQueue(t *testing.T) {
	hub := NewFeedHub(0)
	c, err := hub.Register(nil, 0)
	require.NoError(t, err)

	hub.UnregisterClient(c)
	hub.UnregisterClient(c)
	assert.Zero(t, hub.Count())

	_, open := <-c.Send
	assert.False(t, open)

	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewFeedHub(0)
	c, err := hub.Register(nil, 0)
	require.NoError(t, err)

	for i := 0; i < sendBuffer+5; i++ {
		c.TrySend([]byte(`{"type":"post.created"}`))
	}
	assert.Len(t, c.Send, sendBuffer)
}

func TestFeedHub_ShutdownRefusesNewClients(t *testing.T) {
	hub := NewFeedHub(0)
	c, err := hub.Register(nil, 0)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))

	_, open := <-c.Send
	assert.False(t, open)
	_, err = hub.Register(nil, 0)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestFeedHub_StartWiringFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewFeedHub(0)
	c, err := hub.Register(nil, 0)
	require.NoError(t, err)

	bus := events.NewRedisPublisher(rdb)
	require.NoError(t, hub.StartWiring(ctx, bus))

	require.NoError(t, bus.Publish(ctx, events.PostEvent{Type: events.PostDeleted, PostID: 9, Actor: "alice"}))

	e := receive(t, c)
	assert.Equal(t, events.PostDeleted, e.Type)
	assert.Equal(t, "alice", e.Actor)
}
