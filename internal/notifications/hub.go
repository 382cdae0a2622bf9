// Package notifications delivers post events to live feed websocket clients.
package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"inkwell/internal/events"
	"inkwell/internal/middleware"
	"inkwell/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const defaultMaxConns = 10000

var (
	ErrHubFull   = errors.New("feed connection limit reached")
	ErrHubClosed = errors.New("feed hub is shut down")
)

// EventSource delivers events published by any server instance.
type EventSource interface {
	Subscribe(ctx context.Context, onEvent func(events.PostEvent)) error
}

// FeedHub fans post events out to every connected feed client.
type FeedHub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	maxConns int
	closed   bool
}

func NewFeedHub(maxConns int) *FeedHub {
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	return &FeedHub{
		clients:  make(map[*Client]struct{}),
		maxConns: maxConns,
	}
}

func (h *FeedHub) Name() string { return "feed" }

// Register adds a connection. userID is zero for anonymous viewers.
func (h *FeedHub) Register(conn *websocket.Conn, userID uint) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if len(h.clients) >= h.maxConns {
		return nil, ErrHubFull
	}

	client := NewClient(h, conn, userID)
	h.clients[client] = struct{}{}
	observability.WebSocketConnections.Inc()
	return client, nil
}

func (h *FeedHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
	}
	h.mu.Unlock()

	if ok {
		observability.WebSocketConnections.Dec()
		client.close()
	}
}

// Count returns the number of connected clients.
func (h *FeedHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends the event to every client.
func (h *FeedHub) Broadcast(e events.PostEvent) {
	payload, err := e.Encode()
	if err != nil {
		middleware.Logger.Error("failed to encode feed event", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.TrySend(payload)
	}
}

// Publish lets the hub act as an events.Publisher when there is no shared bus.
func (h *FeedHub) Publish(_ context.Context, e events.PostEvent) error {
	h.Broadcast(e)
	return nil
}

// StartWiring subscribes the hub to src until ctx is done.
func (h *FeedHub) StartWiring(ctx context.Context, src EventSource) error {
	return src.Subscribe(ctx, h.Broadcast)
}

// Shutdown closes every client's send queue, which makes its WritePump send a
// going-away close frame. New registrations are refused.
func (h *FeedHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for client := range clients {
		observability.WebSocketConnections.Dec()
		client.close()
	}
	return nil
}
