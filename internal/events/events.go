// Package events publishes post lifecycle events to the live feed and external consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/observability"
)

// Type names a post event.
type Type string

const (
	PostCreated Type = "post.created"
	PostUpdated Type = "post.updated"
	PostDeleted Type = "post.deleted"
	PostLiked   Type = "post.liked"
	PostUnliked Type = "post.unliked"
)

// PostEvent is the payload carried on every sink.
type PostEvent struct {
	Type       Type      `json:"type"`
	PostID     uint      `json:"post_id"`
	Title      string    `json:"title,omitempty"`
	Actor      string    `json:"actor"`
	LikesCount int       `json:"likes_count"`
	At         time.Time `json:"at"`
}

// Encode returns the JSON form of the event.
func (e PostEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a JSON post event.
func Decode(b []byte) (PostEvent, error) {
	var e PostEvent
	err := json.Unmarshal(b, &e)
	return e, err
}

// Publisher delivers post events.
type Publisher interface {
	Publish(ctx context.Context, e PostEvent) error
}

// Func adapts a function to Publisher.
type Func func(ctx context.Context, e PostEvent) error

func (f Func) Publish(ctx context.Context, e PostEvent) error {
	return f(ctx, e)
}

// Nop drops every event.
var Nop Publisher = Func(func(context.Context, PostEvent) error { return nil })

// Sink is a named publisher inside a Multi.
type Sink struct {
	Name      string
	Publisher Publisher
}

// Multi fans an event out to every sink. A failing sink does not stop the others.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Add appends a sink.
func (m *Multi) Add(name string, p Publisher) {
	m.sinks = append(m.sinks, Sink{Name: name, Publisher: p})
}

func (m *Multi) Publish(ctx context.Context, e PostEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Publisher.Publish(ctx, e); err != nil {
			observability.EventPublishFailures.WithLabelValues(s.Name).Inc()
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishBestEffort sends e and logs failures instead of returning them.
// Requests never fail because a sink is down.
func PublishBestEffort(ctx context.Context, p Publisher, e PostEvent) {
	if p == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if err := p.Publish(ctx, e); err != nil {
		middleware.Logger.WarnContext(ctx, "post event not delivered",
			slog.String("type", string(e.Type)),
			slog.Uint64("post_id", uint64(e.PostID)),
			slog.String("error", err.Error()),
		)
	}
}
