package events

import (
	"context"
	"log/slog"
	"runtime/debug"

	"inkwell/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// FeedChannel is the Redis pub/sub channel carrying post events.
const FeedChannel = "inkwell:feed:posts"

// RedisPublisher publishes events on FeedChannel so every server instance sees them.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, e PostEvent) error {
	if p.rdb == nil {
		return nil
	}
	payload, err := e.Encode()
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, FeedChannel, payload).Err()
}

// Subscribe calls onEvent for every event on FeedChannel until ctx is done.
// The subscription is confirmed before Subscribe returns.
func (p *RedisPublisher) Subscribe(ctx context.Context, onEvent func(PostEvent)) error {
	if p.rdb == nil {
		return nil
	}
	sub := p.rdb.Subscribe(ctx, FeedChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				e, err := Decode([]byte(msg.Payload))
				if err != nil {
					middleware.Logger.Warn("dropping malformed feed event", slog.String("error", err.Error()))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in feed subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onEvent(e)
				}()
			}
		}
	}()

	return nil
}
