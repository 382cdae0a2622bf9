package events

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/observability"

	kgo "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by post id, so all events
// for one post land on the same partition in order.
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher creates an async writer for brokers (comma separated).
// Delivery failures are counted and logged from the completion callback.
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	var addrs []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	w := &kgo.Writer{
		Addr:         kgo.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kgo.Hash{},
		RequiredAcks: kgo.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kgo.Message, err error) {
			if err == nil {
				return
			}
			observability.EventPublishFailures.WithLabelValues("kafka").Add(float64(len(messages)))
			middleware.Logger.Warn("kafka delivery failed",
				slog.Int("messages", len(messages)),
				slog.String("error", err.Error()))
		},
	}
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e PostEvent) error {
	payload, err := e.Encode()
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kgo.Message{
		Key:   []byte(strconv.FormatUint(uint64(e.PostID), 10)),
		Value: payload,
		Time:  e.At,
		Headers: []kgo.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
