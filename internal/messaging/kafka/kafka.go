package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/istominvi/shaurmaniya/internal/entity"
	kafkaGo "github.com/segmentio/kafka-go"
)

// Publisher writes JSON events to Kafka through a single long-lived writer.
// The topic is chosen per message.
type Publisher struct {
	writer *kafkaGo.Writer
}

// EventTypeHeader carries the event type of every published message.
const EventTypeHeader = "event_type"

// NewPublisher creates a Kafka publisher for the given brokers.
func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		writer: &kafkaGo.Writer{
			Addr:                   kafkaGo.TCP(brokers...),
			Balancer:               &kafkaGo.LeastBytes{},
			RequiredAcks:           kafkaGo.RequireAll,
			WriteTimeout:           10 * time.Second,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *Publisher) PublishEvent(ctx context.Context, topic string, key string, event entity.Event) error {
	msg, err := newMessage(topic, key, event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to %s: %w", topic, err)
	}

	slog.Debug("Event published", "topic", topic, "key", key, "type", event.EventType())
	return nil
}

// Close flushes pending writes and releases the broker connections.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func newMessage(topic, key string, event entity.Event) (kafkaGo.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafkaGo.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return kafkaGo.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Headers: []kafkaGo.Header{
			{Key: EventTypeHeader, Value: []byte(event.EventType())},
		},
	}, nil
}
