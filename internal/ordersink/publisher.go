package ordersink

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/istominvi/shaurmaniya/internal/checkout"
	"github.com/istominvi/shaurmaniya/internal/entity"
	"github.com/istominvi/shaurmaniya/internal/messaging"
)

// PublisherSink hands orders to a message broker as OrderSubmitted events.
type PublisherSink struct {
	publisher messaging.Publisher
	topic     string
	newRef    func() string
	now       func() time.Time
}

// NewPublisherSink creates a PublisherSink. An empty topic means
// messaging.TopicOrderSubmitted.
func NewPublisherSink(publisher messaging.Publisher, topic string) *PublisherSink {
	if topic == "" {
		topic = messaging.TopicOrderSubmitted
	}
	return &PublisherSink{
		publisher: publisher,
		topic:     topic,
		newRef:    uuid.NewString,
		now:       time.Now,
	}
}

func (s *PublisherSink) Send(ctx context.Context, payload entity.OrderPayload) (checkout.Receipt, error) {
	event := entity.OrderSubmitted{
		OrderRef:    s.newRef(),
		Payload:     payload,
		SubmittedAt: s.now().UTC(),
	}

	if err := s.publisher.PublishEvent(ctx, s.topic, event.OrderRef, event); err != nil {
		return checkout.Receipt{}, &checkout.DispatchError{
			Retryable: true,
			Err:       fmt.Errorf("failed to publish %s event: %w", event.EventType(), err),
		}
	}
	return checkout.Receipt{StatusCode: http.StatusAccepted}, nil
}
