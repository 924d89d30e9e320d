package messaging

import (
	"context"

	"github.com/istominvi/shaurmaniya/internal/entity"
)

// TopicOrderSubmitted carries accepted storefront orders.
const TopicOrderSubmitted = "orders.submitted"

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event entity.Event) error
}
