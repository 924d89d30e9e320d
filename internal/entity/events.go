package entity

import "time"

// Event represents a domain event.
type Event interface {
	EventType() string
}

// OrderSubmitted is emitted when a checkout is handed to a message broker.
type OrderSubmitted struct {
	OrderRef    string       `json:"order_ref"`
	Payload     OrderPayload `json:"payload"`
	SubmittedAt time.Time    `json:"submitted_at"`
}

func (e OrderSubmitted) EventType() string { return "OrderSubmitted" }
