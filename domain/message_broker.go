package domain

import (
	"context"
	"time"
)

// MessageBroker defines the interface for in-process event fan-out between
// the transports and the admin feed.
type MessageBroker interface {
	// Publish sends a message to a specific topic with a routing key.
	Publish(ctx context.Context, topic string, routingKey string, message []byte) error

	// Subscribe listens for messages on a specific topic and routing key.
	Subscribe(ctx context.Context, topic string, routingKey string) (<-chan BrokerMessage, error)

	// Close closes the message broker connection.
	Close() error
}

// BrokerMessage represents a message received from the broker.
type BrokerMessage struct {
	Topic      string
	RoutingKey string
	Payload    []byte
	Timestamp  time.Time
}

// ActivityEvent is published whenever a turn completes or the WhatsApp
// bridge changes state, and fans out to admin panel WebSocket clients.
type ActivityEvent struct {
	Type      string           `json:"type"`
	Channel   string           `json:"channel,omitempty"`
	Identity  Identity         `json:"identity,omitempty"`
	Text      string           `json:"text,omitempty"`
	Status    *TransportStatus `json:"status,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
