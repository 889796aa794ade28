package message_broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asistenteai/asistente/domain"
	"github.com/asistenteai/asistente/utils/log"
	"go.uber.org/zap"
)

// ActivityTopic carries turn and bridge events for the admin feed.
const ActivityTopic = "activity.events"

// ChannelMessageBroker implements domain.MessageBroker with in-process Go
// channels. One buffered channel per topic/routing-key pair.
type ChannelMessageBroker struct {
	mu     sync.Mutex
	topics map[string]chan domain.BrokerMessage
	closed bool
}

func NewChannelMessageBroker() *ChannelMessageBroker {
	return &ChannelMessageBroker{
		topics: make(map[string]chan domain.BrokerMessage),
	}
}

func makeKey(topic, routingKey string) string {
	return topic + ":" + routingKey
}

func (b *ChannelMessageBroker) channel(topic, routingKey string) (chan domain.BrokerMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("message broker is closed")
	}
	key := makeKey(topic, routingKey)
	ch, ok := b.topics[key]
	if !ok {
		ch = make(chan domain.BrokerMessage, 100)
		b.topics[key] = ch
	}
	return ch, nil
}

// Publish sends a message to a specific topic and routing key. A full topic
// channel drops the message rather than blocking the caller.
func (b *ChannelMessageBroker) Publish(ctx context.Context, topic string, routingKey string, message []byte) error {
	ch, err := b.channel(topic, routingKey)
	if err != nil {
		return err
	}

	msg := domain.BrokerMessage{
		Topic:      topic,
		RoutingKey: routingKey,
		Payload:    message,
		Timestamp:  time.Now(),
	}

	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("topic channel is full: %s:%s", topic, routingKey)
	}
}

// Subscribe listens for messages on a specific topic and routing key.
func (b *ChannelMessageBroker) Subscribe(ctx context.Context, topic string, routingKey string) (<-chan domain.BrokerMessage, error) {
	ch, err := b.channel(topic, routingKey)
	if err != nil {
		return nil, err
	}
	log.WithCtx(ctx).Info("subscribed to topic",
		zap.String("topic", topic),
		zap.String("routingKey", routingKey))
	return ch, nil
}

// Close closes the broker and all topic channels.
func (b *ChannelMessageBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, ch := range b.topics {
		close(ch)
	}
	b.topics = make(map[string]chan domain.BrokerMessage)
	return nil
}
