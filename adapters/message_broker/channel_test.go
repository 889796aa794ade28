package message_broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asistenteai/asistente/domain"
)

func TestPublishSubscribe(t *testing.T) {
	broker := NewChannelMessageBroker()
	defer broker.Close()
	ctx := context.Background()

	sub, err := broker.Subscribe(ctx, "test.topic", "key")
	require.NoError(t, err)

	require.NoError(t, broker.Publish(ctx, "test.topic", "key", []byte("hola")))

	select {
	case msg := <-sub:
		assert.Equal(t, "test.topic", msg.Topic)
		assert.Equal(t, "key", msg.RoutingKey)
		assert.Equal(t, []byte("hola"), msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestPublishAfterCloseFails(t *testing.T) {
	broker := NewChannelMessageBroker()
	require.NoError(t, broker.Close())

	err := broker.Publish(context.Background(), "test.topic", "", []byte("hola"))
	assert.Error(t, err)
}

func TestPublishFullChannelDoesNotBlock(t *testing.T) {
	broker := NewChannelMessageBroker()
	defer broker.Close()
	ctx := context.Background()

	var err error
	for i := 0; i < 200; i++ {
		err = broker.Publish(ctx, "test.topic", "", []byte("hola"))
		if err != nil {
			break
		}
	}
	assert.Error(t, err)
}

func TestPublishActivityDeliversEvent(t *testing.T) {
	broker := NewChannelMessageBroker()
	defer broker.Close()
	ctx := context.Background()

	sub, err := broker.Subscribe(ctx, ActivityTopic, "")
	require.NoError(t, err)

	PublishActivity(ctx, broker, domain.ActivityEvent{
		Type:     "message",
		Channel:  "web",
		Identity: "alice",
		Text:     "hola",
	})

	select {
	case msg := <-sub:
		var ev domain.ActivityEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, "message", ev.Type)
		assert.Equal(t, domain.Identity("alice"), ev.Identity)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for activity event")
	}
}

func TestPublishActivityTolerantOfNilBroker(t *testing.T) {
	assert.NotPanics(t, func() {
		PublishActivity(context.Background(), nil, domain.ActivityEvent{Type: "message"})
	})
}
