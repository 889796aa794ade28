package message_broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/asistenteai/asistente/domain"
	"github.com/asistenteai/asistente/utils/log"
	"go.uber.org/zap"
)

// PublishActivity marshals the event onto the activity topic. Delivery is
// best effort; a full feed never blocks a turn.
func PublishActivity(ctx context.Context, broker domain.MessageBroker, ev domain.ActivityEvent) {
	if broker == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.WithCtx(ctx).Error("marshaling activity event", zap.Error(err))
		return
	}
	if err := broker.Publish(ctx, ActivityTopic, "", payload); err != nil {
		log.WithCtx(ctx).Debug("activity event dropped", zap.String("type", ev.Type), zap.Error(err))
	}
}
