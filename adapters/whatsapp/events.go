package whatsapp

import (
	"context"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/asistenteai/asistente/adapters/message_broker"
	"github.com/asistenteai/asistente/domain"
	"github.com/asistenteai/asistente/usecase"
	"github.com/asistenteai/asistente/utils/log"
	"go.uber.org/zap"
)

const turnTimeout = 90 * time.Second

func (b *Bridge) handleEvent(evt interface{}) {
	ctx := context.Background()

	switch v := evt.(type) {
	case *events.Connected:
		b.mu.Lock()
		b.isReady = true
		b.isConnecting = false
		b.qrDataURL = ""
		b.mu.Unlock()
		log.WithCtx(ctx).Info("whatsapp connected")
		b.publishStatus(ctx)

	case *events.Disconnected:
		b.mu.Lock()
		b.isReady = false
		b.mu.Unlock()
		log.WithCtx(ctx).Warn("whatsapp disconnected")
		b.publishStatus(ctx)

	case *events.LoggedOut:
		b.mu.Lock()
		b.isReady = false
		b.isConnecting = false
		b.mu.Unlock()
		log.WithCtx(ctx).Warn("whatsapp logged out", zap.Stringer("reason", v.Reason))
		b.publishStatus(ctx)

	case *events.Message:
		// whatsmeow dispatches events synchronously; a turn takes seconds.
		go b.handleMessage(v)
	}
}

func (b *Bridge) handleMessage(evt *events.Message) {
	if evt.Info.IsFromMe {
		return
	}
	text := extractText(evt.Message)
	if text == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()
	logger := log.WithCtx(ctx).With(
		zap.String("channel", "whatsapp"),
		zap.String("chat", evt.Info.Chat.String()),
	)

	settings := b.settings.Current()
	if evt.Info.IsGroup {
		mentioned, quoted := b.addressedInGroup(evt)
		if !shouldHandleGroup(settings, mentioned, quoted) {
			logger.Debug("group message ignored")
			return
		}
	}

	identity, displayName := usecase.ResolveWhatsAppIdentity(usecase.WhatsAppSource{
		PhoneNumber: evt.Info.Sender.User,
		ChatID:      evt.Info.Chat.String(),
		PushName:    evt.Info.PushName,
	})

	_, reply, err := b.chat.ProcessTurn(ctx, usecase.Inbound{
		Identity:    identity,
		DisplayName: displayName,
		Content:     text,
		Channel:     "whatsapp",
	})
	if err != nil {
		logger.Error("processing whatsapp turn", zap.Error(err))
		return
	}

	if err := b.send(ctx, evt.Info.Chat, reply.Content); err != nil {
		logger.Error("sending whatsapp reply", zap.Error(err))
		return
	}

	message_broker.PublishActivity(ctx, b.broker, domain.ActivityEvent{
		Type:     "message",
		Channel:  "whatsapp",
		Identity: identity,
		Text:     text,
	})
}

// shouldHandleGroup applies the group gate: groups must be enabled and the
// bot must have been addressed, either by @-mention or by quoting one of its
// own messages. Everything else is silently dropped.
func shouldHandleGroup(settings domain.Settings, mentioned, quotedOwn bool) bool {
	if !settings.EnableGroupMessages {
		return false
	}
	return mentioned || quotedOwn
}

// addressedInGroup inspects the message context info for an @-mention of the
// bot or a quote of a message the bot sent.
func (b *Bridge) addressedInGroup(evt *events.Message) (mentioned, quotedOwn bool) {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()
	if client == nil || client.Store.ID == nil {
		return false, false
	}
	own := *client.Store.ID

	ci := evt.Message.GetExtendedTextMessage().GetContextInfo()
	if ci == nil {
		return false, false
	}
	for _, raw := range ci.GetMentionedJID() {
		jid, err := types.ParseJID(raw)
		if err == nil && jid.User == own.User {
			mentioned = true
			break
		}
	}
	if participant := ci.GetParticipant(); participant != "" {
		jid, err := types.ParseJID(participant)
		if err == nil && jid.User == own.User {
			quotedOwn = true
		}
	}
	return mentioned, quotedOwn
}

// extractText pulls the body out of plain and extended text messages. Media
// and other message kinds are not handled.
func extractText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if text := msg.GetConversation(); text != "" {
		return text
	}
	return msg.GetExtendedTextMessage().GetText()
}
