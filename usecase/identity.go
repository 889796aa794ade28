package usecase

import (
	"fmt"
	"strings"

	"github.com/asistenteai/asistente/domain"
)

const (
	minUsernameLen = 2
	maxUsernameLen = 20

	whatsappPrefix = "whatsapp_"
)

// ResolveWebIdentity maps a chosen username to a conversation identity.
func ResolveWebIdentity(username string) (domain.Identity, error) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return "", &domain.ValidationError{
			Field:  "username",
			Reason: fmt.Sprintf("must be between %d and %d characters", minUsernameLen, maxUsernameLen),
		}
	}
	return domain.Identity(username), nil
}

// WhatsAppSource carries the origin of an inbound WhatsApp message.
type WhatsAppSource struct {
	PhoneNumber string
	ChatID      string
	PushName    string
}

// ResolveWhatsAppIdentity derives the namespaced identity and the
// human-facing name used for the {username} persona placeholder. The phone
// number wins over the chat id when both are present.
func ResolveWhatsAppIdentity(src WhatsAppSource) (domain.Identity, string) {
	key := src.PhoneNumber
	if key == "" {
		key = src.ChatID
	}
	display := src.PushName
	if display == "" {
		display = src.PhoneNumber
	}
	if display == "" {
		display = "Usuario"
	}
	return domain.Identity(whatsappPrefix + key), display
}
