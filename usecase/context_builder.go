package usecase

import (
	"strings"
	"time"

	"github.com/asistenteai/asistente/domain"
)

const (
	// defaultPersona keeps the assistant answering in Spanish no matter the
	// input language.
	defaultPersona = `Eres un asistente de IA que SIEMPRE responde en español. Tu nombre es Asistente y te diriges al usuario como "{username}". Siempre menciona su nombre al menos una vez en cada respuesta de manera natural y amigable. Sin importar el idioma en que te escriban, siempre debes responder en español de manera natural y fluida.`

	// instructionMarker prefixes every persona turn so stale instructions
	// can be recognized and filtered out of later contexts.
	instructionMarker = "[Instrucciones]"

	// personaAck is the fixed model turn that confirms the instructions.
	personaAck = "Entendido. Seguiré esas instrucciones durante toda la conversación."

	usernamePlaceholder = "{username}"
)

// BuildContext assembles the ordered turns handed to the LLM for one
// exchange: persona instruction, fixed acknowledgment, filtered history and
// the current user message. No truncation is applied here.
func BuildContext(
	identity domain.Identity,
	displayName string,
	current string,
	settings domain.Settings,
	history []domain.Message,
	now time.Time,
) []domain.Turn {
	persona := personaFor(identity, settings)
	persona = strings.ReplaceAll(persona, usernamePlaceholder, displayName)

	var b strings.Builder
	b.WriteString(instructionMarker)
	b.WriteString("\n")
	b.WriteString(persona)
	b.WriteString("\n\nFecha y hora actual: ")
	b.WriteString(now.Format("02/01/2006 15:04"))
	b.WriteString(".")

	turns := make([]domain.Turn, 0, len(history)+3)
	turns = append(turns,
		domain.Turn{Role: domain.RoleUser, Text: b.String()},
		domain.Turn{Role: domain.RoleModel, Text: personaAck},
	)

	for _, msg := range history {
		if msg.Content == "" {
			continue
		}
		// Personas persisted by earlier settings generations must never
		// leak into a fresh context.
		if strings.HasPrefix(msg.Content, instructionMarker) || msg.Content == personaAck {
			continue
		}
		role := domain.RoleModel
		if msg.Sender == domain.SenderUser {
			role = domain.RoleUser
		}
		turns = append(turns, domain.Turn{Role: role, Text: msg.Content})
	}

	return append(turns, domain.Turn{Role: domain.RoleUser, Text: current})
}

// personaFor picks the active persona template: restricted override first,
// then the custom prompt, then the built-in default.
func personaFor(identity domain.Identity, settings domain.Settings) string {
	if settings.RestrictedPrompt != "" && settings.IsRestrictedIdentity(identity) {
		return settings.RestrictedPrompt
	}
	if settings.CustomPrompt != "" {
		return settings.CustomPrompt
	}
	return defaultPersona
}
