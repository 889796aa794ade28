package domain

import "time"

// Identity is the canonical key for a conversation participant. Web chats use
// the chosen username as-is; WhatsApp chats use a "whatsapp_" prefixed number
// or chat id, so the same person on two transports is two identities.
type Identity string

func (i Identity) String() string { return string(i) }

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one stored line of a conversation. Created only by the history
// store on append, immutable afterwards, deleted only in bulk.
type Message struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Identity  Identity  `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// Role tags a turn as sent to the LLM. The Gemini chat interface only accepts
// alternating user/model turns, there is no hidden system role.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one role-tagged unit of conversation context. Never persisted,
// rebuilt from settings plus history on every exchange.
type Turn struct {
	Role Role
	Text string
}

// User is a registered web chat account.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
