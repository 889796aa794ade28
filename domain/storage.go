package domain

import "context"

// HistoryStore is the append-only per-identity conversation log. Ids increase
// monotonically with append order; that is the sole ordering guarantee.
type HistoryStore interface {
	// Append assigns the next global id, stores the message in memory and
	// flushes it to the durable backing. A *PersistenceError means the
	// in-memory append succeeded but the flush did not.
	Append(ctx context.Context, identity Identity, content string, sender Sender) (Message, error)

	// ReadAll returns every message for the identity sorted ascending by id.
	ReadAll(ctx context.Context, identity Identity) ([]Message, error)

	// Clear deletes all messages for one identity. Idempotent.
	Clear(ctx context.Context, identity Identity) error

	// ClearAll wipes every conversation. Administrative, irreversible.
	ClearAll(ctx context.Context) error
}

// SettingsStore persists the single global settings record.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
}

// UserStore holds web login accounts.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
}
