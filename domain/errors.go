package domain

import "fmt"

// ValidationError rejects bad caller input before any state is mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ProviderError wraps an LLM or TTS failure. It is never shown to the end
// user; the orchestrator maps it to a localized fallback reply.
type ProviderError struct {
	RateLimited bool
	Err         error
}

func (e *ProviderError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("provider rate limited: %v", e.Err)
	}
	return fmt.Sprintf("provider unavailable: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PersistenceError marks a failed durable write. In-memory state already
// reflects the mutation, so callers log it and carry on.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// TransportError reports a WhatsApp connection or send failure. Surfaced to
// the admin panel, never into established conversations.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
