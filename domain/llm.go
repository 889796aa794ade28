package domain

import "context"

// Llm abstracts any chat/LLM provider.
type Llm interface {
	// Generate sends the assembled conversation turns and returns the
	// model's reply. Failures come back as *ProviderError.
	Generate(ctx context.Context, turns []Turn) (string, error)

	// UpdateCredential swaps the provider API key at runtime. An empty key
	// falls back to the ambient credential.
	UpdateCredential(apiKey string)
}
