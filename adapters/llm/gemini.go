package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/genai"

	"github.com/asistenteai/asistente/domain"
	"github.com/asistenteai/asistente/utils/log"
	"go.uber.org/zap"
)

const geminiModel = "gemini-2.5-flash"

type GeminiClient struct {
	mu     sync.RWMutex
	client *genai.Client
}

// NewGeminiClient builds the provider client. apiKey may be empty, in which
// case the SDK picks up GEMINI_API_KEY from the environment.
func NewGeminiClient(ctx context.Context, apiKey string) domain.Llm {
	client, err := newClient(ctx, apiKey)
	if err != nil {
		panic(fmt.Errorf("creating genai client: %w", err))
	}
	return &GeminiClient{client: client}
}

func newClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
}

// Generate sends the assembled turns and returns the reply text. Provider
// failures are wrapped into *domain.ProviderError so the orchestrator can
// pick the right fallback.
func (g *GeminiClient) Generate(ctx context.Context, turns []domain.Turn) (string, error) {
	contents := make([]*genai.Content, len(turns))
	for i, t := range turns {
		role := genai.RoleModel
		if t.Role == domain.RoleUser {
			role = genai.RoleUser
		}
		contents[i] = &genai.Content{
			Role: role,
			Parts: []*genai.Part{
				{Text: t.Text},
			},
		}
	}

	g.mu.RLock()
	client := g.client
	g.mu.RUnlock()

	resp, err := client.Models.GenerateContent(ctx, geminiModel, contents, nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			return "", &domain.ProviderError{RateLimited: true, Err: err}
		}
		return "", &domain.ProviderError{Err: err}
	}

	text := resp.Text()
	if text == "" {
		return "", &domain.ProviderError{Err: errors.New("empty completion")}
	}
	return text, nil
}

// UpdateCredential rebuilds the client with a new API key. On failure the
// previous client stays active.
func (g *GeminiClient) UpdateCredential(apiKey string) {
	client, err := newClient(context.Background(), apiKey)
	if err != nil {
		log.With(zap.Error(err)).Error("rebuilding genai client failed, keeping previous credential")
		return
	}
	g.mu.Lock()
	g.client = client
	g.mu.Unlock()
}
