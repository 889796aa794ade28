package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/asistenteai/asistente/domain"
	"github.com/asistenteai/asistente/utils/log"
	"go.uber.org/zap"
)

const (
	llmTimeout = 60 * time.Second

	// fallbackQuota is persisted as the assistant's turn when the provider
	// reports a rate limit, so the conversation stays coherent.
	fallbackQuota = "Lo siento, he alcanzado mi límite de uso por ahora. Por favor intenta de nuevo en unos minutos."

	// fallbackUnavailable covers every other provider failure.
	fallbackUnavailable = "Lo siento, no pude generar una respuesta en este momento."
)

// Inbound is one user message entering the orchestrator, already tagged with
// its resolved identity.
type Inbound struct {
	Identity    domain.Identity
	DisplayName string
	Content     string
	Channel     string
}

// ChatService runs the per-message control flow: load history, assemble
// context, invoke the LLM, persist both sides.
type ChatService struct {
	llm      domain.Llm
	history  domain.HistoryStore
	settings *SettingsService
	now      func() time.Time

	mu        sync.Mutex
	turnLocks map[domain.Identity]*sync.Mutex
}

func NewChatService(llm domain.Llm, history domain.HistoryStore, settings *SettingsService) *ChatService {
	return &ChatService{
		llm:       llm,
		history:   history,
		settings:  settings,
		now:       time.Now,
		turnLocks: make(map[domain.Identity]*sync.Mutex),
	}
}

// ProcessTurn handles one inbound message end to end and returns the stored
// user and assistant messages. Provider failures degrade into a localized
// fallback reply; only validation-grade errors propagate.
func (s *ChatService) ProcessTurn(ctx context.Context, in Inbound) (domain.Message, domain.Message, error) {
	if in.Content == "" {
		return domain.Message{}, domain.Message{}, &domain.ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if in.DisplayName == "" {
		in.DisplayName = string(in.Identity)
	}

	// Turns for the same identity are serialized so the read-assemble-append
	// sequence never interleaves against one history snapshot.
	lock := s.lockFor(in.Identity)
	lock.Lock()
	defer lock.Unlock()

	logger := log.WithCtx(ctx).With(
		zap.String("identity", string(in.Identity)),
		zap.String("channel", in.Channel),
	)

	history, err := s.history.ReadAll(ctx, in.Identity)
	if err != nil {
		logger.Warn("reading history failed, proceeding with empty context", zap.Error(err))
		history = nil
	}

	settings := s.settings.Current()
	turns := BuildContext(in.Identity, in.DisplayName, in.Content, settings, history, s.now())

	llmCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	reply, err := s.llm.Generate(llmCtx, turns)
	cancel()
	if err != nil {
		reply = fallbackFor(err)
		logger.Error("llm generation failed, replying with fallback", zap.Error(err))
	}

	userMsg, appended := s.appendUser(ctx, logger, in, history)
	assistantMsg, perr := s.history.Append(ctx, in.Identity, reply, domain.SenderAssistant)
	if perr != nil {
		logger.Error("persisting assistant message failed", zap.Error(perr))
	}

	logger.Info("turn completed",
		zap.Bool("user_appended", appended),
		zap.Int64("assistant_id", assistantMsg.ID),
	)
	return userMsg, assistantMsg, nil
}

func (s *ChatService) lockFor(identity domain.Identity) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.turnLocks[identity]
	if !ok {
		lock = &sync.Mutex{}
		s.turnLocks[identity] = lock
	}
	return lock
}

// appendUser stores the inbound line unless the transport already echoed it:
// when the most recent stored message is a user message with exactly this
// content, the append is skipped. Only one message of lookback, so a user
// legitimately repeating a line is never suppressed.
func (s *ChatService) appendUser(ctx context.Context, logger *zap.Logger, in Inbound, history []domain.Message) (domain.Message, bool) {
	if isDuplicate(history, in.Content) {
		return history[len(history)-1], false
	}
	msg, err := s.history.Append(ctx, in.Identity, in.Content, domain.SenderUser)
	if err != nil {
		logger.Error("persisting user message failed", zap.Error(err))
	}
	return msg, true
}

func isDuplicate(history []domain.Message, content string) bool {
	if len(history) == 0 {
		return false
	}
	last := history[len(history)-1]
	return last.Sender == domain.SenderUser && last.Content == content
}

func fallbackFor(err error) string {
	var perr *domain.ProviderError
	if errors.As(err, &perr) && perr.RateLimited {
		return fallbackQuota
	}
	return fallbackUnavailable
}
