package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/asistenteai/asistente/domain"
	"github.com/asistenteai/asistente/utils/log"
	"go.uber.org/zap"
)

// SettingsService owns the single global settings record: read-through load
// at startup, merge-on-update, read-many afterwards.
type SettingsService struct {
	store domain.SettingsStore
	llm   domain.Llm

	mu      sync.RWMutex
	current domain.Settings
}

// NewSettingsService loads the persisted record. llm may be nil; when set,
// Gemini API key updates rotate the live client credential.
func NewSettingsService(ctx context.Context, store domain.SettingsStore, llm domain.Llm) (*SettingsService, error) {
	current, err := store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return &SettingsService{store: store, llm: llm, current: current}, nil
}

// Current returns a copy of the active settings.
func (s *SettingsService) Current() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update merges the patch into the current record, persists it and returns
// the new record.
func (s *SettingsService) Update(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	s.mu.Lock()
	merged := s.current.Merge(patch)
	s.current = merged
	s.mu.Unlock()

	if err := s.store.SaveSettings(ctx, merged); err != nil {
		return merged, fmt.Errorf("saving settings: %w", err)
	}

	if patch.GeminiAPIKey != nil && s.llm != nil {
		s.llm.UpdateCredential(*patch.GeminiAPIKey)
		log.WithCtx(ctx).Info("rotated Gemini credential", zap.Bool("cleared", *patch.GeminiAPIKey == ""))
	}

	return merged, nil
}

// IsRestrictedIdentity reports whether the identity matches the configured
// restricted-numbers list.
func (s *SettingsService) IsRestrictedIdentity(identity domain.Identity) bool {
	return s.Current().IsRestrictedIdentity(identity)
}
