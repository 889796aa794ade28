package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/asistenteai/asistente/domain"
)

// LoadSettings reads the singleton settings row, falling back to defaults
// when the row does not exist yet.
func (s *Store) LoadSettings(ctx context.Context) (domain.Settings, error) {
	var (
		st     domain.Settings
		groups int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT enable_group_messages, custom_prompt, gemini_api_key,
		       restricted_numbers, restricted_prompt, admin_password
		FROM settings WHERE id = 1`,
	).Scan(&groups, &st.CustomPrompt, &st.GeminiAPIKey,
		&st.RestrictedNumbers, &st.RestrictedPrompt, &st.AdminPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("loading settings row: %w", err)
	}
	st.EnableGroupMessages = groups != 0
	return st, nil
}

// SaveSettings upserts the singleton settings row.
func (s *Store) SaveSettings(ctx context.Context, st domain.Settings) error {
	groups := 0
	if st.EnableGroupMessages {
		groups = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, enable_group_messages, custom_prompt, gemini_api_key,
		                      restricted_numbers, restricted_prompt, admin_password)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enable_group_messages = excluded.enable_group_messages,
			custom_prompt = excluded.custom_prompt,
			gemini_api_key = excluded.gemini_api_key,
			restricted_numbers = excluded.restricted_numbers,
			restricted_prompt = excluded.restricted_prompt,
			admin_password = excluded.admin_password`,
		groups, st.CustomPrompt, st.GeminiAPIKey,
		st.RestrictedNumbers, st.RestrictedPrompt, st.AdminPassword,
	)
	if err != nil {
		return &domain.PersistenceError{Op: "save_settings", Err: err}
	}
	return nil
}
