package domain

import "strings"

// Settings is the single global configuration record. Loaded at startup,
// mutated only through explicit partial updates, persisted after every merge.
type Settings struct {
	EnableGroupMessages bool   `json:"enableGroupMessages"`
	CustomPrompt        string `json:"customPrompt,omitempty"`
	GeminiAPIKey        string `json:"geminiApiKey,omitempty"`
	RestrictedNumbers   string `json:"restrictedNumbers,omitempty"`
	RestrictedPrompt    string `json:"restrictedPrompt,omitempty"`
	AdminPassword       string `json:"-"`
}

// SettingsPatch carries a partial update. Nil fields keep their prior value.
type SettingsPatch struct {
	EnableGroupMessages *bool   `json:"enableGroupMessages"`
	CustomPrompt        *string `json:"customPrompt"`
	GeminiAPIKey        *string `json:"geminiApiKey"`
	RestrictedNumbers   *string `json:"restrictedNumbers"`
	RestrictedPrompt    *string `json:"restrictedPrompt"`
	AdminPassword       *string `json:"adminPassword"`
}

// Merge applies the patch on top of s and returns the result.
func (s Settings) Merge(p SettingsPatch) Settings {
	if p.EnableGroupMessages != nil {
		s.EnableGroupMessages = *p.EnableGroupMessages
	}
	if p.CustomPrompt != nil {
		s.CustomPrompt = *p.CustomPrompt
	}
	if p.GeminiAPIKey != nil {
		s.GeminiAPIKey = *p.GeminiAPIKey
	}
	if p.RestrictedNumbers != nil {
		s.RestrictedNumbers = *p.RestrictedNumbers
	}
	if p.RestrictedPrompt != nil {
		s.RestrictedPrompt = *p.RestrictedPrompt
	}
	if p.AdminPassword != nil {
		s.AdminPassword = *p.AdminPassword
	}
	return s
}

// RestrictedList splits the comma-separated restricted numbers field.
func (s Settings) RestrictedList() []string {
	if s.RestrictedNumbers == "" {
		return nil
	}
	var out []string
	for _, n := range strings.Split(s.RestrictedNumbers, ",") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// IsRestrictedIdentity reports whether any restricted-numbers entry is a
// substring of the identity.
func (s Settings) IsRestrictedIdentity(identity Identity) bool {
	for _, n := range s.RestrictedList() {
		if strings.Contains(string(identity), n) {
			return true
		}
	}
	return false
}
