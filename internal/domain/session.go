package domain

import (
	"time"

	"github.com/google/uuid"
)

// Language is a conversation language code.
type Language string

const (
	LanguageEnglish    Language = "EN"
	LanguageIndonesian Language = "ID"
)

// DefaultLanguage is used when a session has not picked a language yet.
const DefaultLanguage = LanguageEnglish

// languageSelectors maps the chat button labels sent by the language-select
// bot to languages. Only these exact strings count as a selection.
var languageSelectors = map[string]Language{
	"🇮🇩 Bahasa":  LanguageIndonesian,
	"🇬🇧 English": LanguageEnglish,
}

// LanguageFromSelector maps a language-select button label to its language.
func LanguageFromSelector(text string) (Language, bool) {
	lang, ok := languageSelectors[text]
	return lang, ok
}

// Command identifies the salesbot flow a session is parked in.
type Command string

const (
	CommandMainMenu     Command = "main_menu"
	CommandLangSelect   Command = "lang_select"
	CommandLoveBali     Command = "love_bali"
	CommandSigaPura     Command = "sigapura"
	CommandChatOperator Command = "chat_operator"
)

// commandLabels maps chat button labels to commands.
var commandLabels = map[string]Command{
	"Main Menu":     CommandMainMenu,
	"Lang Select":   CommandLangSelect,
	"Love Bali":     CommandLoveBali,
	"SigaPura":      CommandSigaPura,
	"Chat Operator": CommandChatOperator,
}

// CommandFromLabel maps a chat button label to its command. Labels are
// matched exactly, including case.
func CommandFromLabel(text string) (Command, bool) {
	cmd, ok := commandLabels[text]
	return cmd, ok
}

// Session tracks the conversational state of one CRM entity.
type Session struct {
	ID        string         `json:"session_id"`
	EntityID  int64          `json:"entity_id,omitempty"`
	Language  Language       `json:"language,omitempty"`
	Command   Command        `json:"command,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Active    bool           `json:"is_active"`
}

// NewSession creates an active session for an entity. A zero ttl means the
// session never expires.
func NewSession(entityID int64, command Command, ttl time.Duration) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		EntityID:  entityID,
		Command:   command,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  map[string]any{},
		Active:    true,
	}
	if ttl > 0 {
		s.ExpiresAt = now.Add(ttl)
	}
	return s
}

// Expired reports whether the session's TTL has passed at the given time.
// Sessions without an expiry never expire.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Touch bumps the update timestamp.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// Deactivate marks the session inactive. Deactivated sessions are never
// reactivated.
func (s *Session) Deactivate() {
	s.Active = false
	s.Touch()
}
