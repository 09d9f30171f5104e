package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Language tests ---

func TestLanguageFromSelector(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		want     Language
		wantOK   bool
	}{
		{name: "indonesian selector", text: "🇮🇩 Bahasa", want: LanguageIndonesian, wantOK: true},
		{name: "english selector", text: "🇬🇧 English", want: LanguageEnglish, wantOK: true},
		{name: "bare word english", text: "English", wantOK: false},
		{name: "bare word bahasa", text: "Bahasa", wantOK: false},
		{name: "lowercase", text: "🇬🇧 english", wantOK: false},
		{name: "extra whitespace", text: " 🇮🇩 Bahasa", wantOK: false},
		{name: "empty", text: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LanguageFromSelector(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDefaultLanguage(t *testing.T) {
	assert.Equal(t, LanguageEnglish, DefaultLanguage)
}

// --- Command tests ---

func TestCommandFromLabel(t *testing.T) {
	tests := []struct {
		text   string
		want   Command
		wantOK bool
	}{
		{"Main Menu", CommandMainMenu, true},
		{"Lang Select", CommandLangSelect, true},
		{"Love Bali", CommandLoveBali, true},
		{"SigaPura", CommandSigaPura, true},
		{"Chat Operator", CommandChatOperator, true},
		{"main menu", "", false},
		{"MAIN MENU", "", false},
		{"Sigapura", "", false},
		{"hello there", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := CommandFromLabel(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// --- Session tests ---

func TestNewSession(t *testing.T) {
	before := time.Now().UTC()
	s := NewSession(12345, CommandMainMenu, 24*time.Hour)
	after := time.Now().UTC()

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, int64(12345), s.EntityID)
	assert.Equal(t, CommandMainMenu, s.Command)
	assert.Empty(t, s.Language)
	assert.True(t, s.Active)
	assert.NotNil(t, s.Metadata)
	assert.False(t, s.CreatedAt.Before(before))
	assert.False(t, s.CreatedAt.After(after))
	assert.False(t, s.UpdatedAt.Before(s.CreatedAt))
	assert.Equal(t, s.CreatedAt.Add(24*time.Hour), s.ExpiresAt)
}

func TestNewSessionUniqueIDs(t *testing.T) {
	s1 := NewSession(1, CommandMainMenu, time.Hour)
	s2 := NewSession(1, CommandMainMenu, time.Hour)
	assert.NotEqual(t, s1.ID, s2.ID)
}

func TestNewSessionZeroTTL(t *testing.T) {
	s := NewSession(1, CommandMainMenu, 0)
	assert.True(t, s.ExpiresAt.IsZero())
	assert.False(t, s.Expired(time.Now().Add(100*365*24*time.Hour)))
}

func TestSessionExpired(t *testing.T) {
	now := time.Now().UTC()
	s := &Session{ExpiresAt: now.Add(time.Hour)}

	assert.False(t, s.Expired(now))
	assert.False(t, s.Expired(now.Add(time.Hour)), "not expired at the expiry instant")
	assert.True(t, s.Expired(now.Add(time.Hour+time.Nanosecond)))
	assert.True(t, s.Expired(now.Add(2*time.Hour)))
}

func TestSessionTouch(t *testing.T) {
	s := NewSession(1, CommandMainMenu, time.Hour)
	orig := s.UpdatedAt

	time.Sleep(2 * time.Millisecond)
	s.Touch()
	assert.True(t, s.UpdatedAt.After(orig))
	assert.False(t, s.UpdatedAt.Before(s.CreatedAt))
}

func TestSessionDeactivate(t *testing.T) {
	s := NewSession(1, CommandMainMenu, time.Hour)
	require.True(t, s.Active)

	s.Deactivate()
	assert.False(t, s.Active)
}

func TestSessionJSON(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	s := Session{
		ID:        "sess-1",
		EntityID:  17332060,
		Language:  LanguageIndonesian,
		Command:   CommandLoveBali,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
		Metadata:  map[string]any{"source": "kommo"},
		Active:    true,
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	raw := string(data)
	assert.Contains(t, raw, `"session_id"`)
	assert.Contains(t, raw, `"entity_id"`)
	assert.Contains(t, raw, `"is_active"`)

	var decoded Session
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, s.ID, decoded.ID)
	assert.Equal(t, s.EntityID, decoded.EntityID)
	assert.Equal(t, s.Language, decoded.Language)
	assert.Equal(t, s.Command, decoded.Command)
	assert.True(t, s.ExpiresAt.Equal(decoded.ExpiresAt))
	assert.Equal(t, s.Active, decoded.Active)
	assert.Equal(t, "kommo", decoded.Metadata["source"])
}

func TestSessionJSON_OmitsEmpty(t *testing.T) {
	s := Session{ID: "sess-1", CreatedAt: time.Now(), UpdatedAt: time.Now()}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	raw := string(data)
	assert.NotContains(t, raw, `"entity_id"`)
	assert.NotContains(t, raw, `"language"`)
	assert.NotContains(t, raw, `"command"`)
	assert.NotContains(t, raw, `"metadata"`)
}

// --- Lead tests ---

func TestNewLead(t *testing.T) {
	data := map[string]any{"entity_id": "17332060", "messages": "hello"}
	l := NewLead("/leads/abc123", data)

	assert.NotEmpty(t, l.ID)
	assert.Equal(t, "/leads/abc123", l.SourcePath)
	assert.Equal(t, data, l.Data)
	assert.False(t, l.Processed)
	assert.NotNil(t, l.Metadata)
	assert.False(t, l.UpdatedAt.Before(l.CreatedAt))
}

func TestLeadMarkProcessed(t *testing.T) {
	l := NewLead("/leads/abc", map[string]any{})
	orig := l.UpdatedAt

	time.Sleep(2 * time.Millisecond)
	l.MarkProcessed()
	assert.True(t, l.Processed)
	assert.True(t, l.UpdatedAt.After(orig))
}

func TestLeadJSON(t *testing.T) {
	l := NewLead("/leads/xyz", map[string]any{"messages": "hi"})
	l.Metadata["handled_by"] = "incoming_lead"
	l.MarkProcessed()

	data, err := json.Marshal(l)
	require.NoError(t, err)

	raw := string(data)
	assert.Contains(t, raw, `"lead_id"`)
	assert.Contains(t, raw, `"source_path"`)
	assert.Contains(t, raw, `"processed":true`)

	var decoded Lead
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, l.ID, decoded.ID)
	assert.Equal(t, l.SourcePath, decoded.SourcePath)
	assert.Equal(t, "hi", decoded.Data["messages"])
	assert.Equal(t, "incoming_lead", decoded.Metadata["handled_by"])
	assert.True(t, decoded.Processed)
}
