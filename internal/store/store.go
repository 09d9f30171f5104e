package store

import (
	"time"

	"github.com/wirasena/kommobridge/internal/domain"
)

// timeFormat is the column format for timestamps. The fixed-width fraction
// keeps lexicographic ordering chronological, which the latest-by-updated_at
// queries rely on.
const timeFormat = "2006-01-02 15:04:05.000000000"

// Session TTL bounds, in hours.
const (
	defaultTTLHours = 1
	maxTTLHours     = 8760
)

// CreateSessionRequest carries the fields for a new session.
type CreateSessionRequest struct {
	EntityID       int64
	Language       domain.Language
	Command        domain.Command
	ExpiresInHours int // 0 means the 1 hour default; capped at 8760
	Metadata       map[string]any
}

// SessionPatch is a partial session update. Nil fields are left unchanged;
// Metadata entries are merged into the existing metadata.
type SessionPatch struct {
	EntityID  *int64
	Language  *domain.Language
	Command   *domain.Command
	ExpiresAt *time.Time
	Metadata  map[string]any
	Active    *bool // setting true on a deactivated session is ignored
}

// LeadStats summarizes the lead audit table.
type LeadStats struct {
	Total       int `json:"total"`
	Processed   int `json:"processed"`
	Unprocessed int `json:"unprocessed"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeFormat, s)
	return t
}

// applyPatch mutates a session according to the patch, enforcing the
// no-reactivation rule, and reports whether anything changed.
func applyPatch(sess *domain.Session, patch SessionPatch) bool {
	changed := false
	if patch.EntityID != nil && *patch.EntityID != sess.EntityID {
		sess.EntityID = *patch.EntityID
		changed = true
	}
	if patch.Language != nil && *patch.Language != sess.Language {
		sess.Language = *patch.Language
		changed = true
	}
	if patch.Command != nil && *patch.Command != sess.Command {
		sess.Command = *patch.Command
		changed = true
	}
	if patch.ExpiresAt != nil && !patch.ExpiresAt.Equal(sess.ExpiresAt) {
		sess.ExpiresAt = patch.ExpiresAt.UTC()
		changed = true
	}
	if len(patch.Metadata) > 0 {
		if sess.Metadata == nil {
			sess.Metadata = map[string]any{}
		}
		for k, v := range patch.Metadata {
			sess.Metadata[k] = v
		}
		changed = true
	}
	if patch.Active != nil {
		if !*patch.Active && sess.Active {
			sess.Active = false
			changed = true
		}
		// Reactivation is silently ignored: deactivated sessions stay dead.
	}
	if changed {
		sess.Touch()
	}
	return changed
}

func cloneSession(sess *domain.Session) *domain.Session {
	cp := *sess
	if sess.Metadata != nil {
		cp.Metadata = make(map[string]any, len(sess.Metadata))
		for k, v := range sess.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

func cloneLead(lead *domain.Lead) *domain.Lead {
	cp := *lead
	if lead.Data != nil {
		cp.Data = make(map[string]any, len(lead.Data))
		for k, v := range lead.Data {
			cp.Data[k] = v
		}
	}
	if lead.Metadata != nil {
		cp.Metadata = make(map[string]any, len(lead.Metadata))
		for k, v := range lead.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
