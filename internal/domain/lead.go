package domain

import (
	"time"

	"github.com/google/uuid"
)

// Lead is a permanent audit record of one lead event pulled off the
// realtime store. Leads are never deleted by the bridge.
type Lead struct {
	ID         string         `json:"lead_id"`
	SourcePath string         `json:"source_path"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Processed  bool           `json:"processed"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewLead wraps a raw event payload into an audit record.
func NewLead(sourcePath string, data map[string]any) *Lead {
	now := time.Now().UTC()
	return &Lead{
		ID:         uuid.NewString(),
		SourcePath: sourcePath,
		Data:       data,
		CreatedAt:  now,
		UpdatedAt:  now,
		Metadata:   map[string]any{},
	}
}

// MarkProcessed flags the lead as handled and bumps its timestamp.
func (l *Lead) MarkProcessed() {
	l.Processed = true
	l.Touch()
}

// Touch bumps the update timestamp.
func (l *Lead) Touch() {
	l.UpdatedAt = time.Now().UTC()
}
