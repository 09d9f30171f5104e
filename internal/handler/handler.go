// Package handler routes realtime-store events into the bridge's processing
// logic: lead bootstrap, the passport conversation, and audit logging.
package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/wirasena/kommobridge/internal/domain"
	"github.com/wirasena/kommobridge/internal/kommo"
	"github.com/wirasena/kommobridge/internal/lovebali"
	"github.com/wirasena/kommobridge/internal/store"
)

// Handler processes one realtime event. The manager may run several handlers
// against the same payload and the source redelivers events after a restart,
// so implementations must tolerate repeated delivery.
type Handler interface {
	// Name identifies the handler in logs and diagnostics.
	Name() string

	// CanHandle reports whether Handle should run for this event.
	CanHandle(path string, data any) bool

	// Handle processes the event. A returned error is logged by the manager
	// and never stops the remaining handlers.
	Handle(ctx context.Context, path string, data any) error
}

// SessionStore is the slice of the session store the handlers depend on.
type SessionStore interface {
	Create(req store.CreateSessionRequest) (*domain.Session, error)
	Update(id string, patch store.SessionPatch) (*domain.Session, error)
	LatestByEntity(entityID int64) (*domain.Session, error)
}

// LeadStore persists lead audit records.
type LeadStore interface {
	Save(lead *domain.Lead) error
}

// CRM is the slice of the Kommo client the handlers depend on.
type CRM interface {
	UpdateLeadCustomFields(ctx context.Context, leadID int64, fields []kommo.CustomFieldUpdate) error
	LaunchSalesbot(ctx context.Context, botID, entityID int64, entityType string) error
}

// PassportRegistry checks passport numbers against the Love Bali API.
type PassportRegistry interface {
	ScanPassport(ctx context.Context, passportNumber string) (*lovebali.ScanResult, error)
}

// SourceDeleter removes consumed payloads from the realtime store.
type SourceDeleter interface {
	Delete(ctx context.Context, path string) error
}

// coerceEntityID normalizes the shapes a JSON payload may carry an entity id
// in. Decoded JSON numbers arrive as float64.
func coerceEntityID(v any) (int64, bool) {
	switch id := v.(type) {
	case int64:
		return id, true
	case int:
		return int64(id), true
	case float64:
		return int64(id), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// stringValue extracts a trimmed string from a payload value. Lists are
// scanned for their first non-blank string entry.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
