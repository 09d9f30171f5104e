package handler

import (
	"context"
	"time"

	"github.com/wirasena/kommobridge/internal/domain"
	"github.com/wirasena/kommobridge/internal/kommo"
	"github.com/wirasena/kommobridge/internal/lovebali"
	"github.com/wirasena/kommobridge/internal/store"
)

// mockSessions serves a canned latest session and records store traffic.
type mockSessions struct {
	latest    *domain.Session
	latestErr error
	createErr error
	updateErr error

	created []store.CreateSessionRequest
	updates []sessionUpdate
}

type sessionUpdate struct {
	id    string
	patch store.SessionPatch
}

func (m *mockSessions) Create(req store.CreateSessionRequest) (*domain.Session, error) {
	m.created = append(m.created, req)
	if m.createErr != nil {
		return nil, m.createErr
	}
	return domain.NewSession(req.EntityID, req.Command, time.Duration(req.ExpiresInHours)*time.Hour), nil
}

func (m *mockSessions) Update(id string, patch store.SessionPatch) (*domain.Session, error) {
	m.updates = append(m.updates, sessionUpdate{id: id, patch: patch})
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return m.latest, nil
}

func (m *mockSessions) LatestByEntity(entityID int64) (*domain.Session, error) {
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	return m.latest, nil
}

// mockCRM records field updates and bot launches.
type mockCRM struct {
	updateErr  error
	launchErr  error
	launchErrs map[int64]error // per-bot overrides

	fieldUpdates []fieldUpdate
	launches     []launch
}

type fieldUpdate struct {
	entityID int64
	fields   []kommo.CustomFieldUpdate
}

type launch struct {
	botID      int64
	entityID   int64
	entityType string
}

func (m *mockCRM) UpdateLeadCustomFields(ctx context.Context, leadID int64, fields []kommo.CustomFieldUpdate) error {
	m.fieldUpdates = append(m.fieldUpdates, fieldUpdate{entityID: leadID, fields: fields})
	return m.updateErr
}

func (m *mockCRM) LaunchSalesbot(ctx context.Context, botID, entityID int64, entityType string) error {
	m.launches = append(m.launches, launch{botID: botID, entityID: entityID, entityType: entityType})
	if err, ok := m.launchErrs[botID]; ok {
		return err
	}
	return m.launchErr
}

// mockLeads records persisted audit leads.
type mockLeads struct {
	saveErr error
	saved   []*domain.Lead
}

func (m *mockLeads) Save(lead *domain.Lead) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, lead)
	return nil
}

// mockPassport serves a canned scan result.
type mockPassport struct {
	result *lovebali.ScanResult
	err    error
	scans  []string
}

func (m *mockPassport) ScanPassport(ctx context.Context, passportNumber string) (*lovebali.ScanResult, error) {
	m.scans = append(m.scans, passportNumber)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockSource records realtime-store deletions.
type mockSource struct {
	deleteErr error
	deleted   []string
}

func (m *mockSource) Delete(ctx context.Context, path string) error {
	m.deleted = append(m.deleted, path)
	return m.deleteErr
}
