package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wirasena/kommobridge/internal/domain"
)

// MemorySessionStore is an in-memory session store with the same semantics
// as the SQLite-backed one: lazy expiry on read, no reactivation. Useful for
// tests and ephemeral runs.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*domain.Session)}
}

// Create inserts a new active session.
func (s *MemorySessionStore) Create(req CreateSessionRequest) (*domain.Session, error) {
	hours := req.ExpiresInHours
	if hours == 0 {
		hours = defaultTTLHours
	}
	if hours < 0 || hours > maxTTLHours {
		return nil, fmt.Errorf("expires_in_hours out of range: %d", hours)
	}

	sess := domain.NewSession(req.EntityID, req.Command, time.Duration(hours)*time.Hour)
	sess.Language = req.Language
	for k, v := range req.Metadata {
		sess.Metadata[k] = v
	}

	s.mu.Lock()
	s.sessions[sess.ID] = cloneSession(sess)
	s.mu.Unlock()
	return sess, nil
}

// Get returns a session by id, or nil if it does not exist.
func (s *MemorySessionStore) Get(id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	if sess.Active && sess.Expired(time.Now().UTC()) {
		sess.Deactivate()
	}
	return cloneSession(sess), nil
}

// Update applies a partial update; deactivated sessions stay deactivated.
func (s *MemorySessionStore) Update(id string, patch SessionPatch) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	if sess.Active && sess.Expired(time.Now().UTC()) {
		sess.Deactivate()
	}
	applyPatch(sess, patch)
	return cloneSession(sess), nil
}

// Delete removes a session. It reports whether the session existed.
func (s *MemorySessionStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	delete(s.sessions, id)
	return true, nil
}

// ByEntity returns the entity's sessions, newest first.
func (s *MemorySessionStore) ByEntity(entityID int64, activeOnly bool) ([]*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var out []*domain.Session
	for _, sess := range s.sessions {
		if sess.EntityID != entityID {
			continue
		}
		if sess.Active && sess.Expired(now) {
			sess.Deactivate()
		}
		if activeOnly && !sess.Active {
			continue
		}
		out = append(out, cloneSession(sess))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// LatestByEntity returns the most recently updated active session, or nil.
func (s *MemorySessionStore) LatestByEntity(entityID int64) (*domain.Session, error) {
	sessions, err := s.ByEntity(entityID, true)
	if err != nil || len(sessions) == 0 {
		return nil, err
	}
	return sessions[0], nil
}

// Recent returns the newest sessions, most recently updated first.
func (s *MemorySessionStore) Recent(limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	out := make([]*domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.Active && sess.Expired(now) {
			sess.Deactivate()
		}
		out = append(out, cloneSession(sess))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CleanupExpired deactivates expired active sessions and returns the count.
func (s *MemorySessionStore) CleanupExpired() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	count := 0
	for _, sess := range s.sessions {
		if sess.Active && sess.Expired(now) {
			sess.Deactivate()
			count++
		}
	}
	return count, nil
}

// Counts returns the number of active sessions and the total count.
func (s *MemorySessionStore) Counts() (active, total int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		total++
		if sess.Active {
			active++
		}
	}
	return active, total, nil
}

// MemoryLeadStore is an in-memory lead audit store.
type MemoryLeadStore struct {
	mu    sync.RWMutex
	leads map[string]*domain.Lead
}

// NewMemoryLeadStore creates an empty in-memory lead store.
func NewMemoryLeadStore() *MemoryLeadStore {
	return &MemoryLeadStore{leads: make(map[string]*domain.Lead)}
}

// Save upserts a lead by id.
func (s *MemoryLeadStore) Save(lead *domain.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[lead.ID] = cloneLead(lead)
	return nil
}

// Get returns a lead by id, or nil if it does not exist.
func (s *MemoryLeadStore) Get(id string) (*domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lead, ok := s.leads[id]
	if !ok {
		return nil, nil
	}
	return cloneLead(lead), nil
}

// Recent returns the newest leads, most recently updated first.
func (s *MemoryLeadStore) Recent(limit int) ([]*domain.Lead, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Lead, 0, len(s.leads))
	for _, lead := range s.leads {
		out = append(out, cloneLead(lead))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats returns total/processed/unprocessed lead counts.
func (s *MemoryLeadStore) Stats() (LeadStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats LeadStats
	for _, lead := range s.leads {
		stats.Total++
		if lead.Processed {
			stats.Processed++
		} else {
			stats.Unprocessed++
		}
	}
	return stats, nil
}
