package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wirasena/kommobridge/internal/domain"
)

// SessionStore provides session CRUD with lazy TTL deactivation: expired
// sessions are flipped inactive whenever a read touches them, and the
// cleanup sweep catches the rest.
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a session store using the given database.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = "id, entity_id, language, command, metadata, created_at, updated_at, expires_at, is_active"

// Create inserts a new active session.
func (s *SessionStore) Create(req CreateSessionRequest) (*domain.Session, error) {
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

	metaJSON, err := json.Marshal(sess.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}

	_, err = s.db.sql.Exec(
		`INSERT INTO sessions (id, entity_id, language, command, metadata, created_at, updated_at, expires_at, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		sess.ID, sess.EntityID, string(sess.Language), string(sess.Command), string(metaJSON),
		formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt), formatTime(sess.ExpiresAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	s.db.log.Info().Str("session_id", sess.ID).Int64("entity_id", sess.EntityID).Msg("session created")
	return sess, nil
}

// Get returns a session by id, or nil if it does not exist. An active
// session past its expiry is deactivated before being returned.
func (s *SessionStore) Get(id string) (*domain.Session, error) {
	sess, err := scanSession(s.db.sql.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	))
	if err != nil || sess == nil {
		return sess, err
	}
	if sess.Active && sess.Expired(time.Now().UTC()) {
		if err := s.deactivate(sess); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// Update applies a partial update and returns the stored session, or nil
// when the id is unknown. A deactivated session is never reactivated.
func (s *SessionStore) Update(id string, patch SessionPatch) (*domain.Session, error) {
	sess, err := s.Get(id)
	if err != nil || sess == nil {
		return sess, err
	}

	if !applyPatch(sess, patch) {
		return sess, nil
	}

	metaJSON, err := json.Marshal(sess.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}

	_, err = s.db.sql.Exec(
		`UPDATE sessions
		 SET entity_id = ?, language = ?, command = ?, metadata = ?, updated_at = ?, expires_at = ?, is_active = ?
		 WHERE id = ?`,
		sess.EntityID, string(sess.Language), string(sess.Command), string(metaJSON),
		formatTime(sess.UpdatedAt), formatTime(sess.ExpiresAt), boolToInt(sess.Active), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating session %s: %w", id, err)
	}
	return sess, nil
}

// Delete removes a session row entirely. It reports whether a row existed.
func (s *SessionStore) Delete(id string) (bool, error) {
	res, err := s.db.sql.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ByEntity returns the entity's sessions, newest first. Expired active
// sessions are deactivated before the query resolves, so activeOnly results
// never contain stale sessions.
func (s *SessionStore) ByEntity(entityID int64, activeOnly bool) ([]*domain.Session, error) {
	if err := s.expireForEntity(entityID); err != nil {
		return nil, err
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE entity_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY updated_at DESC, created_at DESC`

	rows, err := s.db.sql.Query(query, entityID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// LatestByEntity returns the entity's most recently updated active session,
// or nil when it has none.
func (s *SessionStore) LatestByEntity(entityID int64) (*domain.Session, error) {
	sessions, err := s.ByEntity(entityID, true)
	if err != nil || len(sessions) == 0 {
		return nil, err
	}
	return sessions[0], nil
}

// Recent returns the newest sessions, most recently updated first. Expired
// active sessions are swept first so the returned flags are accurate.
func (s *SessionStore) Recent(limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	if _, err := s.CleanupExpired(); err != nil {
		return nil, err
	}

	rows, err := s.db.sql.Query(
		`SELECT `+sessionColumns+` FROM sessions
		 ORDER BY updated_at DESC, created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// CleanupExpired deactivates every active session whose expiry has passed
// and returns how many were swept.
func (s *SessionStore) CleanupExpired() (int, error) {
	now := formatTime(time.Now().UTC())
	res, err := s.db.sql.Exec(
		`UPDATE sessions SET is_active = 0, updated_at = ?
		 WHERE is_active = 1 AND expires_at != '' AND expires_at <= ?`,
		now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.db.log.Info().Int64("count", n).Msg("expired sessions deactivated")
	}
	return int(n), nil
}

// Counts returns the number of active sessions and the total row count.
func (s *SessionStore) Counts() (active, total int, err error) {
	err = s.db.sql.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(is_active), 0) FROM sessions`,
	).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("counting sessions: %w", err)
	}
	return active, total, nil
}

func (s *SessionStore) deactivate(sess *domain.Session) error {
	sess.Deactivate()
	_, err := s.db.sql.Exec(
		`UPDATE sessions SET is_active = 0, updated_at = ? WHERE id = ?`,
		formatTime(sess.UpdatedAt), sess.ID,
	)
	if err != nil {
		return fmt.Errorf("deactivating session %s: %w", sess.ID, err)
	}
	s.db.log.Debug().Str("session_id", sess.ID).Msg("expired session deactivated")
	return nil
}

func (s *SessionStore) expireForEntity(entityID int64) error {
	now := time.Now().UTC()
	_, err := s.db.sql.Exec(
		`UPDATE sessions SET is_active = 0, updated_at = ?
		 WHERE entity_id = ? AND is_active = 1 AND expires_at != '' AND expires_at <= ?`,
		formatTime(now), entityID, formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("expiring sessions for entity %d: %w", entityID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var sess domain.Session
	var lang, cmd, createdAt, updatedAt, expiresAt string
	var meta sql.NullString
	var active int

	err := row.Scan(&sess.ID, &sess.EntityID, &lang, &cmd, &meta,
		&createdAt, &updatedAt, &expiresAt, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	sess.Language = domain.Language(lang)
	sess.Command = domain.Command(cmd)
	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)
	sess.ExpiresAt = parseTime(expiresAt)
	sess.Active = active != 0
	if meta.Valid && meta.String != "" {
		_ = json.Unmarshal([]byte(meta.String), &sess.Metadata)
	}
	return &sess, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
