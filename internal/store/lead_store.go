package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wirasena/kommobridge/internal/domain"
)

// LeadStore persists the permanent lead audit trail. Rows are only ever
// inserted or updated, never deleted.
type LeadStore struct {
	db *DB
}

// NewLeadStore creates a lead store using the given database.
func NewLeadStore(db *DB) *LeadStore {
	return &LeadStore{db: db}
}

// Save upserts a lead by id.
func (s *LeadStore) Save(lead *domain.Lead) error {
	dataJSON, err := json.Marshal(lead.Data)
	if err != nil {
		return fmt.Errorf("encoding lead data: %w", err)
	}
	metaJSON, err := json.Marshal(lead.Metadata)
	if err != nil {
		return fmt.Errorf("encoding lead metadata: %w", err)
	}

	_, err = s.db.sql.Exec(
		`INSERT INTO leads (id, source_path, data, metadata, created_at, updated_at, processed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			source_path = excluded.source_path,
			data        = excluded.data,
			metadata    = excluded.metadata,
			updated_at  = excluded.updated_at,
			processed   = excluded.processed`,
		lead.ID, lead.SourcePath, string(dataJSON), string(metaJSON),
		formatTime(lead.CreatedAt), formatTime(lead.UpdatedAt), boolToInt(lead.Processed),
	)
	if err != nil {
		return fmt.Errorf("saving lead %s: %w", lead.ID, err)
	}
	return nil
}

// Get returns a lead by id, or nil if it does not exist.
func (s *LeadStore) Get(id string) (*domain.Lead, error) {
	var lead domain.Lead
	var data, meta sql.NullString
	var createdAt, updatedAt string
	var processed int

	err := s.db.sql.QueryRow(
		`SELECT id, source_path, data, metadata, created_at, updated_at, processed
		 FROM leads WHERE id = ?`, id,
	).Scan(&lead.ID, &lead.SourcePath, &data, &meta, &createdAt, &updatedAt, &processed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading lead %s: %w", id, err)
	}

	lead.CreatedAt = parseTime(createdAt)
	lead.UpdatedAt = parseTime(updatedAt)
	lead.Processed = processed != 0
	if data.Valid && data.String != "" {
		_ = json.Unmarshal([]byte(data.String), &lead.Data)
	}
	if meta.Valid && meta.String != "" {
		_ = json.Unmarshal([]byte(meta.String), &lead.Metadata)
	}
	return &lead, nil
}

// Recent returns the newest leads, most recently updated first.
func (s *LeadStore) Recent(limit int) ([]*domain.Lead, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.sql.Query(
		`SELECT id FROM leads ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying leads: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	leads := make([]*domain.Lead, 0, len(ids))
	for _, id := range ids {
		lead, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		if lead != nil {
			leads = append(leads, lead)
		}
	}
	return leads, nil
}

// Stats returns total/processed/unprocessed lead counts.
func (s *LeadStore) Stats() (LeadStats, error) {
	var stats LeadStats
	err := s.db.sql.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(processed), 0) FROM leads`,
	).Scan(&stats.Total, &stats.Processed)
	if err != nil {
		return LeadStats{}, fmt.Errorf("counting leads: %w", err)
	}
	stats.Unprocessed = stats.Total - stats.Processed
	return stats, nil
}
