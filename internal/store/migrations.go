package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions",
		SQL: `
			CREATE TABLE sessions (
				id          TEXT PRIMARY KEY,
				entity_id   INTEGER NOT NULL DEFAULT 0,
				language    TEXT NOT NULL DEFAULT '',
				command     TEXT NOT NULL DEFAULT '',
				metadata    TEXT,
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL,
				expires_at  TEXT NOT NULL DEFAULT '',
				is_active   INTEGER NOT NULL DEFAULT 1
			);

			CREATE INDEX idx_sessions_entity ON sessions (entity_id, is_active, updated_at);
			CREATE INDEX idx_sessions_expiry ON sessions (is_active, expires_at);
		`,
	},
	{
		Version: 2,
		Name:    "create leads",
		SQL: `
			CREATE TABLE leads (
				id          TEXT PRIMARY KEY,
				source_path TEXT NOT NULL DEFAULT '',
				data        TEXT,
				metadata    TEXT,
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL,
				processed   INTEGER NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_leads_processed ON leads (processed);
			CREATE INDEX idx_leads_source ON leads (source_path);
		`,
	},
}
