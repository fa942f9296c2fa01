// Package sqlite provides the embedded relational store for engram.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a single versioned schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrations is the ordered list of all schema migrations.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "observations",
		SQL: `
			CREATE TABLE IF NOT EXISTS observations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				project TEXT NOT NULL,
				memory_session_id TEXT NOT NULL,
				prompt_number INTEGER,
				type TEXT NOT NULL,
				auto_category TEXT NOT NULL DEFAULT 'general',
				title TEXT NOT NULL,
				subtitle TEXT,
				text TEXT,
				narrative TEXT,
				facts TEXT,
				concepts TEXT,
				files_read TEXT,
				files_modified TEXT,
				created_at TEXT NOT NULL,
				created_at_epoch INTEGER NOT NULL,
				content_hash TEXT,
				discovery_tokens INTEGER NOT NULL DEFAULT 0,
				last_accessed_epoch INTEGER,
				is_stale INTEGER NOT NULL DEFAULT 0
			);

			CREATE INDEX IF NOT EXISTS idx_observations_project_recency
				ON observations(project, created_at_epoch DESC, id DESC);
			CREATE INDEX IF NOT EXISTS idx_observations_type ON observations(type);
			CREATE INDEX IF NOT EXISTS idx_observations_content_hash ON observations(content_hash);
			CREATE INDEX IF NOT EXISTS idx_observations_session ON observations(memory_session_id);
		`,
	},
	{
		Version: 2,
		Name:    "observations_fts",
		SQL: `
			-- Column order and weights are part of the scoring contract:
			-- title=10, text=1, narrative=5, concepts=3 (see scoring package).
			CREATE VIRTUAL TABLE IF NOT EXISTS observations_fts USING fts5(
				title, text, narrative, concepts,
				content='observations',
				content_rowid='id'
			);

			CREATE TRIGGER IF NOT EXISTS observations_ai AFTER INSERT ON observations BEGIN
				INSERT INTO observations_fts(rowid, title, text, narrative, concepts)
				VALUES (new.id, new.title, new.text, new.narrative, new.concepts);
			END;

			CREATE TRIGGER IF NOT EXISTS observations_ad AFTER DELETE ON observations BEGIN
				INSERT INTO observations_fts(observations_fts, rowid, title, text, narrative, concepts)
				VALUES('delete', old.id, old.title, old.text, old.narrative, old.concepts);
			END;

			CREATE TRIGGER IF NOT EXISTS observations_au AFTER UPDATE ON observations BEGIN
				INSERT INTO observations_fts(observations_fts, rowid, title, text, narrative, concepts)
				VALUES('delete', old.id, old.title, old.text, old.narrative, old.concepts);
				INSERT INTO observations_fts(rowid, title, text, narrative, concepts)
				VALUES (new.id, new.title, new.text, new.narrative, new.concepts);
			END;
		`,
	},
	{
		Version: 3,
		Name:    "observation_embeddings",
		SQL: `
			CREATE TABLE IF NOT EXISTS observation_embeddings (
				observation_id INTEGER PRIMARY KEY,
				model TEXT NOT NULL,
				dimensions INTEGER NOT NULL,
				vector BLOB NOT NULL,
				created_at_epoch INTEGER NOT NULL,
				FOREIGN KEY(observation_id) REFERENCES observations(id) ON DELETE CASCADE
			);
		`,
	},
	{
		Version: 4,
		Name:    "summaries_prompts_sessions",
		SQL: `
			CREATE TABLE IF NOT EXISTS summaries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL,
				project TEXT NOT NULL,
				request TEXT,
				investigated TEXT,
				learned TEXT,
				completed TEXT,
				next_steps TEXT,
				notes TEXT,
				created_at TEXT NOT NULL,
				created_at_epoch INTEGER NOT NULL,
				UNIQUE(session_id, project, created_at_epoch)
			);

			CREATE INDEX IF NOT EXISTS idx_summaries_project ON summaries(project, created_at_epoch DESC);

			CREATE TABLE IF NOT EXISTS prompts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				content_session_id TEXT NOT NULL,
				project TEXT NOT NULL,
				prompt_number INTEGER NOT NULL,
				prompt_text TEXT NOT NULL,
				created_at_epoch INTEGER NOT NULL,
				UNIQUE(content_session_id, prompt_number)
			);

			CREATE INDEX IF NOT EXISTS idx_prompts_session ON prompts(content_session_id);

			CREATE TABLE IF NOT EXISTS sessions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				content_session_id TEXT UNIQUE NOT NULL,
				project TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'completed')),
				started_at_epoch INTEGER NOT NULL,
				completed_at_epoch INTEGER
			);

			CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project, started_at_epoch DESC);
		`,
	},
	{
		Version: 5,
		Name:    "checkpoints_and_aliases",
		SQL: `
			CREATE TABLE IF NOT EXISTS checkpoints (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL,
				project TEXT NOT NULL,
				task TEXT,
				progress TEXT,
				next_steps TEXT,
				open_questions TEXT,
				relevant_files TEXT,
				context_snapshot TEXT,
				created_at_epoch INTEGER NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_id, created_at_epoch DESC);

			CREATE TABLE IF NOT EXISTS project_aliases (
				project_name TEXT PRIMARY KEY,
				display_name TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);
		`,
	},
	{
		Version: 6,
		Name:    "concept_weights",
		SQL: `
			-- Carried from the retention/importance-exemption supplement: a
			-- configurable weight per concept tag, seeded with the same
			-- ordering used to ground the categorizer's rule weights
			-- (security ranks highest, tooling lowest).
			CREATE TABLE IF NOT EXISTS concept_weights (
				concept TEXT PRIMARY KEY,
				weight REAL NOT NULL DEFAULT 0.1,
				updated_at TEXT NOT NULL
			);

			INSERT OR IGNORE INTO concept_weights (concept, weight, updated_at) VALUES
				('security', 0.30, datetime('now')),
				('gotcha', 0.25, datetime('now')),
				('best-practice', 0.20, datetime('now')),
				('anti-pattern', 0.20, datetime('now')),
				('architecture', 0.15, datetime('now')),
				('performance', 0.15, datetime('now')),
				('error-handling', 0.15, datetime('now')),
				('pattern', 0.10, datetime('now')),
				('testing', 0.10, datetime('now')),
				('debugging', 0.10, datetime('now')),
				('workflow', 0.05, datetime('now')),
				('tooling', 0.05, datetime('now'));
		`,
	},
}

// MigrationManager applies pending migrations and tracks applied versions.
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a migration manager bound to db.
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// EnsureSchemaVersionsTable creates the version-tracking table if absent.
func (m *MigrationManager) EnsureSchemaVersionsTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			id INTEGER PRIMARY KEY,
			version INTEGER UNIQUE NOT NULL,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

// GetAppliedVersions returns the set of already-applied migration versions.
func (m *MigrationManager) GetAppliedVersions() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_versions ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		versions[version] = true
	}
	return versions, rows.Err()
}

// ApplyMigration runs one migration and records it, atomically.
func (m *MigrationManager) ApplyMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return fmt.Errorf("execute migration %d (%s): %w", migration.Version, migration.Name, err)
	}

	_, err = tx.Exec(
		"INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)",
		migration.Version, time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record migration %d: %w", migration.Version, err)
	}

	return tx.Commit()
}

// RunMigrations applies every migration not yet recorded as applied.
func (m *MigrationManager) RunMigrations() error {
	if err := m.EnsureSchemaVersionsTable(); err != nil {
		return fmt.Errorf("ensure schema_versions table: %w", err)
	}

	applied, err := m.GetAppliedVersions()
	if err != nil {
		return fmt.Errorf("get applied versions: %w", err)
	}

	for _, migration := range Migrations {
		if applied[migration.Version] {
			continue
		}
		if err := m.ApplyMigration(migration); err != nil {
			return err
		}
	}

	return nil
}
