package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "memories: scored long-term memory records",
		SQL: `
CREATE TABLE memories (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    content          TEXT NOT NULL,
    tags             TEXT NOT NULL DEFAULT '[]',
    memory_type      TEXT NOT NULL,
    category         TEXT,
    importance       INTEGER NOT NULL CHECK (importance BETWEEN 0 AND 10),
    base_importance  INTEGER NOT NULL DEFAULT 0,
    confidence       REAL NOT NULL DEFAULT 0,
    lifecycle_state  TEXT NOT NULL DEFAULT 'active' CHECK (lifecycle_state IN ('active', 'aging', 'archived')),
    merged_from      TEXT,
    superseded_by    TEXT,
    created_at       INTEGER NOT NULL,
    last_accessed_at INTEGER
);

CREATE INDEX idx_memories_user       ON memories(user_id);
CREATE INDEX idx_memories_state      ON memories(user_id, lifecycle_state);
CREATE INDEX idx_memories_importance ON memories(user_id, importance DESC);
`,
	},
	{
		Version:     2,
		Description: "memory_tags: inverted tag index for candidate lookup",
		SQL: `
CREATE TABLE memory_tags (
    memory_id  TEXT NOT NULL,
    tag        TEXT NOT NULL,
    PRIMARY KEY (memory_id, tag),
    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE
);

CREATE INDEX idx_memory_tags_tag ON memory_tags(tag);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
