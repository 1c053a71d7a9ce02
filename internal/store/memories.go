package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mnemo-ai/mnemo/internal/memory"
)

// CreateMemories persists newly admitted memories in one transaction,
// assigning IDs and populating the tag index. The input slice is updated
// in place with assigned IDs.
func (db *DB) CreateMemories(ctx context.Context, memories []memory.Memory) error {
	if len(memories) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for i := range memories {
		m := &memories[i]
		if m.ID == "" {
			m.ID = db.NewID()
		}
		if err := insertMemory(ctx, tx, m); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertMemory(ctx context.Context, tx *sql.Tx, m *memory.Memory) error {
	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	var mergedFrom any
	if len(m.MergedFromIDs) > 0 {
		b, err := json.Marshal(m.MergedFromIDs)
		if err != nil {
			return fmt.Errorf("marshal merged_from: %w", err)
		}
		mergedFrom = string(b)
	}
	var lastAccess any
	if m.LastAccessedAt != nil {
		lastAccess = m.LastAccessedAt.UnixMilli()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (id, user_id, content, tags, memory_type, category,
			importance, base_importance, confidence, lifecycle_state, merged_from,
			created_at, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.UserID, m.Content, string(tags), string(m.Type), m.Category,
		m.Importance, m.BaseImportance, m.Confidence, string(m.State), mergedFrom,
		m.CreatedAt.UnixMilli(), lastAccess)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}

	for _, t := range m.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO memory_tags (memory_id, tag) VALUES (?, ?)`,
			m.ID, strings.ToLower(t)); err != nil {
			return fmt.Errorf("index tag: %w", err)
		}
	}
	return nil
}

const memoryColumns = `id, user_id, content, tags, memory_type, category,
	importance, base_importance, confidence, lifecycle_state, merged_from,
	created_at, last_accessed_at`

// GetMemory returns one memory by ID, or nil if absent or superseded.
func (db *DB) GetMemory(ctx context.Context, id string) (*memory.Memory, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE id = ? AND superseded_by IS NULL
	`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return &m, nil
}

// ListByUser returns all live memories for a user, newest first.
func (db *DB) ListByUser(ctx context.Context, userID string) ([]memory.Memory, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE user_id = ? AND superseded_by IS NULL
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list by user: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// CandidatesByTags narrows the retrieval pool via the tag index: memories
// sharing the most query tags come first, ties broken by importance. When
// no tags are given it falls back to the highest-importance live memories.
// Archived memories are excluded here so the ranker never sees them.
func (db *DB) CandidatesByTags(ctx context.Context, userID string, tags []string, limit int) ([]memory.Memory, error) {
	if limit <= 0 {
		return nil, nil
	}

	if len(tags) == 0 {
		rows, err := db.QueryContext(ctx, `
			SELECT `+memoryColumns+` FROM memories
			WHERE user_id = ? AND superseded_by IS NULL AND lifecycle_state != 'archived'
			ORDER BY importance DESC, created_at DESC
			LIMIT ?
		`, userID, limit)
		if err != nil {
			return nil, fmt.Errorf("candidates: %w", err)
		}
		defer rows.Close()
		return scanMemories(rows)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tags)), ",")

	// The tag list appears twice: once to select candidates, once to order
	// them by match count.
	args := make([]any, 0, 2*len(tags)+2)
	args = append(args, userID)
	for i := 0; i < 2; i++ {
		for _, t := range tags {
			args = append(args, strings.ToLower(t))
		}
	}
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM memories m
		WHERE m.user_id = ? AND m.superseded_by IS NULL AND m.lifecycle_state != 'archived'
		  AND m.id IN (SELECT memory_id FROM memory_tags WHERE tag IN (%s))
		ORDER BY (SELECT COUNT(*) FROM memory_tags mt WHERE mt.memory_id = m.id AND mt.tag IN (%s)) DESC,
		         m.importance DESC, m.created_at DESC
		LIMIT ?
	`, qualifyColumns("m"), placeholders, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("candidates by tags: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

func qualifyColumns(alias string) string {
	cols := strings.Split(memoryColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// TouchMemories records a retrieval: sets last_accessed_at for the given
// IDs. This is the explicit read-through touch that feeds lifecycle aging;
// ranking itself never mutates anything.
func (db *DB) TouchMemories(ctx context.Context, ids []string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+1)
	args = append(args, now.UnixMilli())
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE memories SET last_accessed_at = ? WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("touch memories: %w", err)
	}
	return nil
}

// ApplyTransition applies one lifecycle transition. The WHERE clause
// enforces forward-only movement: if the memory has already advanced past
// the expected source state, the update is a no-op.
func (db *DB) ApplyTransition(ctx context.Context, t memory.StateTransition) error {
	if t.From == t.To {
		return nil // prune-eligible signal only, no state change
	}
	_, err := db.ExecContext(ctx, `
		UPDATE memories SET lifecycle_state = ?
		WHERE id = ? AND lifecycle_state = ? AND superseded_by IS NULL
	`, string(t.To), t.MemoryID, string(t.From))
	if err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	return nil
}

// ApplyMerge persists a consolidation result in one transaction: the
// merged memory is inserted and every member is marked superseded by it.
// Superseded rows stay for provenance but never surface in reads, so the
// originals and the merge are never retrievable side by side.
func (db *DB) ApplyMerge(ctx context.Context, merged *memory.Memory, memberIDs []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if merged.ID == "" {
		merged.ID = db.NewID()
	}
	if err := insertMemory(ctx, tx, merged); err != nil {
		return err
	}

	for _, id := range memberIDs {
		if id == merged.ID {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE memories SET superseded_by = ? WHERE id = ?`, merged.ID, id); err != nil {
			return fmt.Errorf("supersede %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// DeleteMemories removes pruned memories for good. Only the caller decides
// to invoke this, and only for prune-eligible IDs from a sweep.
func (db *DB) DeleteMemories(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM memories WHERE id IN (%s) AND lifecycle_state = 'archived'`, placeholders), args...)
	if err != nil {
		return 0, fmt.Errorf("delete memories: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListUsers returns all user IDs with live memories, for background sweeps.
func (db *DB) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM memories WHERE superseded_by IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Stats summarizes a user's memory set by lifecycle state.
type Stats struct {
	Active   int `json:"active"`
	Aging    int `json:"aging"`
	Archived int `json:"archived"`
}

// UserStats counts a user's live memories per lifecycle state.
func (db *DB) UserStats(ctx context.Context, userID string) (Stats, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT lifecycle_state, COUNT(*) FROM memories
		WHERE user_id = ? AND superseded_by IS NULL
		GROUP BY lifecycle_state
	`, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("user stats: %w", err)
	}
	defer rows.Close()

	var s Stats
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return Stats{}, err
		}
		switch memory.LifecycleState(state) {
		case memory.StateActive:
			s.Active = n
		case memory.StateAging:
			s.Aging = n
		case memory.StateArchived:
			s.Archived = n
		}
	}
	return s, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (memory.Memory, error) {
	var (
		m          memory.Memory
		memType    string
		state      string
		category   sql.NullString
		tags       string
		mergedFrom sql.NullString
		createdAt  int64
		lastAccess sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.UserID, &m.Content, &tags, &memType, &category,
		&m.Importance, &m.BaseImportance, &m.Confidence, &state, &mergedFrom,
		&createdAt, &lastAccess)
	if err != nil {
		return memory.Memory{}, err
	}

	m.Type = memory.MemoryType(memType)
	m.State = memory.LifecycleState(state)
	m.Category = category.String
	m.CreatedAt = time.UnixMilli(createdAt).UTC()
	if lastAccess.Valid {
		t := time.UnixMilli(lastAccess.Int64).UTC()
		m.LastAccessedAt = &t
	}
	if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
		return memory.Memory{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	if mergedFrom.Valid && mergedFrom.String != "" {
		if err := json.Unmarshal([]byte(mergedFrom.String), &m.MergedFromIDs); err != nil {
			return memory.Memory{}, fmt.Errorf("unmarshal merged_from: %w", err)
		}
	}
	return m, nil
}

func scanMemories(rows *sql.Rows) ([]memory.Memory, error) {
	var out []memory.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
