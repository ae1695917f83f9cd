package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shaycichocki/missionctl/pkg/models"
)

// BacklogStore handles the planner's persistent cross-mission backlog.
// The core only reads it when building epoch plans; it never scores or
// mutates impact/effort itself.
type BacklogStore interface {
	UpsertBacklogItem(b *models.BacklogItem) error
	GetBacklogItem(id string) (*models.BacklogItem, error)
	ListBacklogItems() ([]models.BacklogItem, error)
}

func (db *DB) UpsertBacklogItem(b *models.BacklogItem) error {
	_, err := db.Exec(`
		INSERT INTO backlog_items (id, description, impact, effort, attempt_count, pinned_score, last_failure, stale_since)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description=excluded.description, impact=excluded.impact, effort=excluded.effort,
			attempt_count=excluded.attempt_count, pinned_score=excluded.pinned_score,
			last_failure=excluded.last_failure, stale_since=excluded.stale_since
	`, b.ID, b.Description, b.Impact, b.Effort, b.AttemptCount, nullableScore(b.PinnedScore), b.LastFailure, nullableStaleSince(b.StaleSince))
	if err != nil {
		return fmt.Errorf("upsert backlog item %s: %w", b.ID, err)
	}
	return nil
}

func (db *DB) GetBacklogItem(id string) (*models.BacklogItem, error) {
	row := db.QueryRow(backlogSelect+" WHERE id = ?", id)
	return scanBacklogItem(row.Scan)
}

const backlogSelect = `
	SELECT id, description, impact, effort, attempt_count, pinned_score, last_failure, stale_since FROM backlog_items
`

func scanBacklogItem(scan func(dest ...any) error) (*models.BacklogItem, error) {
	var (
		b           models.BacklogItem
		pinnedScore sql.NullFloat64
		staleSince  sql.NullString
	)
	if err := scan(&b.ID, &b.Description, &b.Impact, &b.Effort, &b.AttemptCount, &pinnedScore, &b.LastFailure, &staleSince); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan backlog item: %w", err)
	}
	if pinnedScore.Valid {
		b.PinnedScore = &pinnedScore.Float64
	}
	if t := parseNullableTime(staleSince); t != nil {
		b.StaleSince = *t
	}
	return &b, nil
}

func (db *DB) ListBacklogItems() ([]models.BacklogItem, error) {
	rows, err := db.Query(backlogSelect + " ORDER BY impact / CASE WHEN effort = 0 THEN 1 ELSE effort END DESC")
	if err != nil {
		return nil, fmt.Errorf("list backlog items: %w", err)
	}
	defer rows.Close()

	var out []models.BacklogItem
	for rows.Next() {
		b, err := scanBacklogItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func nullableScore(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullableStaleSince(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

var _ BacklogStore = (*DB)(nil)
