package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ContextItem is a durable note a worker surfaced for future units
// (spec.md's ResultEnvelope.context_items), persisted against the
// mission and, when known, the originating unit.
type ContextItem struct {
	ID        int64
	MissionID string
	UnitID    string
	Content   string
	CreatedAt time.Time
}

// Reflection is one replan feedback string the planner was given,
// kept for post-mission diagnosis of why an epoch's plan was rejected.
type Reflection struct {
	ID           int64
	MissionID    string
	EpochOrdinal int
	Feedback     string
	CreatedAt    time.Time
}

// ContextStore handles context item and reflection persistence.
type ContextStore interface {
	AddContextItems(missionID, unitID string, items []string) error
	ListContextItems(missionID string) ([]ContextItem, error)
	AddReflection(missionID string, epochOrdinal int, feedback string) error
	ListReflections(missionID string) ([]Reflection, error)
}

func (db *DB) AddContextItems(missionID, unitID string, items []string) error {
	if len(items) == 0 {
		return nil
	}
	return db.Transaction(func(tx *sql.Tx) error {
		for _, item := range items {
			if _, err := tx.Exec(`
				INSERT INTO context_items (mission_id, unit_id, content, created_at) VALUES (?, ?, ?, ?)
			`, missionID, nullString(unitID), item, formatTime(time.Now())); err != nil {
				return fmt.Errorf("add context item: %w", err)
			}
		}
		return nil
	})
}

func (db *DB) ListContextItems(missionID string) ([]ContextItem, error) {
	rows, err := db.Query(`
		SELECT id, mission_id, unit_id, content, created_at FROM context_items WHERE mission_id = ? ORDER BY id ASC
	`, missionID)
	if err != nil {
		return nil, fmt.Errorf("list context items: %w", err)
	}
	defer rows.Close()

	var out []ContextItem
	for rows.Next() {
		var (
			c         ContextItem
			unitID    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.MissionID, &unitID, &c.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan context item: %w", err)
		}
		c.UnitID = unitID.String
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse context item created_at: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *DB) AddReflection(missionID string, epochOrdinal int, feedback string) error {
	_, err := db.Exec(`
		INSERT INTO reflections (mission_id, epoch_ordinal, feedback, created_at) VALUES (?, ?, ?, ?)
	`, missionID, epochOrdinal, feedback, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("add reflection: %w", err)
	}
	return nil
}

func (db *DB) ListReflections(missionID string) ([]Reflection, error) {
	rows, err := db.Query(`
		SELECT id, mission_id, epoch_ordinal, feedback, created_at FROM reflections WHERE mission_id = ? ORDER BY id ASC
	`, missionID)
	if err != nil {
		return nil, fmt.Errorf("list reflections: %w", err)
	}
	defer rows.Close()

	var out []Reflection
	for rows.Next() {
		var (
			r         Reflection
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.MissionID, &r.EpochOrdinal, &r.Feedback, &createdAt); err != nil {
			return nil, fmt.Errorf("scan reflection: %w", err)
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse reflection created_at: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ ContextStore = (*DB)(nil)
