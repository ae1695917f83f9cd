package store

import (
	"fmt"

	"github.com/shaycichocki/missionctl/pkg/models"
)

// ReviewStore handles diff review record persistence. A unit has at
// most one review record; a resubmitted unit overwrites its prior one.
type ReviewStore interface {
	SaveReviewRecord(r *models.ReviewRecord) error
	GetReviewRecord(unitID string) (*models.ReviewRecord, error)
}

func (db *DB) SaveReviewRecord(r *models.ReviewRecord) error {
	_, err := db.Exec(`
		INSERT INTO review_records (unit_id, alignment, approach, tests, notes, parsed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(unit_id) DO UPDATE SET
			alignment=excluded.alignment, approach=excluded.approach, tests=excluded.tests,
			notes=excluded.notes, parsed=excluded.parsed, created_at=excluded.created_at
	`, r.UnitID, r.Alignment, r.Approach, r.Tests, r.Notes, boolToInt(r.Parsed), formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("save review record %s: %w", r.UnitID, err)
	}
	return nil
}

func (db *DB) GetReviewRecord(unitID string) (*models.ReviewRecord, error) {
	row := db.QueryRow(`
		SELECT unit_id, alignment, approach, tests, notes, parsed, created_at
		FROM review_records WHERE unit_id = ?
	`, unitID)

	var (
		r         models.ReviewRecord
		parsed    int
		createdAt string
	)
	if err := row.Scan(&r.UnitID, &r.Alignment, &r.Approach, &r.Tests, &r.Notes, &parsed, &createdAt); err != nil {
		return nil, err
	}
	r.Parsed = parsed != 0
	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse review created_at: %w", err)
	}
	return &r, nil
}

var _ ReviewStore = (*DB)(nil)
