package store

import (
	"database/sql"
	"fmt"

	"github.com/shaycichocki/missionctl/pkg/models"
)

// WorkUnitStore handles work unit persistence.
type WorkUnitStore interface {
	CreateWorkUnit(u *models.WorkUnit) error
	GetWorkUnit(id string) (*models.WorkUnit, error)
	UpdateWorkUnit(u *models.WorkUnit) error
	ListWorkUnitsByMission(missionID string) ([]models.WorkUnit, error)
	ListWorkUnitsByState(missionID string, state models.WorkUnitState) ([]models.WorkUnit, error)
}

func (db *DB) CreateWorkUnit(u *models.WorkUnit) error {
	_, err := db.Exec(`
		INSERT INTO work_units (id, mission_id, epoch_id, description, files_hint, depends_on, acceptance_criteria,
			specialist_tag, needs_research, state, attempt_count, queued_at, last_failure_reason, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.MissionID, nullString(u.EpochID), u.Description, encodeList(u.FilesHint), encodeList(u.DependsOn),
		encodeList(u.AcceptanceCriteria), u.SpecialistTag, boolToInt(u.NeedsResearch), string(u.State), u.AttemptCount,
		formatTime(u.QueuedAt), u.LastFailureReason, formatTime(u.CreatedAt), nullableTimeString(u.CompletedAt))
	if err != nil {
		return fmt.Errorf("create work unit %s: %w", u.ID, err)
	}
	return nil
}

func (db *DB) GetWorkUnit(id string) (*models.WorkUnit, error) {
	row := db.QueryRow(workUnitSelect+" WHERE id = ?", id)
	return scanWorkUnit(row.Scan)
}

const workUnitSelect = `
	SELECT id, mission_id, epoch_id, description, files_hint, depends_on, acceptance_criteria,
		specialist_tag, needs_research, state, attempt_count, queued_at, last_failure_reason, created_at, completed_at
	FROM work_units
`

func scanWorkUnit(scan func(dest ...any) error) (*models.WorkUnit, error) {
	var (
		u                                                  models.WorkUnit
		epochID                                            sql.NullString
		filesHint, dependsOn, acceptanceCriteria            sql.NullString
		needsResearch                                       int
		queuedAt, createdAt                                 string
		completedAt                                         sql.NullString
	)
	if err := scan(&u.ID, &u.MissionID, &epochID, &u.Description, &filesHint, &dependsOn, &acceptanceCriteria,
		&u.SpecialistTag, &needsResearch, &u.State, &u.AttemptCount, &queuedAt, &u.LastFailureReason, &createdAt, &completedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan work unit: %w", err)
	}
	u.EpochID = epochID.String
	u.FilesHint = decodeList(filesHint)
	u.DependsOn = decodeList(dependsOn)
	u.AcceptanceCriteria = decodeList(acceptanceCriteria)
	u.NeedsResearch = needsResearch != 0
	var err error
	if u.QueuedAt, err = parseTime(queuedAt); err != nil {
		return nil, fmt.Errorf("parse queued_at: %w", err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	u.CompletedAt = parseNullableTime(completedAt)
	return &u, nil
}

func (db *DB) UpdateWorkUnit(u *models.WorkUnit) error {
	_, err := db.Exec(`
		UPDATE work_units SET epoch_id=?, state=?, attempt_count=?, last_failure_reason=?, completed_at=?
		WHERE id=?
	`, nullString(u.EpochID), string(u.State), u.AttemptCount, u.LastFailureReason, nullableTimeString(u.CompletedAt), u.ID)
	if err != nil {
		return fmt.Errorf("update work unit %s: %w", u.ID, err)
	}
	return nil
}

func (db *DB) ListWorkUnitsByMission(missionID string) ([]models.WorkUnit, error) {
	return db.queryWorkUnits(workUnitSelect+" WHERE mission_id = ? ORDER BY created_at ASC", missionID)
}

func (db *DB) ListWorkUnitsByState(missionID string, state models.WorkUnitState) ([]models.WorkUnit, error) {
	return db.queryWorkUnits(workUnitSelect+" WHERE mission_id = ? AND state = ? ORDER BY created_at ASC", missionID, string(state))
}

func (db *DB) queryWorkUnits(query string, args ...any) ([]models.WorkUnit, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list work units: %w", err)
	}
	defer rows.Close()

	var out []models.WorkUnit
	for rows.Next() {
		u, err := scanWorkUnit(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ WorkUnitStore = (*DB)(nil)
