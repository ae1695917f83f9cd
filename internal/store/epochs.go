package store

import (
	"database/sql"
	"fmt"

	"github.com/shaycichocki/missionctl/pkg/models"
)

// EpochStore handles epoch persistence.
type EpochStore interface {
	CreateEpoch(e *models.Epoch) error
	UpdateEpoch(e *models.Epoch) error
	ListEpochsByMission(missionID string) ([]models.Epoch, error)
}

func (db *DB) CreateEpoch(e *models.Epoch) error {
	_, err := db.Exec(`
		INSERT INTO epochs (id, mission_id, ordinal, planned_unit_ids, dispatched_unit_ids, started_at, ended_at, ambition_score, all_failed, cost_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.MissionID, e.Ordinal, encodeList(e.PlannedUnitIDs), encodeList(e.DispatchedUnitIDs),
		formatTime(e.StartedAt), nullableTimeString(e.EndedAt), e.AmbitionScore, boolToInt(e.AllFailed), e.CostUSD)
	if err != nil {
		return fmt.Errorf("create epoch %s: %w", e.ID, err)
	}
	return nil
}

func (db *DB) UpdateEpoch(e *models.Epoch) error {
	_, err := db.Exec(`
		UPDATE epochs SET dispatched_unit_ids=?, ended_at=?, ambition_score=?, all_failed=?, cost_usd=?
		WHERE id=?
	`, encodeList(e.DispatchedUnitIDs), nullableTimeString(e.EndedAt), e.AmbitionScore, boolToInt(e.AllFailed), e.CostUSD, e.ID)
	if err != nil {
		return fmt.Errorf("update epoch %s: %w", e.ID, err)
	}
	return nil
}

func (db *DB) ListEpochsByMission(missionID string) ([]models.Epoch, error) {
	rows, err := db.Query(`
		SELECT id, mission_id, ordinal, planned_unit_ids, dispatched_unit_ids, started_at, ended_at, ambition_score, all_failed, cost_usd
		FROM epochs WHERE mission_id = ? ORDER BY ordinal ASC
	`, missionID)
	if err != nil {
		return nil, fmt.Errorf("list epochs for mission %s: %w", missionID, err)
	}
	defer rows.Close()

	var out []models.Epoch
	for rows.Next() {
		var (
			e                              models.Epoch
			planned, dispatched            sql.NullString
			startedAt                      string
			endedAt                        sql.NullString
			allFailed                      int
		)
		if err := rows.Scan(&e.ID, &e.MissionID, &e.Ordinal, &planned, &dispatched, &startedAt, &endedAt, &e.AmbitionScore, &allFailed, &e.CostUSD); err != nil {
			return nil, fmt.Errorf("scan epoch: %w", err)
		}
		e.PlannedUnitIDs = decodeList(planned)
		e.DispatchedUnitIDs = decodeList(dispatched)
		if e.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse epoch started_at: %w", err)
		}
		e.EndedAt = parseNullableTime(endedAt)
		e.AllFailed = allFailed != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ EpochStore = (*DB)(nil)
