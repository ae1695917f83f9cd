package store

import (
	"database/sql"
	"fmt"

	"github.com/shaycichocki/missionctl/pkg/models"
)

// MissionStore handles mission persistence.
type MissionStore interface {
	CreateMission(m *models.Mission) error
	GetMission(id string) (*models.Mission, error)
	UpdateMission(m *models.Mission) error
	ListRecentMissions(limit int) ([]models.Mission, error)
}

func (db *DB) CreateMission(m *models.Mission) error {
	_, err := db.Exec(`
		INSERT INTO missions (id, objective, verification_command, budget_usd, wall_time_budget_ns, started_at, updated_at, status, stop_reason, total_cost_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Objective, m.VerificationCommand, m.BudgetUSD, m.WallTimeBudget.Nanoseconds(),
		formatTime(m.StartedAt), formatTime(m.UpdatedAt), string(m.Status), string(m.StopReason), m.TotalCostUSD)
	if err != nil {
		return fmt.Errorf("create mission %s: %w", m.ID, err)
	}
	return nil
}

func (db *DB) GetMission(id string) (*models.Mission, error) {
	row := db.QueryRow(`
		SELECT id, objective, verification_command, budget_usd, wall_time_budget_ns, started_at, updated_at, status, stop_reason, total_cost_usd
		FROM missions WHERE id = ?
	`, id)
	return scanMission(row.Scan)
}

func scanMission(scan func(dest ...any) error) (*models.Mission, error) {
	var (
		m                   models.Mission
		startedAt, updatedAt string
		wallTimeNS           int64
		stopReason           sql.NullString
	)
	if err := scan(&m.ID, &m.Objective, &m.VerificationCommand, &m.BudgetUSD, &wallTimeNS,
		&startedAt, &updatedAt, &m.Status, &stopReason, &m.TotalCostUSD); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan mission: %w", err)
	}
	var err error
	if m.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	m.WallTimeBudget = nsToDuration(wallTimeNS)
	m.StopReason = models.StopReason(stopReason.String)
	return &m, nil
}

func (db *DB) UpdateMission(m *models.Mission) error {
	_, err := db.Exec(`
		UPDATE missions SET objective=?, verification_command=?, budget_usd=?, wall_time_budget_ns=?,
			updated_at=?, status=?, stop_reason=?, total_cost_usd=?
		WHERE id=?
	`, m.Objective, m.VerificationCommand, m.BudgetUSD, m.WallTimeBudget.Nanoseconds(),
		formatTime(m.UpdatedAt), string(m.Status), string(m.StopReason), m.TotalCostUSD, m.ID)
	if err != nil {
		return fmt.Errorf("update mission %s: %w", m.ID, err)
	}
	return nil
}

// ListRecentMissions returns the most recently started missions, most
// recent first, for the status command's "what ran" summary.
func (db *DB) ListRecentMissions(limit int) ([]models.Mission, error) {
	rows, err := db.Query(`
		SELECT id, objective, verification_command, budget_usd, wall_time_budget_ns, started_at, updated_at, status, stop_reason, total_cost_usd
		FROM missions ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent missions: %w", err)
	}
	defer rows.Close()

	var out []models.Mission
	for rows.Next() {
		m, err := scanMission(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

var _ MissionStore = (*DB)(nil)
