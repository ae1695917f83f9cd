package models

import "time"

// WorkUnitState is the lifecycle state of a dispatchable task.
//
// The controller sets State from each dispatch outcome. A unit whose
// dispatch is deferred to a later epoch (a failed slot or workspace
// acquisition, no free workspace, a full merge queue) is set back to
// pending; no separate attempt record is kept.
type WorkUnitState string

const (
	UnitPending    WorkUnitState = "pending"
	UnitDispatched WorkUnitState = "dispatched"
	UnitMerged     WorkUnitState = "merged"
	UnitRolledBack WorkUnitState = "rolled_back"
	UnitRejected   WorkUnitState = "rejected"
	UnitStale      WorkUnitState = "stale"
	UnitCompleted  WorkUnitState = "completed"
)

// Valid reports whether s is a known work unit state.
func (s WorkUnitState) Valid() bool {
	switch s {
	case UnitPending, UnitDispatched, UnitMerged, UnitRolledBack, UnitRejected, UnitStale, UnitCompleted:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is a state the unit does not leave.
func (s WorkUnitState) Terminal() bool {
	return s == UnitCompleted || s == UnitRejected || s == UnitStale
}

// WorkUnit is a single dispatchable task within an epoch.
type WorkUnit struct {
	ID                 string        `json:"id" validate:"required"`
	MissionID          string        `json:"mission_id" validate:"required"`
	EpochID            string        `json:"epoch_id"`
	Description        string        `json:"description" validate:"required"`
	FilesHint          []string      `json:"files_hint,omitempty"`
	DependsOn          []string      `json:"depends_on,omitempty"`
	AcceptanceCriteria []string      `json:"acceptance_criteria,omitempty"`
	SpecialistTag      string        `json:"specialist_tag,omitempty"`
	NeedsResearch      bool          `json:"needs_research"`
	State              WorkUnitState `json:"state" validate:"required"`
	AttemptCount       int           `json:"attempt_count"`
	QueuedAt           time.Time     `json:"queued_at"`
	LastFailureReason  string        `json:"last_failure_reason,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
}

// BacklogItem is a persistent cross-mission work candidate. It is owned
// by the planner/strategist; the core only reads it when building epoch
// plans and never mutates impact/effort scoring itself.
type BacklogItem struct {
	ID           string    `json:"id"`
	Description  string    `json:"description"`
	Impact       float64   `json:"impact"`
	Effort       float64   `json:"effort"`
	AttemptCount int       `json:"attempt_count"`
	PinnedScore  *float64  `json:"pinned_score,omitempty"`
	LastFailure  string    `json:"last_failure,omitempty"`
	StaleSince   time.Time `json:"stale_since,omitempty"`
}

// Score returns the effective ranking score: the pinned override when
// present, otherwise impact/effort.
func (b BacklogItem) Score() float64 {
	if b.PinnedScore != nil {
		return *b.PinnedScore
	}
	if b.Effort <= 0 {
		return b.Impact
	}
	return b.Impact / b.Effort
}
