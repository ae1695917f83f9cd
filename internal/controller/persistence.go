package controller

import (
	"database/sql"
	"errors"
	"time"

	"github.com/shaycichocki/missionctl/pkg/models"
)

// persistWorkUnit upserts a work unit row: create it if this is the
// first time the controller has seen its ID, otherwise update its
// mutable fields. The store is optional — callers that didn't wire one
// (tests, mostly) get a silent no-op, matching how reviewer/metrics are
// already allowed to be nil.
func (c *Controller) persistWorkUnit(u models.WorkUnit) {
	if c.store == nil {
		return
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	if u.QueuedAt.IsZero() {
		u.QueuedAt = u.CreatedAt
	}
	if _, err := c.store.GetWorkUnit(u.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if err := c.store.CreateWorkUnit(&u); err != nil {
				c.log.Warn().Err(err).Str("unit_id", u.ID).Msg("failed to persist new work unit")
			}
			return
		}
		c.log.Warn().Err(err).Str("unit_id", u.ID).Msg("failed to look up work unit before persisting")
		return
	}
	if err := c.store.UpdateWorkUnit(&u); err != nil {
		c.log.Warn().Err(err).Str("unit_id", u.ID).Msg("failed to persist work unit update")
	}
}

// markBacklogItemStale records that a backlog entry's last attempt went
// stale, so a future mission's planner can see it was dropped rather
// than abandoned silently. Backlog items are keyed by the same ID as
// the work unit the static planner produced from them; an unknown ID
// (a unit minted directly by a dynamic planner with no backlog row) is
// not an error, just nothing to update.
func (c *Controller) markBacklogItemStale(unitID string) {
	if c.store == nil {
		return
	}
	item, err := c.store.GetBacklogItem(unitID)
	if err != nil {
		return
	}
	item.StaleSince = time.Now()
	if err := c.store.UpsertBacklogItem(item); err != nil {
		c.log.Warn().Err(err).Str("backlog_id", unitID).Msg("failed to persist backlog staleness")
	}
}

// persistEpochStart creates the epoch row for an in-flight epoch.
func (c *Controller) persistEpochStart(e *models.Epoch) {
	if c.store == nil {
		return
	}
	if err := c.store.CreateEpoch(e); err != nil {
		c.log.Warn().Err(err).Str("epoch_id", e.ID).Msg("failed to persist epoch start")
	}
}

// persistEpochEnd records the epoch's terminal state.
func (c *Controller) persistEpochEnd(e *models.Epoch) {
	if c.store == nil {
		return
	}
	if err := c.store.UpdateEpoch(e); err != nil {
		c.log.Warn().Err(err).Str("epoch_id", e.ID).Msg("failed to persist epoch end")
	}
}

// recordReflection persists a feedback string the planner was given,
// fulfilling spec.md §4.7 step 5's "emit a reflection summary for the
// planner" requirement.
func (c *Controller) recordReflection(missionID string, ordinal int, feedback string) {
	if c.store == nil || feedback == "" {
		return
	}
	if err := c.store.AddReflection(missionID, ordinal, feedback); err != nil {
		c.log.Warn().Err(err).Msg("failed to persist reflection")
	}
}
