package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shaycichocki/missionctl/internal/planner"
	"github.com/shaycichocki/missionctl/pkg/models"
)

// mergedFiles is one epoch's set of promoted files, timestamped so the
// staleness gate can ask "what merged since this unit was queued".
type mergedFiles struct {
	files []string
	at    time.Time
}

// recordMergedFiles appends a promoted submission's changed files to the
// rolling history the staleness gate consults. It is only ever called
// from the controller's own single-threaded epoch loop, never from the
// concurrent per-unit goroutines dispatchWave spawns, so it needs no
// locking.
func (c *Controller) recordMergedFiles(files []string) {
	if len(files) == 0 {
		return
	}
	c.mergeHistory = append(c.mergeHistory, mergedFiles{files: files, at: time.Now()})
}

func (c *Controller) filesMergedSince(since time.Time) map[string]bool {
	out := map[string]bool{}
	for _, m := range c.mergeHistory {
		if m.at.Before(since) {
			continue
		}
		for _, f := range m.files {
			out[f] = true
		}
	}
	return out
}

// filterStale partitions units by spec.md §4.7's backlog staleness
// gate: a unit older than BacklogMaxAge is dropped, and a unit whose
// files_hint overlaps more than half with files merged since it was
// queued is dropped, on the theory that whatever it was meant to touch
// has likely already moved out from under it.
func (c *Controller) filterStale(units []models.WorkUnit) (fresh, stale []models.WorkUnit) {
	now := time.Now()
	for _, u := range units {
		if c.isAged(u, now) || c.hasFileOverlap(u, now) {
			stale = append(stale, u)
			continue
		}
		fresh = append(fresh, u)
	}
	return fresh, stale
}

func (c *Controller) isAged(u models.WorkUnit, now time.Time) bool {
	if c.cfg.BacklogMaxAge <= 0 || u.QueuedAt.IsZero() {
		return false
	}
	return now.Sub(u.QueuedAt) > c.cfg.BacklogMaxAge
}

func (c *Controller) hasFileOverlap(u models.WorkUnit, now time.Time) bool {
	if len(u.FilesHint) == 0 || u.QueuedAt.IsZero() {
		return false
	}
	merged := c.filesMergedSince(u.QueuedAt)
	if len(merged) == 0 {
		return false
	}
	overlap := 0
	for _, f := range u.FilesHint {
		if merged[f] {
			overlap++
		}
	}
	return float64(overlap)/float64(len(u.FilesHint)) > 0.5
}

// staleContext builds the replan feedback string spec.md §4.7 calls
// stale_context: each dropped unit's description, so the planner can
// fold the abandoned intent back into its next plan instead of losing it.
func staleContext(stale []models.WorkUnit) string {
	descs := make([]string, len(stale))
	for i, u := range stale {
		descs[i] = fmt.Sprintf("%s: %s", u.ID, u.Description)
	}
	return "stale_context: " + strings.Join(descs, "; ")
}

// applyStaleness drops aged-out or file-overlapping units from plan,
// feeding their descriptions back into a replan and persisting the
// dropped state (work unit row, backlog item, and a reflection record
// for post-mission diagnosis) when a store is configured.
func (c *Controller) applyStaleness(ctx context.Context, mission *models.Mission, ordinal int, plan planner.Plan) []models.WorkUnit {
	fresh, stale := c.filterStale(plan.Units)
	if len(stale) == 0 {
		return fresh
	}

	for _, u := range stale {
		u.State = models.UnitStale
		c.changelog.Record(ChangelogEntry{UnitID: u.ID, Kind: "stale", Summary: "dropped: files_hint stale or backlog entry aged out"})
		c.persistWorkUnit(u)
		c.markBacklogItemStale(u.ID)
	}

	feedback := staleContext(stale)
	c.recordReflection(mission.ID, ordinal, feedback)

	replanned, err := c.planner.Replan(ctx, *mission, feedback, c.cfg.MaxUnitsPerEpoch)
	if err != nil {
		c.log.Warn().Err(err).Msg("replan after dropping stale units failed, proceeding with remaining fresh units")
		return fresh
	}
	return append(fresh, replanned.Units...)
}
