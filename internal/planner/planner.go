// Package planner defines the narrow boundary between the controller
// and whatever produces work units, and ships a minimal file-backed
// implementation sufficient to exercise the controller end-to-end. The
// real strategist — the thing that actually decomposes an objective
// into units — lives outside this module, mirroring the teacher's
// separation between architect.Planner (prog-backed) and the engine
// that drives it.
package planner

import (
	"context"

	"github.com/shaycichocki/missionctl/pkg/models"
)

// Plan is one batch of work the controller should attempt this epoch.
type Plan struct {
	Units          []models.WorkUnit
	AmbitionScore  float64
}

// Planner produces ordered work units with a dependency graph and
// acceptance criteria, and replans on stall or ambition rejection.
type Planner interface {
	// Plan returns up to maxUnits candidate units for the next epoch.
	Plan(ctx context.Context, mission models.Mission, maxUnits int) (Plan, error)
	// Replan is called when the prior Plan scored below the ambition
	// threshold or the epoch stalled; feedback summarizes why.
	Replan(ctx context.Context, mission models.Mission, feedback string, maxUnits int) (Plan, error)
}
