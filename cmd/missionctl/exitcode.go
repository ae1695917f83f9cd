package main

import (
	"github.com/shaycichocki/missionctl/pkg/models"
)

// missionExitError carries a mission's terminal stop reason through
// cobra's RunE so Execute can translate it to the documented exit code
// without printing a redundant "Error: ..." line for a clean stop.
type missionExitError struct {
	reason models.StopReason
}

func (e *missionExitError) Error() string {
	return "mission stopped: " + string(e.reason)
}

// exitCodeFor maps a mission's stop reason to the process exit code.
// Any error that isn't a missionExitError is an internal failure.
func exitCodeFor(err error) int {
	missionErr, ok := err.(*missionExitError)
	if !ok {
		return 64
	}
	switch missionErr.reason {
	case models.StopObjectiveMet, models.StopTimeBudget:
		return 0
	case models.StopRepeatedFailure, models.StopStalled:
		return 1
	case models.StopCostBudget:
		return 2
	default:
		return 64
	}
}
