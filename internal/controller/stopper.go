package controller

import "github.com/shaycichocki/missionctl/pkg/models"

// stopChecker evaluates the controller's stop conditions once per
// epoch, grounded on the teacher's architect.StopChecker but remapped
// from iteration/budget/convergence to this domain's wall-time, cost,
// repeated-failure, and stall reasons.
type stopChecker struct {
	cfg Config

	consecutiveAllFail int
	stallCount         int
	lastGreenAdvance   string // worker branch ref of the last promotion seen
}

func newStopChecker(cfg Config) *stopChecker {
	return &stopChecker{cfg: cfg}
}

// observeEpoch records this epoch's outcome before Check is consulted.
func (s *stopChecker) observeEpoch(allFailed bool, greenAdvanced bool, greenSHA string) {
	if allFailed {
		s.consecutiveAllFail++
	} else {
		s.consecutiveAllFail = 0
	}

	if greenAdvanced && greenSHA != s.lastGreenAdvance {
		s.stallCount = 0
		s.lastGreenAdvance = greenSHA
	} else {
		s.stallCount++
	}
}

// Check evaluates the stop conditions in spec priority order: wall
// time, cost, repeated failure, stall, objective. The caller supplies
// objectiveMet since only it can evaluate the verification command.
func (s *stopChecker) check(m models.Mission, wallTimeExceeded bool, objectiveMet bool) (models.StopReason, bool) {
	if wallTimeExceeded {
		return models.StopTimeBudget, true
	}
	if m.BudgetUSD > 0 && m.TotalCostUSD >= m.BudgetUSD {
		return models.StopCostBudget, true
	}
	if s.consecutiveAllFail >= s.cfg.MaxConsecutiveFailures {
		return models.StopRepeatedFailure, true
	}
	if s.cfg.StallThreshold > 0 && s.stallCount >= s.cfg.StallThreshold {
		return models.StopStalled, true
	}
	if objectiveMet {
		return models.StopObjectiveMet, true
	}
	return models.StopNone, false
}

// shouldBackoff reports whether the controller just crossed into its
// first all-fail epoch, in which case it sleeps FailureBackoff and
// retries rather than immediately re-planning.
func (s *stopChecker) shouldBackoff() bool {
	return s.consecutiveAllFail == 1
}
