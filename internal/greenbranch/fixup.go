package greenbranch

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shaycichocki/missionctl/internal/classify"
	"github.com/shaycichocki/missionctl/internal/worker"
	"github.com/shaycichocki/missionctl/internal/workspace"
	"github.com/shaycichocki/missionctl/pkg/models"
)

// FixupWorker launches an alternative attempt at a failed unit in its
// own workspace clone and reports a scored candidate.
type FixupWorker interface {
	Fixup(ctx context.Context, unit models.WorkUnit, reason string) (Candidate, error)
}

// Candidate is one fixup attempt's scoring inputs for the tournament.
// WorkspacePath is the clone the attempt ran in, needed to fetch its
// branch into the main repo before the winner can be merged; Release
// returns that clone to its pool once the tournament is decided,
// whether this candidate won or lost.
type Candidate struct {
	BranchRef     string
	WorkspacePath string
	TestsPassed   int
	LintErrors    int
	DiffLines     int
	SubmittedAt   time.Time
	Release       func()
}

// escalateOrFail decides, given attempt_count and fixup_max_attempts,
// whether to run the fixup tournament or give up on the unit. A
// tournament win is merged through the same pipeline a normal
// submission uses, "as if it had been the original" attempt.
func (m *Manager) escalateOrFail(ctx context.Context, unit models.WorkUnit, cp *checkpoint, cause error) (Outcome, error) {
	kind := classify.Of(cause)

	if kind == classify.Integrity {
		out := Outcome{UnitID: unit.ID, NewState: models.UnitRolledBack, Reason: cause.Error(), Kind: classify.Integrity}
		m.changelog(out)
		return out, cause
	}

	if unit.AttemptCount >= m.cfg.FixupMaxAttempts || m.fixup == nil {
		out := Outcome{UnitID: unit.ID, NewState: models.UnitRejected, Reason: fmt.Sprintf("abandoned after %d attempts: %v", unit.AttemptCount, cause), Kind: kind}
		m.changelog(out)
		return out, nil
	}

	candidates, err := m.runFixupTournament(ctx, unit, cause.Error())
	if err != nil {
		out := Outcome{UnitID: unit.ID, NewState: models.UnitRolledBack, Reason: fmt.Sprintf("fixup tournament failed: %v", err), Kind: classify.Content}
		m.changelog(out)
		return out, nil
	}

	winner := selectWinner(candidates)
	releaseAllBut(candidates, winner)

	if winner.WorkspacePath != "" {
		if err := m.repo.FetchRef(winner.WorkspacePath, winner.BranchRef); err != nil {
			if winner.Release != nil {
				winner.Release()
			}
			out := Outcome{UnitID: unit.ID, NewState: models.UnitRolledBack, Reason: fmt.Sprintf("fetch fixup winner %s: %v", winner.BranchRef, err), Kind: classify.Integrity}
			m.changelog(out)
			return out, nil
		}
	}

	out, err := m.mergeVerifyAcceptPromote(ctx, unit, winner.BranchRef)
	if winner.Release != nil {
		winner.Release()
	}
	return out, err
}

// runFixupTournament spawns FixupCandidates parallel fixup attempts and
// returns every candidate that completed, for selectWinner to judge.
func (m *Manager) runFixupTournament(ctx context.Context, unit models.WorkUnit, reason string) ([]Candidate, error) {
	n := m.cfg.FixupCandidates
	if n <= 0 {
		n = 1
	}

	type result struct {
		cand Candidate
		err  error
	}
	results := make(chan result, n)
	for i := 0; i < n; i++ {
		go func() {
			c, err := m.fixup.Fixup(ctx, unit, reason)
			results <- result{cand: c, err: err}
		}()
	}

	var candidates []Candidate
	for i := 0; i < n; i++ {
		r := <-results
		if r.err == nil {
			candidates = append(candidates, r.cand)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("all %d fixup candidates failed", n)
	}

	return candidates, nil
}

// selectWinner implements the lexicographic tournament: highest
// tests_passed wins, ties broken by fewest lint_errors, then fewest
// diff_lines, then earliest submission.
func selectWinner(candidates []Candidate) Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.TestsPassed != b.TestsPassed {
			return a.TestsPassed > b.TestsPassed
		}
		if a.LintErrors != b.LintErrors {
			return a.LintErrors < b.LintErrors
		}
		if a.DiffLines != b.DiffLines {
			return a.DiffLines < b.DiffLines
		}
		return a.SubmittedAt.Before(b.SubmittedAt)
	})
	return candidates[0]
}

// releaseAllBut recycles every losing candidate's workspace immediately;
// the winner's is released by the caller once its branch has been
// fetched out of it.
func releaseAllBut(candidates []Candidate, winner Candidate) {
	for _, c := range candidates {
		if c.BranchRef == winner.BranchRef && c.WorkspacePath == winner.WorkspacePath {
			continue
		}
		if c.Release != nil {
			c.Release()
		}
	}
}

// WorkerFixup is the production FixupWorker: it runs a retry attempt of
// the failed unit through the same WorkerBackend used for normal
// dispatch, in a freshly acquired WorkspacePool clone reset to
// BaseRef, and scores the attempt from its result envelope.
type WorkerFixup struct {
	Backend    worker.Backend
	Workspaces *workspace.Pool
	BaseRef    string
}

// Fixup acquires a clone, reruns the unit with the failure reason
// appended to its description, and reports a scored Candidate. On any
// failure to even produce an attempt, the clone is released immediately
// and an error is returned so the tournament can discount this slot.
func (w *WorkerFixup) Fixup(ctx context.Context, unit models.WorkUnit, reason string) (Candidate, error) {
	handle, ok, err := w.Workspaces.Acquire(ctx, w.BaseRef)
	if err != nil {
		return Candidate{}, fmt.Errorf("acquire fixup workspace: %w", err)
	}
	if !ok {
		return Candidate{}, fmt.Errorf("no workspace slot available for fixup attempt")
	}

	retry := unit
	retry.Description = fmt.Sprintf("%s\n\nPrevious attempt failed: %s", unit.Description, reason)

	env, err := w.Backend.Run(ctx, handle.Path, retry)
	if err != nil {
		w.Workspaces.Release(handle, true)
		return Candidate{}, fmt.Errorf("run fixup attempt: %w", err)
	}
	if !env.Succeeded() {
		w.Workspaces.Release(handle, true)
		return Candidate{}, fmt.Errorf("fixup attempt did not succeed: %s", env.Summary)
	}

	branchRef := env.MCResultFields["branch"]
	if branchRef == "" {
		branchRef = env.MCResultFields["ref"]
	}
	if branchRef == "" {
		w.Workspaces.Release(handle, true)
		return Candidate{}, fmt.Errorf("fixup attempt reported no branch")
	}

	testsPassed, _ := strconv.Atoi(env.MCResultFields["tests_passed"])
	lintErrors, _ := strconv.Atoi(env.MCResultFields["lint_errors"])
	diffLines := len(env.FilesChanged)
	if v, ok := env.MCResultFields["diff_lines"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			diffLines = n
		}
	}

	return Candidate{
		BranchRef:     branchRef,
		WorkspacePath: handle.Path,
		TestsPassed:   testsPassed,
		LintErrors:    lintErrors,
		DiffLines:     diffLines,
		SubmittedAt:   time.Now(),
		Release:       func() { w.Workspaces.Release(handle, true) },
	}, nil
}

var _ FixupWorker = (*WorkerFixup)(nil)
