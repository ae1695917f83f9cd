// Package greenbranch owns the two integration refs (mc/working and
// mc/green) and drives each merge submission through merge, verify,
// accept, and promote, rolling back anything that fails a gate.
//
// Grounded on the teacher's internal/merge package: handler.go's
// merge-then-checkpoint flow, checkpoints.go's tag-based checkpoints,
// rollback.go's reset-hard recovery, and critical.go's package-manager
// conflict detection, recombined into the single-pipeline shape this
// domain calls for.
package greenbranch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shaycichocki/missionctl/internal/classify"
	"github.com/shaycichocki/missionctl/internal/exec"
	"github.com/shaycichocki/missionctl/internal/git"
	"github.com/shaycichocki/missionctl/pkg/models"
)

const (
	// WorkingBranch is the integration branch fixup attempts are reset
	// to before retrying a failed unit, exported so callers wiring a
	// FixupWorker can pass it as Candidate workspaces' base ref.
	WorkingBranch = "mc/working"
	greenBranch   = "mc/green"
	pushRef       = "refs/mc/green-push"
)

const workingBranch = WorkingBranch

// Config controls the per-submission pipeline.
type Config struct {
	VerifyCommand    string
	VerifyTimeout    time.Duration
	SkipReviewOnPass bool
	AutoPush         bool
	AutoPushPolicy   string // force | abort | merge; default abort
	PushRemote       string
	PushBranch       string
	FixupMaxAttempts int
	FixupCandidates  int
}

// DefaultConfig returns sane defaults; AutoPushPolicy defaults to
// "abort" per the resolved open question on divergence handling.
func DefaultConfig() Config {
	return Config{
		VerifyTimeout:    5 * time.Minute,
		AutoPushPolicy:   "abort",
		FixupMaxAttempts: 2,
		FixupCandidates:  3,
	}
}

// Outcome is what ProcessSubmission did with a submission.
type Outcome struct {
	UnitID   string
	NewState models.WorkUnitState
	Promoted bool
	Reason   string
	Kind     classify.Kind
}

// Manager owns mc/working and mc/green for one mission's target repo.
type Manager struct {
	cfg         Config
	repo        git.Runner
	runner      exec.CommandRunner
	checkpoints *checkpointManager
	fixup       FixupWorker
	changelog   func(Outcome)
}

// New creates a manager. missionID scopes checkpoint tag names so
// multiple missions against the same repo never collide.
func New(missionID string, repo git.Runner, cfg Config, fixup FixupWorker) *Manager {
	return &Manager{
		cfg:         cfg,
		repo:        repo,
		runner:      exec.NewRunner(),
		checkpoints: newCheckpointManager(missionID, repo),
		fixup:       fixup,
		changelog:   func(Outcome) {},
	}
}

// SetChangelog installs a sink invoked once per processed submission,
// fulfilling the one-line-per-failure changelog requirement.
func (m *Manager) SetChangelog(fn func(Outcome)) {
	if fn != nil {
		m.changelog = fn
	}
}

// SetRunner overrides the command runner used for verification and
// acceptance-criteria checks, letting tests substitute a fake.
func (m *Manager) SetRunner(r exec.CommandRunner) {
	if r != nil {
		m.runner = r
	}
}

// Bootstrap ensures both integration branches exist, creating them from
// the current HEAD if absent.
func (m *Manager) Bootstrap() error {
	for _, branch := range []string{workingBranch, greenBranch} {
		exists, err := m.repo.BranchExists(branch)
		if err != nil {
			return classify.WithKind(fmt.Errorf("check branch %s: %w", branch, err), classify.Integrity)
		}
		if !exists {
			if err := m.repo.CreateBranch(branch); err != nil {
				return classify.WithKind(fmt.Errorf("create branch %s: %w", branch, err), classify.Integrity)
			}
		}
	}
	return nil
}

// ProcessSubmission runs the full pipeline for one merge submission and
// returns the resulting outcome. It never panics on worker-supplied
// content; everything from step 2 onward treats failures as Content
// errors that escalate to fixup rather than crashing the mission.
func (m *Manager) ProcessSubmission(ctx context.Context, sub models.MergeSubmission, unit models.WorkUnit) (Outcome, error) {
	// Step 1: fast-forward idempotence check.
	alreadyGreen, err := m.repo.IsAncestor(sub.WorkerBranchRef, greenBranch)
	if err != nil {
		return Outcome{}, classify.WithKind(fmt.Errorf("ancestry check: %w", err), classify.Integrity)
	}
	if alreadyGreen {
		out := Outcome{UnitID: unit.ID, NewState: models.UnitCompleted, Reason: "already on mc/green (idempotent resubmit)"}
		m.changelog(out)
		return out, nil
	}

	return m.mergeVerifyAcceptPromote(ctx, unit, sub.WorkerBranchRef)
}

// mergeVerifyAcceptPromote drives steps 2-6 of the pipeline against
// branchRef: checkout mc/working, checkpoint, merge --no-ff, pre-merge
// verification, acceptance criteria, fast-forward promotion, and an
// optional push. Shared by ProcessSubmission's original-branch path and
// the fixup tournament's winner-merge path, since a fixup winner is
// merged "as if it had been the original" submission.
func (m *Manager) mergeVerifyAcceptPromote(ctx context.Context, unit models.WorkUnit, branchRef string) (Outcome, error) {
	if err := m.repo.CheckoutBranch(workingBranch); err != nil {
		return Outcome{}, classify.WithKind(fmt.Errorf("checkout %s: %w", workingBranch, err), classify.Integrity)
	}

	cp, err := m.checkpoints.create(unit.ID)
	if err != nil {
		return Outcome{}, classify.WithKind(err, classify.Integrity)
	}

	// Step 2: merge.
	if mergeErr := m.repo.MergeNoFF(branchRef); mergeErr != nil {
		conflicted, _ := m.repo.ConflictedFiles()
		_ = m.repo.MergeAbort()
		return m.escalateOrFail(ctx, unit, cp, classify.Wrapf(classify.Content, "merge conflict: %s", strings.Join(conflicted, ", ")))
	}

	// Step 3: pre-merge verification.
	if err := m.runVerification(ctx); err != nil {
		return m.rollbackAndEscalate(ctx, unit, cp, err)
	}

	// Step 4: acceptance criteria.
	allPassed := true
	for _, criterion := range unit.AcceptanceCriteria {
		if err := m.runShellCheck(ctx, criterion); err != nil {
			allPassed = false
			outcome, escErr := m.rollbackAndEscalate(ctx, unit, cp, classify.WithKind(err, classify.Content))
			return outcome, escErr
		}
	}

	// Step 5: promote (fast-forward mc/green to mc/working).
	if _, err := m.repo.RevParse(workingBranch); err != nil {
		return Outcome{}, classify.WithKind(fmt.Errorf("resolve %s: %w", workingBranch, err), classify.Integrity)
	}
	if err := m.repo.CheckoutBranch(greenBranch); err != nil {
		return Outcome{}, classify.WithKind(fmt.Errorf("checkout %s: %w", greenBranch, err), classify.Integrity)
	}
	if err := m.repo.MergeFFOnly(workingBranch); err != nil {
		return Outcome{}, classify.WithKind(fmt.Errorf("non-fast-forward promotion of %s: %w", greenBranch, err), classify.Integrity)
	}

	m.checkpoints.markGood(unit.ID)

	// Step 6: optional push. Push failures are logged, never abandon a promoted unit.
	if m.cfg.AutoPush {
		if err := m.push(); err != nil {
			out := Outcome{UnitID: unit.ID, NewState: models.UnitCompleted, Promoted: true, Reason: fmt.Sprintf("promoted but push failed: %v", err), Kind: classify.Transient}
			m.changelog(out)
			return out, nil
		}
	}

	skipReview := m.cfg.SkipReviewOnPass && allPassed && len(unit.AcceptanceCriteria) > 0
	reason := "promoted"
	if skipReview {
		reason = "promoted, eligible to skip review"
	}
	out := Outcome{UnitID: unit.ID, NewState: models.UnitCompleted, Promoted: true, Reason: reason}
	m.changelog(out)
	return out, nil
}

func (m *Manager) runVerification(ctx context.Context) error {
	if m.cfg.VerifyCommand == "" {
		return nil
	}
	return m.runShellCheck(ctx, m.cfg.VerifyCommand)
}

// repoPather is satisfied by git runners that expose the working
// directory their commands execute in; the fake runner used in tests
// doesn't need one since those tests never set a shell check command.
type repoPather interface {
	RepoPath() string
}

func (m *Manager) runShellCheck(ctx context.Context, command string) error {
	timeout := m.cfg.VerifyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	workDir := ""
	if p, ok := m.repo.(repoPather); ok {
		workDir = p.RepoPath()
	}

	out, err := m.runner.RunShell(cmdCtx, workDir, command)
	if cmdCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("command %q timed out after %s", command, timeout)
	}
	if err != nil {
		return fmt.Errorf("command %q failed: %w: %s", command, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// rollback resets mc/working to the commit the checkpoint was taken at
// with reset --hard. Untracked files left by the failed attempt are not
// removed.
func (m *Manager) rollback(cp *checkpoint) error {
	if err := m.repo.CheckoutBranch(workingBranch); err != nil {
		return classify.WithKind(fmt.Errorf("checkout %s for rollback: %w", workingBranch, err), classify.Integrity)
	}
	if err := m.repo.ResetHard(cp.commitSHA); err != nil {
		return classify.WithKind(fmt.Errorf("reset --hard %s: %w", cp.commitSHA, err), classify.Integrity)
	}
	m.checkpoints.markBad(cp.unitID)
	return nil
}

func (m *Manager) rollbackAndEscalate(ctx context.Context, unit models.WorkUnit, cp *checkpoint, cause error) (Outcome, error) {
	if err := m.rollback(cp); err != nil {
		return Outcome{}, err
	}
	return m.escalateOrFail(ctx, unit, cp, cause)
}

// push publishes mc/green according to AutoPushPolicy, which governs
// what happens when the upstream ref has diverged from our history:
//
//   - force: overwrite the upstream ref unconditionally.
//   - abort (default): push without forcing; a diverged upstream
//     rejects the push and the error surfaces rather than being masked.
//   - merge: fetch upstream, merge it into mc/green, then push, so
//     divergence is reconciled instead of clobbered or refused.
func (m *Manager) push() error {
	switch m.cfg.AutoPushPolicy {
	case "force":
		return m.pushForce()
	case "merge":
		return m.pushMerge()
	default:
		return m.pushAbortOnDiverge()
	}
}

func (m *Manager) pushForce() error {
	if err := m.repo.Push(m.cfg.PushRemote, "+"+greenBranch+":"+pushRef); err != nil {
		return classify.WithKind(err, classify.Transient)
	}
	return m.pushBranchIfConfigured()
}

func (m *Manager) pushAbortOnDiverge() error {
	if err := m.repo.Push(m.cfg.PushRemote, greenBranch+":"+pushRef); err != nil {
		return classify.WithKind(fmt.Errorf("push rejected, upstream diverged and auto_push_policy=abort refuses to force: %w", err), classify.Transient)
	}
	return m.pushBranchIfConfigured()
}

func (m *Manager) pushMerge() error {
	if _, err := m.repo.Run("fetch", m.cfg.PushRemote, pushRef); err != nil {
		return classify.WithKind(fmt.Errorf("fetch before merge push: %w", err), classify.Transient)
	}
	if err := m.repo.CheckoutBranch(greenBranch); err != nil {
		return classify.WithKind(fmt.Errorf("checkout %s for merge push: %w", greenBranch, err), classify.Integrity)
	}
	if err := m.repo.Merge("FETCH_HEAD"); err != nil {
		return classify.WithKind(fmt.Errorf("merge upstream divergence: %w", err), classify.Transient)
	}
	if err := m.repo.Push(m.cfg.PushRemote, greenBranch+":"+pushRef); err != nil {
		return classify.WithKind(err, classify.Transient)
	}
	return m.pushBranchIfConfigured()
}

func (m *Manager) pushBranchIfConfigured() error {
	if m.cfg.PushBranch != "" {
		if err := m.repo.Push(m.cfg.PushRemote, greenBranch+":"+m.cfg.PushBranch); err != nil {
			return classify.WithKind(err, classify.Transient)
		}
	}
	return nil
}

// Cleanup removes every checkpoint tag this manager has created.
func (m *Manager) Cleanup() error {
	return m.checkpoints.cleanup()
}

// DiffAgainstParent returns the diff mc/green picked up from ref's
// merge, for the DiffReviewer's fire-and-forget scoring pass. It never
// blocks the merge pipeline; callers invoke it after ProcessSubmission
// has already promoted.
func (m *Manager) DiffAgainstParent(ref string) (string, error) {
	return m.repo.Diff(ref)
}
