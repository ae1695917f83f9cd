package greenbranch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shaycichocki/missionctl/internal/git/gittest"
	"github.com/shaycichocki/missionctl/pkg/models"
)

func newManager(t *testing.T, cfg Config, fixup FixupWorker) (*Manager, *gittest.Fake) {
	t.Helper()
	repo := gittest.New()
	repo.Branches[workingBranch] = true
	repo.Branches[greenBranch] = true
	return New("m1", repo, cfg, fixup), repo
}

func TestProcessSubmissionPromotesOnSuccess(t *testing.T) {
	cfg := DefaultConfig()
	mgr, repo := newManager(t, cfg, nil)

	unit := models.WorkUnit{ID: "u1", State: models.UnitDispatched}
	sub := models.MergeSubmission{UnitID: "u1", WorkerBranchRef: "unit-u1"}

	out, err := mgr.ProcessSubmission(context.Background(), sub, unit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Promoted || out.NewState != models.UnitCompleted {
		t.Fatalf("expected promoted/completed, got %+v", out)
	}

	found := false
	for _, c := range repo.Calls() {
		if c == "MergeFFOnly" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected promotion to fast-forward mc/green, calls were %v", repo.Calls())
	}
}

func TestProcessSubmissionIdempotentResubmit(t *testing.T) {
	cfg := DefaultConfig()
	mgr, repo := newManager(t, cfg, nil)
	repo.IsAncestorFn = func(ancestor, descendant string) (bool, error) { return true, nil }

	unit := models.WorkUnit{ID: "u1"}
	sub := models.MergeSubmission{UnitID: "u1", WorkerBranchRef: "unit-u1"}

	out, err := mgr.ProcessSubmission(context.Background(), sub, unit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NewState != models.UnitCompleted {
		t.Fatalf("expected already-green resubmit to report completed, got %+v", out)
	}
	for _, c := range repo.Calls() {
		if c == "MergeNoFF" {
			t.Errorf("idempotent resubmit should not re-merge, calls were %v", repo.Calls())
		}
	}
}

func TestProcessSubmissionRollsBackOnVerificationFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VerifyCommand = "exit 1"
	cfg.VerifyTimeout = 2 * time.Second
	cfg.FixupMaxAttempts = 0
	mgr, repo := newManager(t, cfg, nil)

	unit := models.WorkUnit{ID: "u1", AttemptCount: 0}
	sub := models.MergeSubmission{UnitID: "u1", WorkerBranchRef: "unit-u1"}

	out, err := mgr.ProcessSubmission(context.Background(), sub, unit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NewState != models.UnitRejected {
		t.Fatalf("expected rejection after failed verification with no fixup budget, got %+v", out)
	}

	found := false
	for _, c := range repo.Calls() {
		if c == "ResetHard" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected rollback to reset mc/working, calls were %v", repo.Calls())
	}
}

type stubFixup struct {
	candidate Candidate
	err       error
}

func (s stubFixup) Fixup(ctx context.Context, unit models.WorkUnit, reason string) (Candidate, error) {
	return s.candidate, s.err
}

func TestProcessSubmissionEscalatesToFixupOnMergeConflict(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FixupMaxAttempts = 2
	cfg.FixupCandidates = 1
	released := false
	fixup := stubFixup{candidate: Candidate{
		BranchRef:     "fixup-1",
		WorkspacePath: "/tmp/fixup-ws-1",
		TestsPassed:   5,
		Release:       func() { released = true },
	}}
	mgr, repo := newManager(t, cfg, fixup)
	repo.Conflicted = []string{"main.go"}
	repo.MergeFn = func(branch string) error {
		if branch == "unit-u1" {
			return errors.New("conflict")
		}
		return nil
	}

	unit := models.WorkUnit{ID: "u1", AttemptCount: 0}
	sub := models.MergeSubmission{UnitID: "u1", WorkerBranchRef: "unit-u1"}

	out, err := mgr.ProcessSubmission(context.Background(), sub, unit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Promoted || out.NewState != models.UnitCompleted {
		t.Fatalf("expected the fixup winner to be merged and promoted, got %+v", out)
	}

	fetched := false
	for _, c := range repo.Calls() {
		if c == "FetchRef" {
			fetched = true
		}
	}
	if !fetched {
		t.Errorf("expected the fixup winner's branch to be fetched from its workspace, calls were %v", repo.Calls())
	}
	if !released {
		t.Errorf("expected the fixup winner's workspace to be released after merge")
	}
}

func TestFixupTournamentSelectsWinnerLexicographically(t *testing.T) {
	now := time.Unix(1000, 0)
	candidates := []Candidate{
		{BranchRef: "c1", TestsPassed: 12, LintErrors: 0, DiffLines: 40, SubmittedAt: now},
		{BranchRef: "c2", TestsPassed: 12, LintErrors: 2, DiffLines: 20, SubmittedAt: now.Add(time.Second)},
		{BranchRef: "c3", TestsPassed: 11, LintErrors: 0, DiffLines: 15, SubmittedAt: now.Add(2 * time.Second)},
	}

	winner := selectWinner(candidates)
	if winner.BranchRef != "c1" {
		t.Fatalf("expected c1 to win on fewest lint errors among tied test counts, got %s", winner.BranchRef)
	}
}

func TestFixupTournamentTiesBrokenBySubmissionOrder(t *testing.T) {
	now := time.Unix(2000, 0)
	candidates := []Candidate{
		{BranchRef: "late", TestsPassed: 10, LintErrors: 0, DiffLines: 10, SubmittedAt: now.Add(time.Second)},
		{BranchRef: "early", TestsPassed: 10, LintErrors: 0, DiffLines: 10, SubmittedAt: now},
	}

	winner := selectWinner(candidates)
	if winner.BranchRef != "early" {
		t.Fatalf("expected earliest submission to win a full tie, got %s", winner.BranchRef)
	}
}
