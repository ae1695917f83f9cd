package greenbranch

import (
	"context"
	"testing"

	"github.com/shaycichocki/missionctl/internal/git"
	"github.com/shaycichocki/missionctl/internal/git/gittest"
	"github.com/shaycichocki/missionctl/internal/workspace"
	"github.com/shaycichocki/missionctl/pkg/models"
)

type fakeFixupBackend struct {
	env models.ResultEnvelope
	err error
}

func (b *fakeFixupBackend) Run(_ context.Context, _ string, _ models.WorkUnit) (models.ResultEnvelope, error) {
	return b.env, b.err
}

func TestWorkerFixupReturnsScoredCandidate(t *testing.T) {
	pool, err := workspace.NewWithRunnerFactory("/src", t.TempDir(), 2, func(string) git.Runner { return gittest.New() })
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	backend := &fakeFixupBackend{env: models.ResultEnvelope{
		ExitStatus: 0,
		FilesChanged: []string{"a.go", "b.go"},
		MCResultFields: map[string]string{
			"branch":       "mc/fixup/u1",
			"tests_passed": "7",
			"lint_errors":  "1",
		},
	}}
	w := &WorkerFixup{Backend: backend, Workspaces: pool, BaseRef: "mc/working"}

	cand, err := w.Fixup(context.Background(), models.WorkUnit{ID: "u1", Description: "do the thing"}, "tests failed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cand.BranchRef != "mc/fixup/u1" {
		t.Errorf("expected branch ref from envelope, got %q", cand.BranchRef)
	}
	if cand.TestsPassed != 7 || cand.LintErrors != 1 {
		t.Errorf("expected scoring fields parsed from envelope, got %+v", cand)
	}
	if cand.DiffLines != 2 {
		t.Errorf("expected diff_lines to fall back to len(FilesChanged), got %d", cand.DiffLines)
	}
	if cand.WorkspacePath == "" {
		t.Errorf("expected a workspace path so the winner's branch can be fetched")
	}
	if cand.Release == nil {
		t.Fatalf("expected a release func")
	}

	if pool.AvailableSlots() != 1 {
		t.Fatalf("expected the clone to still be leased before Release is called, got %d available", pool.AvailableSlots())
	}
	cand.Release()
	if pool.AvailableSlots() != 2 {
		t.Errorf("expected Release to return the clone to the pool")
	}
}

func TestWorkerFixupReleasesWorkspaceOnFailedAttempt(t *testing.T) {
	pool, err := workspace.NewWithRunnerFactory("/src", t.TempDir(), 1, func(string) git.Runner { return gittest.New() })
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	backend := &fakeFixupBackend{env: models.ResultEnvelope{ExitStatus: 1, ErrorKind: models.ErrorContent, Summary: "still broken"}}
	w := &WorkerFixup{Backend: backend, Workspaces: pool, BaseRef: "mc/working"}

	_, err = w.Fixup(context.Background(), models.WorkUnit{ID: "u1"}, "tests failed")
	if err == nil {
		t.Fatalf("expected an error for a failed fixup attempt")
	}
	if pool.AvailableSlots() != 1 {
		t.Errorf("expected the clone to be released back to the pool on failure")
	}
}
