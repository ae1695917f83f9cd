package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shaycichocki/missionctl/internal/git"
	"github.com/shaycichocki/missionctl/internal/git/gittest"
)

func newTestPool(t *testing.T, capacity int) *Pool {
	t.Helper()
	dir := t.TempDir()
	p, err := NewWithRunnerFactory("/src/repo", dir, capacity, func(path string) git.Runner {
		return gittest.New()
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestAcquireProvisionsUpToCapacity(t *testing.T) {
	p := newTestPool(t, 2)
	ctx := context.Background()

	h1, ok, err := p.Acquire(ctx, "")
	if !ok || err != nil {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	h2, ok, err := p.Acquire(ctx, "")
	if !ok || err != nil {
		t.Fatalf("expected second acquire to succeed, ok=%v err=%v", ok, err)
	}
	if h1.Path == h2.Path {
		t.Fatal("expected distinct clone paths")
	}

	_, ok, err = p.Acquire(ctx, "")
	if ok || err != nil {
		t.Fatalf("expected third acquire to be refused at capacity, ok=%v err=%v", ok, err)
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	p := newTestPool(t, 1)
	ctx := context.Background()

	h, ok, _ := p.Acquire(ctx, "")
	if !ok {
		t.Fatal("expected acquire to succeed")
	}
	p.Release(h, false)

	if p.Total() != 1 {
		t.Errorf("expected exactly one clone ever provisioned, got %d", p.Total())
	}

	h2, ok, err := p.Acquire(ctx, "")
	if !ok || err != nil {
		t.Fatalf("expected reacquire to reuse released clone: ok=%v err=%v", ok, err)
	}
	if h2.Path != h.Path {
		t.Error("expected reacquire to reuse the same clone path")
	}
}

func TestCloseRemovesProvisionedDirectories(t *testing.T) {
	dir := t.TempDir()
	p, err := NewWithRunnerFactory("/src/repo", dir, 1, func(path string) git.Runner {
		return gittest.New()
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.newRunner = func(path string) git.Runner {
		fake := gittest.New()
		fake.CloneFn = func(src, dest, branch string) error {
			return os.MkdirAll(dest, 0o755)
		}
		return fake
	}

	h, ok, err := p.Acquire(context.Background(), "")
	if !ok || err != nil {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, h.ID)); statErr != nil {
		t.Fatalf("expected clone dir to exist: %v", statErr)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, h.ID)); !os.IsNotExist(statErr) {
		t.Error("expected clone dir to be removed after Close")
	}
}
