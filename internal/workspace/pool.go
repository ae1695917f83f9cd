// Package workspace maintains a bounded pool of isolated clones of the
// target repository so that concurrently dispatched workers never share
// a working tree.
//
// Each clone is produced with `git clone --shared`, not `git worktree
// add`: workers run arbitrary, untrusted subprocess commands against
// their clone, and a worktree shares the source repository's .git
// directory (refs, index locks) in a way a clone does not. Object
// storage is still shared via --shared so provisioning a clone is cheap.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/shaycichocki/missionctl/internal/classify"
	"github.com/shaycichocki/missionctl/internal/git"
)

// Handle is a leased clone. Callers must call Pool.Release(handle) when
// done, whether the unit succeeded or failed.
type Handle struct {
	ID         string
	Path       string
	BranchName string
	dirty      bool
}

// Pool manages up to Capacity directory clones of the source repository.
type Pool struct {
	sourcePath string
	baseDir    string
	capacity   int
	newRunner  func(path string) git.Runner

	mu      sync.Mutex
	leased  map[string]*Handle
	free    []*Handle
	total   int
}

// New creates a pool rooted at baseDir (must be an absolute path the
// caller controls explicitly — never derived from the running binary's
// own location, since that location has no relation to where the target
// repository or its clones should live). sourcePath is the git
// repository to clone from.
func New(sourcePath, baseDir string, capacity int) (*Pool, error) {
	if !filepath.IsAbs(baseDir) {
		return nil, fmt.Errorf("workspace base dir must be absolute, got %q", baseDir)
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, classify.WithKind(fmt.Errorf("create workspace base dir: %w", err), classify.Transient)
	}
	return &Pool{
		sourcePath: sourcePath,
		baseDir:    baseDir,
		capacity:   capacity,
		newRunner:  func(path string) git.Runner { return git.NewRunner(path) },
		leased:     make(map[string]*Handle),
	}, nil
}

// NewWithRunnerFactory is like New but lets tests substitute a fake
// git.Runner instead of shelling out to the real git binary.
func NewWithRunnerFactory(sourcePath, baseDir string, capacity int, newRunner func(path string) git.Runner) (*Pool, error) {
	p, err := New(sourcePath, baseDir, capacity)
	if err != nil {
		return nil, err
	}
	p.newRunner = newRunner
	return p, nil
}

// AvailableSlots returns how many clones could be acquired right now,
// counting both idle clones ready for reuse and unprovisioned capacity.
func (p *Pool) AvailableSlots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.availableSlotsLocked()
}

func (p *Pool) availableSlotsLocked() int {
	return p.capacity - len(p.leased)
}

// Acquire returns a leased clone, reusing a recycled one if available or
// provisioning a fresh clone otherwise. Returns ok=false without error
// when the pool is at capacity.
func (p *Pool) Acquire(ctx context.Context, baseRef string) (handle *Handle, ok bool, err error) {
	p.mu.Lock()
	if p.availableSlotsLocked() <= 0 {
		p.mu.Unlock()
		return nil, false, nil
	}

	var h *Handle
	if n := len(p.free); n > 0 {
		h = p.free[n-1]
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()

	if h == nil {
		h, err = p.provision(ctx)
		if err != nil {
			return nil, false, err
		}
	} else if err := p.resetToRef(h, baseRef); err != nil {
		return nil, false, err
	}

	p.mu.Lock()
	p.leased[h.ID] = h
	p.mu.Unlock()
	return h, true, nil
}

func (p *Pool) provision(ctx context.Context) (*Handle, error) {
	id := uuid.New().String()
	path := filepath.Join(p.baseDir, id)

	src := p.newRunner(p.sourcePath)
	if err := src.CloneShared(p.sourcePath, path, ""); err != nil {
		return nil, classify.WithKind(fmt.Errorf("provision clone: %w", err), classify.Transient)
	}

	p.mu.Lock()
	p.total++
	p.mu.Unlock()

	return &Handle{ID: id, Path: path}, nil
}

func (p *Pool) resetToRef(h *Handle, baseRef string) error {
	if baseRef == "" {
		return nil
	}
	r := p.newRunner(h.Path)
	if err := r.ResetHard(baseRef); err != nil {
		return classify.WithKind(fmt.Errorf("reset clone %s to %s: %w", h.ID, baseRef, err), classify.Transient)
	}
	return nil
}

// Release returns handle to the pool. If dirty is true the clone is
// queued for a hard reset on its next acquisition rather than reset
// synchronously, matching the spec's allowance that recycling may be
// deferred to a background maintenance pass.
func (p *Pool) Release(handle *Handle, dirty bool) {
	if handle == nil {
		return
	}
	handle.dirty = dirty

	p.mu.Lock()
	delete(p.leased, handle.ID)
	p.free = append(p.free, handle)
	p.mu.Unlock()
}

// Recycle hard-resets any idle clones marked dirty back to baseRef. It
// is meant to be called periodically from a background goroutine, not
// on the critical dispatch path.
func (p *Pool) Recycle(baseRef string) error {
	p.mu.Lock()
	var dirty []*Handle
	for _, h := range p.free {
		if h.dirty {
			dirty = append(dirty, h)
		}
	}
	p.mu.Unlock()

	for _, h := range dirty {
		if err := p.resetToRef(h, baseRef); err != nil {
			return err
		}
		h.dirty = false
	}
	return nil
}

// Total returns the number of clones ever provisioned (idle + leased).
func (p *Pool) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Close removes every clone directory the pool has provisioned.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	all := append([]*Handle{}, p.free...)
	for _, h := range p.leased {
		all = append(all, h)
	}
	var firstErr error
	for _, h := range all {
		if err := os.RemoveAll(h.Path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.free = nil
	p.leased = make(map[string]*Handle)
	return firstErr
}
