// Package gittest provides an in-memory fake of git.Runner for tests in
// other packages, mirroring the seams the teacher repo exposes via
// NewHandlerWithRunner/NewWorktreeManagerWithRunner constructors.
package gittest

import (
	"fmt"

	"github.com/shaycichocki/missionctl/internal/git"
)

// Fake is a minimal, scriptable git.Runner. Callers configure behavior
// via the exported fields/funcs before exercising code under test.
type Fake struct {
	Branch       string
	Branches     map[string]bool
	Commits      map[string]string // ref -> commit sha
	Conflicted   []string
	HasConflictsFn func() (bool, error)
	MergeFn      func(branch string) error
	CloneFn      func(src, dest, branch string) error
	PushFn       func(remote, refspec string) error
	RunFn        func(args ...string) (string, error)
	IsAncestorFn func(ancestor, descendant string) (bool, error)
	FetchRefFn   func(src, branch string) error

	calls []string
}

// New creates an empty fake with sane zero-value defaults.
func New() *Fake {
	return &Fake{
		Branches: map[string]bool{"main": true},
		Commits:  map[string]string{},
	}
}

// Calls returns the recorded method names, in order, for assertions.
func (f *Fake) Calls() []string { return f.calls }

func (f *Fake) record(name string) { f.calls = append(f.calls, name) }

func (f *Fake) CurrentBranch() (string, error) { f.record("CurrentBranch"); return f.Branch, nil }
func (f *Fake) CreateBranch(name string) error {
	f.record("CreateBranch")
	f.Branches[name] = true
	return nil
}
func (f *Fake) CreateAndCheckoutBranch(name string) error {
	f.record("CreateAndCheckoutBranch")
	f.Branches[name] = true
	f.Branch = name
	return nil
}
func (f *Fake) CheckoutBranch(name string) error {
	f.record("CheckoutBranch")
	f.Branch = name
	return nil
}
func (f *Fake) BranchExists(name string) (bool, error) {
	f.record("BranchExists")
	return f.Branches[name], nil
}
func (f *Fake) DeleteBranch(name string) error {
	f.record("DeleteBranch")
	delete(f.Branches, name)
	return nil
}

func (f *Fake) Status() (string, error) { f.record("Status"); return "", nil }
func (f *Fake) HasChanges() (bool, error) { f.record("HasChanges"); return false, nil }
func (f *Fake) Diff(base string) (string, error) { f.record("Diff"); return "", nil }
func (f *Fake) DiffBetween(ref1, ref2 string) (string, error) { f.record("DiffBetween"); return "", nil }
func (f *Fake) ChangedFiles(base string) ([]string, error) { f.record("ChangedFiles"); return nil, nil }
func (f *Fake) ChangedFilesBetween(ref1, ref2 string) ([]string, error) {
	f.record("ChangedFilesBetween")
	return nil, nil
}
func (f *Fake) ChangedFilesRelative(branch, relativeTo string) ([]string, error) {
	f.record("ChangedFilesRelative")
	return nil, nil
}
func (f *Fake) ConflictedFiles() ([]string, error) { f.record("ConflictedFiles"); return f.Conflicted, nil }

func (f *Fake) Add(paths ...string) error        { f.record("Add"); return nil }
func (f *Fake) Commit(message string) error      { f.record("Commit"); return nil }
func (f *Fake) Reset(ref string) error            { f.record("Reset"); return nil }
func (f *Fake) CheckoutPath(path string) error    { f.record("CheckoutPath"); return nil }

func (f *Fake) Merge(branch string) error {
	f.record("Merge")
	if f.MergeFn != nil {
		return f.MergeFn(branch)
	}
	return nil
}
func (f *Fake) MergeNoFF(branch string) error {
	f.record("MergeNoFF")
	if f.MergeFn != nil {
		return f.MergeFn(branch)
	}
	return nil
}
func (f *Fake) MergeNoFFMessage(branch, message string) error {
	f.record("MergeNoFFMessage")
	if f.MergeFn != nil {
		return f.MergeFn(branch)
	}
	return nil
}
func (f *Fake) MergeAbort() error { f.record("MergeAbort"); return nil }
func (f *Fake) MergeBase(branch1, branch2 string) (string, error) {
	f.record("MergeBase")
	return "base-sha", nil
}
func (f *Fake) HasConflicts() (bool, error) {
	f.record("HasConflicts")
	if f.HasConflictsFn != nil {
		return f.HasConflictsFn()
	}
	return len(f.Conflicted) > 0, nil
}
func (f *Fake) Rebase(base string) error { f.record("Rebase"); return nil }
func (f *Fake) RebaseAbort() error       { f.record("RebaseAbort"); return nil }

func (f *Fake) WorktreeAdd(path, branch string) error              { f.record("WorktreeAdd"); return nil }
func (f *Fake) WorktreeAddNewBranch(path, branch string) error     { f.record("WorktreeAddNewBranch"); return nil }
func (f *Fake) WorktreeRemove(path string) error                   { f.record("WorktreeRemove"); return nil }
func (f *Fake) WorktreeRemoveOptionalForce(path string, force bool) error {
	f.record("WorktreeRemoveOptionalForce")
	return nil
}
func (f *Fake) WorktreeUnlock(path string) error          { f.record("WorktreeUnlock"); return nil }
func (f *Fake) WorktreeList() ([]string, error)           { f.record("WorktreeList"); return nil, nil }
func (f *Fake) WorktreeListPorcelain() (string, error)    { f.record("WorktreeListPorcelain"); return "", nil }
func (f *Fake) WorktreePrune() error                      { f.record("WorktreePrune"); return nil }
func (f *Fake) WorktreePruneExpireNow() error              { f.record("WorktreePruneExpireNow"); return nil }

func (f *Fake) PullFFOnly() error { f.record("PullFFOnly"); return nil }
func (f *Fake) Push(remote, refspec string) error {
	f.record("Push")
	if f.PushFn != nil {
		return f.PushFn(remote, refspec)
	}
	return nil
}
func (f *Fake) FetchRef(src, branch string) error {
	f.record("FetchRef")
	if f.FetchRefFn != nil {
		return f.FetchRefFn(src, branch)
	}
	f.Branches[branch] = true
	return nil
}

func (f *Fake) ShowFile(ref, path string) (string, error) { f.record("ShowFile"); return "", nil }
func (f *Fake) CheckoutOurs(path string) error             { f.record("CheckoutOurs"); return nil }
func (f *Fake) CheckoutTheirs(path string) error           { f.record("CheckoutTheirs"); return nil }

func (f *Fake) CloneShared(src, dest, branch string) error {
	f.record("CloneShared")
	if f.CloneFn != nil {
		return f.CloneFn(src, dest, branch)
	}
	return nil
}

func (f *Fake) Tag(name, ref string) error {
	f.record("Tag")
	if ref == "" {
		ref, _ = f.CurrentBranchCommit()
	}
	f.Commits[name] = ref
	return nil
}
func (f *Fake) TagCommit(name string) (string, error) {
	f.record("TagCommit")
	sha, ok := f.Commits[name]
	if !ok {
		return "", fmt.Errorf("unknown tag %s", name)
	}
	return sha, nil
}
func (f *Fake) DeleteTag(name string) error {
	f.record("DeleteTag")
	delete(f.Commits, name)
	return nil
}
func (f *Fake) ResetHard(ref string) error { f.record("ResetHard"); return nil }
func (f *Fake) RevParse(ref string) (string, error) {
	f.record("RevParse")
	if sha, ok := f.Commits[ref]; ok {
		return sha, nil
	}
	return ref + "-sha", nil
}
func (f *Fake) IsAncestor(ancestor, descendant string) (bool, error) {
	f.record("IsAncestor")
	if f.IsAncestorFn != nil {
		return f.IsAncestorFn(ancestor, descendant)
	}
	return false, nil
}
func (f *Fake) MergeFFOnly(branch string) error {
	f.record("MergeFFOnly")
	if f.MergeFn != nil {
		return f.MergeFn(branch)
	}
	return nil
}
func (f *Fake) UpdateRef(ref, commit string) error { f.record("UpdateRef"); return nil }

func (f *Fake) Run(args ...string) (string, error) {
	f.record("Run")
	if f.RunFn != nil {
		return f.RunFn(args...)
	}
	return "", nil
}

// CurrentBranchCommit is a helper, not part of git.Runner, returning a
// synthetic commit sha for the current branch.
func (f *Fake) CurrentBranchCommit() (string, error) { return f.Branch + "-sha", nil }

var _ git.Runner = (*Fake)(nil)
