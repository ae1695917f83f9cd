package greenbranch

import (
	"fmt"
	"sync"
	"time"

	"github.com/shaycichocki/missionctl/internal/git"
)

// checkpointStatus tracks whether a tagged commit turned out to be safe.
type checkpointStatus int

const (
	checkpointUnknown checkpointStatus = iota
	checkpointGood
	checkpointBad
)

func (s checkpointStatus) String() string {
	switch s {
	case checkpointGood:
		return "good"
	case checkpointBad:
		return "bad"
	default:
		return "unknown"
	}
}

// checkpoint is a lightweight git tag recorded before attempting to
// merge a unit's branch, so a failed verification can be rolled back to
// exactly the commit mc/working was at beforehand.
type checkpoint struct {
	unitID    string
	commitSHA string
	tagName   string
	createdAt time.Time
	status    checkpointStatus
}

// checkpointManager tracks one checkpoint per unit for the working branch.
type checkpointManager struct {
	missionID string
	repo      git.Runner

	mu    sync.RWMutex
	byUnit map[string]*checkpoint
}

func newCheckpointManager(missionID string, repo git.Runner) *checkpointManager {
	return &checkpointManager{missionID: missionID, repo: repo, byUnit: make(map[string]*checkpoint)}
}

// create tags the current HEAD of mc/working before a merge attempt for unitID.
func (cm *checkpointManager) create(unitID string) (*checkpoint, error) {
	sha, err := cm.repo.RevParse("HEAD")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: resolve HEAD: %w", err)
	}

	tagName := fmt.Sprintf("mc-checkpoint-%s-%s", cm.missionID, unitID)
	if err := cm.repo.Tag(tagName, sha); err != nil {
		return nil, fmt.Errorf("checkpoint: create tag %s: %w", tagName, err)
	}

	cp := &checkpoint{unitID: unitID, commitSHA: sha, tagName: tagName, createdAt: time.Now(), status: checkpointUnknown}

	cm.mu.Lock()
	cm.byUnit[unitID] = cp
	cm.mu.Unlock()

	return cp, nil
}

func (cm *checkpointManager) markGood(unitID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cp, ok := cm.byUnit[unitID]; ok {
		cp.status = checkpointGood
	}
}

func (cm *checkpointManager) markBad(unitID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cp, ok := cm.byUnit[unitID]; ok {
		cp.status = checkpointBad
	}
}

func (cm *checkpointManager) lastGood() *checkpoint {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	var last *checkpoint
	for _, cp := range cm.byUnit {
		if cp.status == checkpointGood && (last == nil || cp.createdAt.After(last.createdAt)) {
			copy := *cp
			last = &copy
		}
	}
	return last
}

// cleanup deletes every checkpoint tag this manager created.
func (cm *checkpointManager) cleanup() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var firstErr error
	for unitID, cp := range cm.byUnit {
		if err := cm.repo.DeleteTag(cp.tagName); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("delete checkpoint tag for unit %s: %w", unitID, err)
		}
	}
	return firstErr
}
