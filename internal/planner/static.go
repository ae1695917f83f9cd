package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/shaycichocki/missionctl/pkg/models"
)

// backlogFile is the on-disk shape StaticPlanner reads: a flat list of
// candidate units, already expressed in the domain's WorkUnit shape.
type backlogFile struct {
	Units []models.WorkUnit `json:"units"`
}

// StaticPlanner reads a fixed JSON backlog once and serves batches from
// it, ignoring replan feedback beyond recording it. It exists to give the
// controller something real to drive against without depending on an
// LLM-backed strategist.
type StaticPlanner struct {
	mu      sync.Mutex
	remaining []models.WorkUnit
	replans   []string
}

// LoadStaticPlanner reads path as a backlogFile.
func LoadStaticPlanner(path string) (*StaticPlanner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backlog file %s: %w", path, err)
	}
	var bf backlogFile
	if err := json.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("parse backlog file %s: %w", path, err)
	}
	return &StaticPlanner{remaining: bf.Units}, nil
}

// NewStaticPlanner builds a planner directly from an in-memory backlog,
// useful for tests that would otherwise need a fixture file.
func NewStaticPlanner(units []models.WorkUnit) *StaticPlanner {
	return &StaticPlanner{remaining: units}
}

// Plan returns up to maxUnits units from the front of the backlog.
func (p *StaticPlanner) Plan(ctx context.Context, mission models.Mission, maxUnits int) (Plan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := maxUnits
	if n > len(p.remaining) || n <= 0 {
		n = len(p.remaining)
	}
	batch := append([]models.WorkUnit(nil), p.remaining[:n]...)
	p.remaining = p.remaining[n:]

	return Plan{Units: batch, AmbitionScore: ambitionScore(batch)}, nil
}

// Replan records the feedback and serves the next batch unchanged; a
// static backlog has no way to produce a more ambitious plan on demand.
func (p *StaticPlanner) Replan(ctx context.Context, mission models.Mission, feedback string, maxUnits int) (Plan, error) {
	p.mu.Lock()
	p.replans = append(p.replans, feedback)
	p.mu.Unlock()
	return p.Plan(ctx, mission, maxUnits)
}

// Remaining reports how many units are left unserved, for stall detection in tests.
func (p *StaticPlanner) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.remaining)
}

// ambitionScore is a coarse proxy: the fraction of units in the batch
// that carry acceptance criteria, standing in for a real strategist's
// self-assessment.
func ambitionScore(units []models.WorkUnit) float64 {
	if len(units) == 0 {
		return 0
	}
	withCriteria := 0
	for _, u := range units {
		if len(u.AcceptanceCriteria) > 0 {
			withCriteria++
		}
	}
	return float64(withCriteria) / float64(len(units))
}

var _ Planner = (*StaticPlanner)(nil)
