// Package graph provides a dependency graph over work units for
// epoch-level scheduling: cycle detection, topological layering, and
// ready-set computation.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shaycichocki/missionctl/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the unit graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph is a directed acyclic graph of work unit dependencies.
// Units are nodes, edges represent "blocked by" relationships.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps unit ID to the unit itself.
	nodes map[string]*models.WorkUnit
	// edges maps unit ID to IDs of units it depends on.
	edges map[string][]string
	// completed tracks which units have been marked complete.
	completed map[string]bool
	debugLog  func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:     make(map[string]*models.WorkUnit),
		edges:     make(map[string][]string),
		completed: make(map[string]bool),
		debugLog:  func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the dependency graph from a slice of work units.
// Returns an error if a cycle is detected or a dependency references an
// unknown unit.
func (g *DependencyGraph) Build(units []*models.WorkUnit) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[string]*models.WorkUnit, len(units))
	g.edges = make(map[string][]string, len(units))

	for _, u := range units {
		g.nodes[u.ID] = u
		g.edges[u.ID] = nil
	}

	for _, u := range units {
		for _, depID := range u.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("unit %s depends on unknown unit %s", u.ID, depID)
			}
			g.edges[u.ID] = append(g.edges[u.ID], depID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}

	return nil
}

// HasCycle reports whether the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

func (g *DependencyGraph) hasCycleLocked() bool {
	const white, gray, black = 0, 1, 2
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = gray
		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case gray:
				return true
			case white:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = black
		return false
	}

	for id := range g.nodes {
		if colors[id] == white {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// TopologicalLayers returns units grouped into dispatch layers: layer 0
// has no dependencies, layer N depends only on units in layers < N.
// Units within a layer may be dispatched concurrently with respect to
// the dependency graph alone (file-overlap exclusion is a separate
// concern, applied by the scheduler on top of this).
func (g *DependencyGraph) TopologicalLayers() ([][]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	depth := make(map[string]int, len(g.nodes))
	var compute func(id string) int
	compute = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		max := -1
		for _, depID := range g.edges[id] {
			if d := compute(depID); d > max {
				max = d
			}
		}
		depth[id] = max + 1
		return depth[id]
	}

	maxLayer := 0
	for id := range g.nodes {
		if d := compute(id); d > maxLayer {
			maxLayer = d
		}
	}

	layers := make([][]string, maxLayer+1)
	for id, d := range depth {
		layers[d] = append(layers[d], id)
	}
	return layers, nil
}

// GetReady returns unit IDs with no unmet dependencies that are not yet completed.
func (g *DependencyGraph) GetReady() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for id, u := range g.nodes {
		if g.completed[id] {
			continue
		}
		if u.State.Terminal() && u.State != models.UnitStale {
			continue
		}

		allDepsComplete := true
		for _, depID := range g.edges[id] {
			if g.completed[depID] {
				continue
			}
			if dep, exists := g.nodes[depID]; exists && dep.State == models.UnitCompleted {
				continue
			}
			allDepsComplete = false
			break
		}
		if allDepsComplete {
			ready = append(ready, id)
		}
	}
	return ready
}

// MarkComplete marks a unit as completed in the graph, affecting future GetReady calls.
func (g *DependencyGraph) MarkComplete(unitID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed[unitID] = true
}

// GetUnit returns the unit for a given ID, or nil if not found.
func (g *DependencyGraph) GetUnit(unitID string) *models.WorkUnit {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[unitID]
}

// Size returns the number of units in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// GetDependencies returns the IDs of units the given unit depends on.
func (g *DependencyGraph) GetDependencies(unitID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[unitID]
}

// GetDependents returns the IDs of units that depend on the given unit.
func (g *DependencyGraph) GetDependents(unitID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for id, deps := range g.edges {
		for _, depID := range deps {
			if depID == unitID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

// GetCompletedIDs returns the IDs of all units marked complete in the graph.
func (g *DependencyGraph) GetCompletedIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ids []string
	for id, done := range g.completed {
		if done {
			ids = append(ids, id)
		}
	}
	return ids
}
