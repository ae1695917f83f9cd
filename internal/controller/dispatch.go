package controller

import (
	"sort"

	"github.com/shaycichocki/missionctl/internal/graph"
	"github.com/shaycichocki/missionctl/pkg/models"
)

// buildDispatchWaves computes topological layers over units, then
// splits any layer further so that no two units dispatched together
// share a files_hint entry: the later unit in submission order within
// a layer defers to the next wave, per spec.md §4.7 step 3(iii).
func buildDispatchWaves(units []models.WorkUnit) ([][]models.WorkUnit, error) {
	byID := make(map[string]models.WorkUnit, len(units))
	pos := make(map[string]int, len(units))
	g := graph.New()
	ptrs := make([]*models.WorkUnit, len(units))
	for i := range units {
		u := units[i]
		byID[u.ID] = u
		pos[u.ID] = i
		ptrs[i] = &units[i]
	}
	if err := g.Build(ptrs); err != nil {
		return nil, err
	}

	layers, err := g.TopologicalLayers()
	if err != nil {
		return nil, err
	}

	var waves [][]models.WorkUnit
	for _, layerIDs := range layers {
		sort.Slice(layerIDs, func(a, b int) bool { return pos[layerIDs[a]] < pos[layerIDs[b]] })
		waves = append(waves, splitByFileOverlap(layerIDs, byID)...)
	}
	return waves, nil
}

// splitByFileOverlap partitions one topological layer's unit IDs into
// one or more waves such that no wave contains two units whose
// files_hint intersect. Units are considered in layer order (their
// submission order); the later one in a conflicting pair is pushed to
// the next wave.
func splitByFileOverlap(layerIDs []string, byID map[string]models.WorkUnit) [][]models.WorkUnit {
	var waves [][]models.WorkUnit
	remaining := append([]string(nil), layerIDs...)

	for len(remaining) > 0 {
		var wave []models.WorkUnit
		var deferred []string
		claimed := map[string]bool{}

		for _, id := range remaining {
			u := byID[id]
			if overlapsClaimed(u.FilesHint, claimed) {
				deferred = append(deferred, id)
				continue
			}
			for _, f := range u.FilesHint {
				claimed[f] = true
			}
			wave = append(wave, u)
		}

		waves = append(waves, wave)
		remaining = deferred
	}
	return waves
}

func overlapsClaimed(files []string, claimed map[string]bool) bool {
	for _, f := range files {
		if claimed[f] {
			return true
		}
	}
	return false
}
