package graph

import (
	"sort"
	"testing"

	"github.com/shaycichocki/missionctl/pkg/models"
)

func unit(id string, deps ...string) *models.WorkUnit {
	return &models.WorkUnit{ID: id, DependsOn: deps, State: models.UnitPending}
}

func TestBuildSimple(t *testing.T) {
	g := New()
	if err := g.Build([]*models.WorkUnit{unit("a"), unit("b"), unit("c")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Size() != 3 {
		t.Errorf("expected size 3, got %d", g.Size())
	}
}

func TestBuildUnknownDependency(t *testing.T) {
	g := New()
	if err := g.Build([]*models.WorkUnit{unit("a", "missing")}); err == nil {
		t.Fatal("expected error for unknown dependency")
	}
}

func TestBuildCycle(t *testing.T) {
	g := New()
	err := g.Build([]*models.WorkUnit{unit("a", "b"), unit("b", "a")})
	if err != ErrCycleDetected {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

func TestGetReadyRespectsDependencies(t *testing.T) {
	g := New()
	if err := g.Build([]*models.WorkUnit{unit("a"), unit("b", "a")}); err != nil {
		t.Fatalf("build: %v", err)
	}

	ready := g.GetReady()
	if len(ready) != 1 || ready[0] != "a" {
		t.Fatalf("expected only 'a' ready, got %v", ready)
	}

	g.MarkComplete("a")
	ready = g.GetReady()
	if len(ready) != 1 || ready[0] != "b" {
		t.Fatalf("expected only 'b' ready after completing 'a', got %v", ready)
	}
}

func TestTopologicalLayers(t *testing.T) {
	g := New()
	if err := g.Build([]*models.WorkUnit{
		unit("a"), unit("b"), unit("c", "a", "b"), unit("d", "c"),
	}); err != nil {
		t.Fatalf("build: %v", err)
	}

	layers, err := g.TopologicalLayers()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(layers) != 3 {
		t.Fatalf("expected 3 layers, got %d: %v", len(layers), layers)
	}
	sort.Strings(layers[0])
	if layers[0][0] != "a" || layers[0][1] != "b" {
		t.Errorf("expected layer 0 = [a b], got %v", layers[0])
	}
	if layers[1][0] != "c" {
		t.Errorf("expected layer 1 = [c], got %v", layers[1])
	}
	if layers[2][0] != "d" {
		t.Errorf("expected layer 2 = [d], got %v", layers[2])
	}
}

func TestTopologicalLayersCycle(t *testing.T) {
	g := &DependencyGraph{
		nodes:     map[string]*models.WorkUnit{"a": unit("a", "b"), "b": unit("b", "a")},
		edges:     map[string][]string{"a": {"b"}, "b": {"a"}},
		completed: map[string]bool{},
		debugLog:  func(string, ...interface{}) {},
	}
	if _, err := g.TopologicalLayers(); err != ErrCycleDetected {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}
