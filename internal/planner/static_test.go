package planner

import (
	"context"
	"testing"

	"github.com/shaycichocki/missionctl/pkg/models"
)

func TestStaticPlannerServesBatchesInOrder(t *testing.T) {
	units := []models.WorkUnit{
		{ID: "a", AcceptanceCriteria: []string{"go test ./..."}},
		{ID: "b"},
		{ID: "c", AcceptanceCriteria: []string{"go vet ./..."}},
	}
	p := NewStaticPlanner(units)

	plan, err := p.Plan(context.Background(), models.Mission{}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Units) != 2 || plan.Units[0].ID != "a" || plan.Units[1].ID != "b" {
		t.Fatalf("unexpected first batch: %+v", plan.Units)
	}
	if p.Remaining() != 1 {
		t.Fatalf("expected 1 unit remaining, got %d", p.Remaining())
	}

	plan2, err := p.Plan(context.Background(), models.Mission{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan2.Units) != 1 || plan2.Units[0].ID != "c" {
		t.Fatalf("unexpected second batch: %+v", plan2.Units)
	}
}

func TestStaticPlannerReplanRecordsFeedbackAndContinues(t *testing.T) {
	p := NewStaticPlanner([]models.WorkUnit{{ID: "a"}})
	plan, err := p.Replan(context.Background(), models.Mission{}, "ambition too low", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Units) != 1 {
		t.Fatalf("expected replan to still serve the backlog, got %+v", plan.Units)
	}
	if len(p.replans) != 1 || p.replans[0] != "ambition too low" {
		t.Errorf("expected feedback recorded, got %v", p.replans)
	}
}

func TestAmbitionScoreReflectsAcceptanceCriteriaCoverage(t *testing.T) {
	units := []models.WorkUnit{
		{ID: "a", AcceptanceCriteria: []string{"x"}},
		{ID: "b"},
	}
	if got := ambitionScore(units); got != 0.5 {
		t.Errorf("expected 0.5, got %f", got)
	}
}
