package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/shaycichocki/missionctl/pkg/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate call should be a no-op, got: %v", err)
	}
}

func TestMissionRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	m := &models.Mission{
		ID:                  "m-1",
		Objective:           "add rate limiting",
		VerificationCommand: "go test ./...",
		BudgetUSD:           25,
		WallTimeBudget:      2 * time.Hour,
		StartedAt:           time.Now(),
		UpdatedAt:           time.Now(),
		Status:              models.MissionRunning,
	}
	if err := db.CreateMission(m); err != nil {
		t.Fatalf("CreateMission: %v", err)
	}

	got, err := db.GetMission(m.ID)
	if err != nil {
		t.Fatalf("GetMission: %v", err)
	}
	if got.Objective != m.Objective || got.BudgetUSD != m.BudgetUSD || got.WallTimeBudget != m.WallTimeBudget {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}

	m.Status = models.MissionCompleted
	m.StopReason = models.StopObjectiveMet
	m.TotalCostUSD = 4.5
	m.UpdatedAt = time.Now()
	if err := db.UpdateMission(m); err != nil {
		t.Fatalf("UpdateMission: %v", err)
	}

	got, err = db.GetMission(m.ID)
	if err != nil {
		t.Fatalf("GetMission after update: %v", err)
	}
	if got.Status != models.MissionCompleted || got.StopReason != models.StopObjectiveMet || got.TotalCostUSD != 4.5 {
		t.Fatalf("update did not persist: %+v", got)
	}
}

func TestListRecentMissionsOrdersMostRecentFirst(t *testing.T) {
	db := setupTestDB(t)

	older := &models.Mission{ID: "m-old", Objective: "first", StartedAt: time.Now().Add(-time.Hour), UpdatedAt: time.Now(), Status: models.MissionCompleted}
	newer := &models.Mission{ID: "m-new", Objective: "second", StartedAt: time.Now(), UpdatedAt: time.Now(), Status: models.MissionRunning}
	if err := db.CreateMission(older); err != nil {
		t.Fatalf("CreateMission older: %v", err)
	}
	if err := db.CreateMission(newer); err != nil {
		t.Fatalf("CreateMission newer: %v", err)
	}

	got, err := db.ListRecentMissions(10)
	if err != nil {
		t.Fatalf("ListRecentMissions: %v", err)
	}
	if len(got) != 2 || got[0].ID != "m-new" || got[1].ID != "m-old" {
		t.Fatalf("expected newest mission first, got %+v", got)
	}
}

func TestWorkUnitRoundTripPreservesSliceFields(t *testing.T) {
	db := setupTestDB(t)
	seedMission(t, db, "m-1")

	u := &models.WorkUnit{
		ID:                 "u-1",
		MissionID:          "m-1",
		Description:        "add a handler",
		FilesHint:          []string{"internal/api/handler.go"},
		DependsOn:          []string{"u-0"},
		AcceptanceCriteria: []string{"go build ./..."},
		State:              models.UnitPending,
		QueuedAt:           time.Now(),
		CreatedAt:          time.Now(),
	}
	if err := db.CreateWorkUnit(u); err != nil {
		t.Fatalf("CreateWorkUnit: %v", err)
	}

	got, err := db.GetWorkUnit(u.ID)
	if err != nil {
		t.Fatalf("GetWorkUnit: %v", err)
	}
	if diff := cmp.Diff(u.FilesHint, got.FilesHint); diff != "" {
		t.Fatalf("files_hint did not round trip (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(u.DependsOn, got.DependsOn); diff != "" {
		t.Fatalf("depends_on did not round trip (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(u.AcceptanceCriteria, got.AcceptanceCriteria); diff != "" {
		t.Fatalf("acceptance_criteria did not round trip (-want +got):\n%s", diff)
	}

	got.State = models.UnitCompleted
	now := time.Now()
	got.CompletedAt = &now
	if err := db.UpdateWorkUnit(got); err != nil {
		t.Fatalf("UpdateWorkUnit: %v", err)
	}

	reread, err := db.GetWorkUnit(u.ID)
	if err != nil {
		t.Fatalf("GetWorkUnit after update: %v", err)
	}
	if reread.State != models.UnitCompleted || reread.CompletedAt == nil {
		t.Fatalf("update did not persist completion: %+v", reread)
	}
}

func TestListWorkUnitsByState(t *testing.T) {
	db := setupTestDB(t)
	seedMission(t, db, "m-1")

	pending := &models.WorkUnit{ID: "u-1", MissionID: "m-1", Description: "a", State: models.UnitPending, QueuedAt: time.Now(), CreatedAt: time.Now()}
	merged := &models.WorkUnit{ID: "u-2", MissionID: "m-1", Description: "b", State: models.UnitMerged, QueuedAt: time.Now(), CreatedAt: time.Now()}
	if err := db.CreateWorkUnit(pending); err != nil {
		t.Fatalf("CreateWorkUnit pending: %v", err)
	}
	if err := db.CreateWorkUnit(merged); err != nil {
		t.Fatalf("CreateWorkUnit merged: %v", err)
	}

	got, err := db.ListWorkUnitsByState("m-1", models.UnitPending)
	if err != nil {
		t.Fatalf("ListWorkUnitsByState: %v", err)
	}
	if len(got) != 1 || got[0].ID != "u-1" {
		t.Fatalf("expected only the pending unit, got %+v", got)
	}
}

func TestBacklogItemUpsertAndOrdering(t *testing.T) {
	db := setupTestDB(t)

	low := &models.BacklogItem{ID: "b-1", Description: "minor cleanup", Impact: 1, Effort: 1}
	high := &models.BacklogItem{ID: "b-2", Description: "critical fix", Impact: 10, Effort: 1}
	if err := db.UpsertBacklogItem(low); err != nil {
		t.Fatalf("UpsertBacklogItem low: %v", err)
	}
	if err := db.UpsertBacklogItem(high); err != nil {
		t.Fatalf("UpsertBacklogItem high: %v", err)
	}

	items, err := db.ListBacklogItems()
	if err != nil {
		t.Fatalf("ListBacklogItems: %v", err)
	}
	if len(items) != 2 || items[0].ID != "b-2" {
		t.Fatalf("expected higher-score item first, got %+v", items)
	}

	pinned := 0.5
	low.PinnedScore = &pinned
	if err := db.UpsertBacklogItem(low); err != nil {
		t.Fatalf("UpsertBacklogItem re-pin: %v", err)
	}
	got, err := db.GetBacklogItem("b-1")
	if err != nil {
		t.Fatalf("GetBacklogItem: %v", err)
	}
	if got.PinnedScore == nil || *got.PinnedScore != 0.5 {
		t.Fatalf("pinned score did not round trip: %+v", got)
	}
}

func TestReviewRecordUpsert(t *testing.T) {
	db := setupTestDB(t)
	seedMission(t, db, "m-1")
	u := &models.WorkUnit{ID: "u-1", MissionID: "m-1", Description: "a", State: models.UnitPending, QueuedAt: time.Now(), CreatedAt: time.Now()}
	if err := db.CreateWorkUnit(u); err != nil {
		t.Fatalf("CreateWorkUnit: %v", err)
	}

	r := &models.ReviewRecord{UnitID: "u-1", Alignment: 7, Approach: 8, Tests: 9, Parsed: true, CreatedAt: time.Now()}
	if err := db.SaveReviewRecord(r); err != nil {
		t.Fatalf("SaveReviewRecord: %v", err)
	}

	r.Alignment = 10
	if err := db.SaveReviewRecord(r); err != nil {
		t.Fatalf("SaveReviewRecord overwrite: %v", err)
	}

	got, err := db.GetReviewRecord("u-1")
	if err != nil {
		t.Fatalf("GetReviewRecord: %v", err)
	}
	if got.Alignment != 10 {
		t.Fatalf("expected overwritten alignment score, got %d", got.Alignment)
	}
}

func TestContextItemsAndReflections(t *testing.T) {
	db := setupTestDB(t)
	seedMission(t, db, "m-1")

	if err := db.AddContextItems("m-1", "", []string{"auth module uses JWTs", "db pool caps at 10 conns"}); err != nil {
		t.Fatalf("AddContextItems: %v", err)
	}
	items, err := db.ListContextItems("m-1")
	if err != nil {
		t.Fatalf("ListContextItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 context items, got %d", len(items))
	}

	if err := db.AddReflection("m-1", 3, "ambition score below threshold"); err != nil {
		t.Fatalf("AddReflection: %v", err)
	}
	reflections, err := db.ListReflections("m-1")
	if err != nil {
		t.Fatalf("ListReflections: %v", err)
	}
	if len(reflections) != 1 || reflections[0].EpochOrdinal != 3 {
		t.Fatalf("unexpected reflections: %+v", reflections)
	}
}

func seedMission(t *testing.T, db *DB, id string) {
	t.Helper()
	m := &models.Mission{ID: id, Objective: "test", StartedAt: time.Now(), UpdatedAt: time.Now(), Status: models.MissionRunning}
	if err := db.CreateMission(m); err != nil {
		t.Fatalf("seedMission: %v", err)
	}
}
