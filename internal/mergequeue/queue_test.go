package mergequeue

import (
	"context"
	"testing"
	"time"

	"github.com/shaycichocki/missionctl/pkg/models"
)

func TestSubmitAndDrainPreservesOrder(t *testing.T) {
	q := New(10)
	for _, id := range []string{"a", "b", "c"} {
		if err := q.Submit(models.MergeSubmission{UnitID: id}); err != nil {
			t.Fatalf("submit %s: %v", id, err)
		}
	}

	got, err := q.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].UnitID != want {
			t.Errorf("index %d: expected %s, got %s", i, want, got[i].UnitID)
		}
	}
}

func TestSubmitReturnsErrFullAtCapacity(t *testing.T) {
	q := New(1)
	if err := q.Submit(models.MergeSubmission{UnitID: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Submit(models.MergeSubmission{UnitID: "b"}); err != ErrFull {
		t.Fatalf("expected ErrFull, got %v", err)
	}
}

func TestDrainReturnsPartialBatchWithoutWaitingForMore(t *testing.T) {
	q := New(10)
	_ = q.Submit(models.MergeSubmission{UnitID: "only"})

	start := time.Now()
	got, err := q.Drain(context.Background(), 5)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("expected drain to return promptly once a partial batch is available, took %s", elapsed)
	}
}

func TestDrainOnEmptyQueueTimesOutWithoutError(t *testing.T) {
	q := New(10)
	q.drainBase = 20 * time.Millisecond
	q.perItem = 0

	got, err := q.Drain(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no items, got %d", len(got))
	}
}
