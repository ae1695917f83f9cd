// Package mergequeue is a FIFO of merge submissions the controller
// enqueues and later drains in batches, handing each drained submission
// to the GreenBranchManager.
//
// Unlike the teacher's merge queue, which owns a single internal worker
// goroutine that processes each submission as it arrives, this queue is
// purely a buffer: Submit never blocks on merge processing, and Drain is
// an explicit pull the controller calls on its own schedule with a
// timeout that scales with how many items it asked for.
package mergequeue

import (
	"context"
	"errors"
	"time"

	"github.com/shaycichocki/missionctl/pkg/models"
)

// ErrFull is returned by Submit when the queue has no room.
var ErrFull = errors.New("merge queue full")

// Queue is a bounded, submission-ordered FIFO of merge submissions.
type Queue struct {
	items chan models.MergeSubmission

	// drainBase and perItem compose the deadline Drain uses:
	// drainBase + perItem*maxItems, bounded by the caller's ctx.
	drainBase time.Duration
	perItem   time.Duration
}

// New creates a queue with the given buffer capacity.
func New(capacity int) *Queue {
	return &Queue{
		items:     make(chan models.MergeSubmission, capacity),
		drainBase: 2 * time.Second,
		perItem:   500 * time.Millisecond,
	}
}

// Submit enqueues s without blocking. Returns ErrFull if the queue is at capacity.
func (q *Queue) Submit(s models.MergeSubmission) error {
	select {
	case q.items <- s:
		return nil
	default:
		return ErrFull
	}
}

// Len returns the number of submissions currently buffered.
func (q *Queue) Len() int {
	return len(q.items)
}

// Drain pulls up to maxItems submissions in FIFO order, waiting for at
// least one item to become available (or ctx/deadline to expire) but
// never blocking past the first available item to fill out the batch —
// it returns whatever arrived within the deadline.
func (q *Queue) Drain(ctx context.Context, maxItems int) ([]models.MergeSubmission, error) {
	if maxItems <= 0 {
		return nil, nil
	}

	deadline := q.drainBase + q.perItem*time.Duration(maxItems)
	drainCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var out []models.MergeSubmission

	select {
	case item := <-q.items:
		out = append(out, item)
	case <-drainCtx.Done():
		return nil, nil
	}

	for len(out) < maxItems {
		select {
		case item := <-q.items:
			out = append(out, item)
		case <-drainCtx.Done():
			return out, nil
		default:
			return out, nil
		}
	}
	return out, nil
}
