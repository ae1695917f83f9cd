// Package concurrency provides a resizable permit pool: a counting
// semaphore whose capacity can change while permits are outstanding.
//
// A plain buffered channel captured at construction time cannot be
// resized, and a *sync.WaitGroup-style counter shared by value drifts out
// of sync the moment it is copied. ResizablePool is a single live cell
// referenced by every acquirer; resizing it is visible to everyone
// holding the pointer.
package concurrency

import (
	"context"
	"sync"
)

// ResizablePool is a counting semaphore that can grow or shrink its
// capacity at runtime.
type ResizablePool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	inUse    int
}

// NewResizablePool creates a pool with the given initial capacity.
func NewResizablePool(capacity int) *ResizablePool {
	p := &ResizablePool{capacity: capacity}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Acquire blocks until a permit is available or ctx is done.
func (p *ResizablePool) Acquire(ctx context.Context) error {
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		close(done)
		p.cond.Broadcast()
	})
	defer stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	for p.inUse >= p.capacity {
		select {
		case <-done:
			return ctx.Err()
		default:
		}
		p.cond.Wait()
		select {
		case <-done:
			return ctx.Err()
		default:
		}
	}
	p.inUse++
	return nil
}

// TryAcquire acquires a permit without blocking. Reports whether it succeeded.
func (p *ResizablePool) TryAcquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inUse >= p.capacity {
		return false
	}
	p.inUse++
	return true
}

// Release returns a permit to the pool.
func (p *ResizablePool) Release() {
	p.mu.Lock()
	p.inUse--
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Resize changes the pool's capacity. Shrinking below the number of
// permits currently in use does not revoke them; it simply blocks new
// acquisitions until enough are released.
func (p *ResizablePool) Resize(capacity int) {
	p.mu.Lock()
	p.capacity = capacity
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Available returns the number of permits that could be acquired right now.
func (p *ResizablePool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.capacity <= p.inUse {
		return 0
	}
	return p.capacity - p.inUse
}

// Capacity returns the current configured capacity.
func (p *ResizablePool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

// InUse returns the number of permits currently held.
func (p *ResizablePool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}
