// Package session implements the admission controller gating every query-serving entry point of the gateway: a
// fixed-capacity slot pool with a strict FIFO wait queue, and a manager that binds short-lived opaque tokens to
// validated addresses while they hold a slot.
package session

import (
	"context"
	"errors"
	"sync"
)

// ErrWaitTimeout is returned by Acquire when the caller's context expires before a slot frees up.
var ErrWaitTimeout = errors.New("timed out waiting for a free slot")

// Pool bounds the number of concurrently held slots to a fixed capacity. Waiters are served in strict arrival
// order: a released slot is handed directly to the queue head without ever being marked free in between, so at most
// capacity holders exist at any instant and there is no re-acquire race between waiters.
type Pool struct {
	mu       sync.Mutex
	capacity int
	active   int
	waiters  []chan struct{} // FIFO, head at index 0; a closed channel is a granted slot
}

// NewPool returns a pool admitting up to capacity concurrent holders. capacity must be positive.
func NewPool(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}

	return &Pool{capacity: capacity}
}

// Acquire grants a slot, blocking while the pool is full. It returns nil once the caller holds a slot, or
// ErrWaitTimeout/ctx.Err() if ctx ends first; in that case the caller holds nothing and the queue entry is gone, so
// an abandoned waiter can never leak a grant.
func (p *Pool) Acquire(ctx context.Context) error {
	p.mu.Lock()

	if p.active < p.capacity {
		p.active++
		p.mu.Unlock()

		return nil
	}

	grant := make(chan struct{})
	p.waiters = append(p.waiters, grant)
	p.mu.Unlock()

	select {
	case <-grant:
		return nil
	case <-ctx.Done():
	}

	p.mu.Lock()
	for i, w := range p.waiters {
		if w == grant {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()

			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrWaitTimeout
			}

			return ctx.Err()
		}
	}
	p.mu.Unlock()

	// the grant raced with cancellation: Release already handed us the slot, pass it on
	p.Release()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrWaitTimeout
	}

	return ctx.Err()
}

// Release returns a slot. If waiters are queued, the slot is handed directly to the head and the active count is
// untouched; otherwise the count drops. Releasing an empty pool is a no-op.
func (p *Pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.waiters) > 0 {
		grant := p.waiters[0]
		p.waiters = p.waiters[1:]
		close(grant)

		return
	}

	if p.active > 0 {
		p.active--
	}
}

// Active returns the number of currently held slots.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.active
}

// Waiting returns the number of queued acquirers.
func (p *Pool) Waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.waiters)
}

// Capacity returns the configured capacity.
func (p *Pool) Capacity() int {
	return p.capacity
}
