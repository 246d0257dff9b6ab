// Counting semaphore with FIFO queuing.
//
// Information Hiding:
// - Waiter queue representation hidden
// - Slot accounting hidden behind Run
//
// The try-on rendering provider has one true concurrency capacity no
// matter who calls it, so a single Semaphore instance is shared between
// the AI player's try-on executor and the player-facing job queue.
package async

import (
	"context"
	"fmt"
	"sync"
)

// Semaphore bounds the number of operations in flight. Waiters beyond
// capacity are dispatched in FIFO order of arrival; no other fairness
// guarantee is made.
type Semaphore struct {
	mu       sync.Mutex
	capacity int
	inUse    int
	waiters  []chan struct{}
}

// NewSemaphore creates a semaphore with the given capacity.
// Panics if capacity is not a positive integer: a zero-capacity
// semaphore would deadlock every caller, so misconfiguration must fail
// at construction, not at first use.
func NewSemaphore(capacity int) *Semaphore {
	if capacity <= 0 {
		panic(fmt.Sprintf("async: semaphore requires positive capacity, got %d", capacity))
	}
	return &Semaphore{capacity: capacity}
}

// Run acquires a slot, executes fn, and releases the slot regardless of
// fn's outcome. If no slot is available the call waits its turn or
// returns ctx.Err() when the context is cancelled first.
func (s *Semaphore) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return fn(ctx)
}

func (s *Semaphore) acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.inUse < s.capacity && len(s.waiters) == 0 {
		s.inUse++
		s.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	s.waiters = append(s.waiters, ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		s.abandon(ready)
		return ctx.Err()
	}
}

// abandon removes a waiter that gave up. If the slot was granted in the
// race between ctx.Done and removal, pass it on.
func (s *Semaphore) abandon(ready chan struct{}) {
	s.mu.Lock()
	for i, w := range s.waiters {
		if w == ready {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			s.mu.Unlock()
			return
		}
	}
	s.mu.Unlock()
	// Not found: the release path already granted us the slot.
	s.release()
}

func (s *Semaphore) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.waiters) > 0 {
		next := s.waiters[0]
		s.waiters = s.waiters[1:]
		close(next)
		return
	}
	if s.inUse > 0 {
		s.inUse--
	}
}

// InUse returns the number of slots currently held. Diagnostics only.
func (s *Semaphore) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse
}

// Queued returns the number of callers waiting for a slot. Diagnostics only.
func (s *Semaphore) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

// Capacity returns the fixed capacity set at construction.
func (s *Semaphore) Capacity() int {
	return s.capacity
}
