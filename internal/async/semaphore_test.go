package async

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSemaphorePanicsOnInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("expected panic for capacity %d", capacity)
				}
			}()
			NewSemaphore(capacity)
		}()
	}
}

func TestSemaphoreBoundsConcurrency(t *testing.T) {
	const capacity = 3
	const tasks = 10

	sem := NewSemaphore(capacity)
	var active, highWater int32
	var wg sync.WaitGroup

	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := sem.Run(context.Background(), func(ctx context.Context) error {
				now := atomic.AddInt32(&active, 1)
				for {
					prev := atomic.LoadInt32(&highWater)
					if now <= prev || atomic.CompareAndSwapInt32(&highWater, prev, now) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			if err != nil {
				t.Errorf("Run failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if hw := atomic.LoadInt32(&highWater); hw > capacity {
		t.Errorf("observed %d concurrent operations, capacity is %d", hw, capacity)
	}
	if sem.InUse() != 0 {
		t.Errorf("expected 0 in use after drain, got %d", sem.InUse())
	}
	if sem.Queued() != 0 {
		t.Errorf("expected empty queue after drain, got %d", sem.Queued())
	}
}

func TestSemaphoreReleasesOnError(t *testing.T) {
	sem := NewSemaphore(1)
	wantErr := context.DeadlineExceeded

	err := sem.Run(context.Background(), func(ctx context.Context) error {
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("expected error to propagate, got %v", err)
	}

	// The slot must be free again.
	done := make(chan struct{})
	go func() {
		_ = sem.Run(context.Background(), func(ctx context.Context) error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("slot was not released after a failing operation")
	}
}

func TestSemaphoreContextCancelWhileQueued(t *testing.T) {
	sem := NewSemaphore(1)
	holding := make(chan struct{})
	releaseHold := make(chan struct{})

	go func() {
		_ = sem.Run(context.Background(), func(ctx context.Context) error {
			close(holding)
			<-releaseHold
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- sem.Run(ctx, func(ctx context.Context) error { return nil })
	}()

	// Wait for the second caller to join the queue, then cancel it.
	for i := 0; i < 100 && sem.Queued() == 0; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("queued caller did not observe cancellation")
	}
	close(releaseHold)
}

func TestSemaphoreIntrospection(t *testing.T) {
	sem := NewSemaphore(2)
	if sem.Capacity() != 2 {
		t.Errorf("expected capacity 2, got %d", sem.Capacity())
	}

	block := make(chan struct{})
	started := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_ = sem.Run(context.Background(), func(ctx context.Context) error {
				started <- struct{}{}
				<-block
				return nil
			})
		}()
	}
	<-started
	<-started

	if sem.InUse() != 2 {
		t.Errorf("expected 2 in use, got %d", sem.InUse())
	}
	close(block)
}
