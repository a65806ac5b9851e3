package digest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGateLimitsConcurrency(t *testing.T) {
	g := NewGate(2)
	var current, peak atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Enter(context.Background()); err != nil {
				t.Error(err)
				return
			}
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
			g.Leave()
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
	if got := g.Running(); got != 0 {
		t.Errorf("Running() = %d after all left, want 0", got)
	}
}

func TestGateAdmitsWaitersInArrivalOrder(t *testing.T) {
	g := NewGate(1)
	if err := g.Enter(context.Background()); err != nil {
		t.Fatal(err)
	}

	order := make(chan int, 2)
	ready := make(chan struct{}, 2)
	for _, id := range []int{1, 2} {
		id := id
		go func() {
			ready <- struct{}{}
			if err := g.Enter(context.Background()); err != nil {
				t.Error(err)
				return
			}
			order <- id
			g.Leave()
		}()
		<-ready
		// Give the goroutine time to join the wait queue before the next
		// one starts, so arrival order is deterministic.
		time.Sleep(20 * time.Millisecond)
	}

	g.Leave()
	if first := <-order; first != 1 {
		t.Errorf("first admitted waiter = %d, want 1", first)
	}
	if second := <-order; second != 2 {
		t.Errorf("second admitted waiter = %d, want 2", second)
	}
}

func TestGateEnterHonorsCancellation(t *testing.T) {
	g := NewGate(1)
	if err := g.Enter(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := g.Enter(ctx); err != context.DeadlineExceeded {
		t.Errorf("Enter() on full gate = %v, want context.DeadlineExceeded", err)
	}

	// The slot must still be released cleanly afterwards.
	g.Leave()
	if err := g.Enter(context.Background()); err != nil {
		t.Errorf("Enter() after cancelled waiter = %v", err)
	}
}

func TestGateMinimumCapacity(t *testing.T) {
	g := NewGate(0)
	if err := g.Enter(context.Background()); err != nil {
		t.Fatalf("zero-capacity gate should clamp to 1: %v", err)
	}
	if got := g.Running(); got != 1 {
		t.Errorf("Running() = %d, want 1", got)
	}
}
