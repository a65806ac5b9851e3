package digest

import (
	"context"
	"sync"
)

// Gate is a counting admission gate: at most capacity work units run at
// once, further entrants queue in arrival order and are admitted strictly
// as running units leave. No priority.
type Gate struct {
	mu       sync.Mutex
	capacity int
	running  int
	waiters  []chan struct{}
}

// NewGate creates a gate admitting capacity concurrent units (minimum 1).
func NewGate(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{capacity: capacity}
}

// Enter blocks until a slot is free or ctx is cancelled.
func (g *Gate) Enter(ctx context.Context) error {
	g.mu.Lock()
	if g.running < g.capacity {
		g.running++
		g.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	g.waiters = append(g.waiters, ch)
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		for i, w := range g.waiters {
			if w == ch {
				g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
				g.mu.Unlock()
				return ctx.Err()
			}
		}
		g.mu.Unlock()
		// Admission raced the cancellation; give the slot back.
		g.Leave()
		return ctx.Err()
	}
}

// Leave releases a slot, admitting the oldest waiter if any.
func (g *Gate) Leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.waiters) > 0 {
		ch := g.waiters[0]
		g.waiters = g.waiters[1:]
		close(ch) // slot transfers to the waiter
		return
	}
	g.running--
}

// Running returns the number of admitted units.
func (g *Gate) Running() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
