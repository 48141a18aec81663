package shared

import (
	"context"
	"sync"
)

// Gate is a cooperative pause token passed down through long-running
// operations. Callers block in Wait at their suspension points while the
// gate is paused, and observe context cancellation while blocked.
type Gate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

// NewGate returns an unpaused Gate.
func NewGate() *Gate {
	return &Gate{}
}

// Pause closes the gate. Subsequent Wait calls block until Resume.
func (g *Gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return
	}
	g.paused = true
	g.resume = make(chan struct{})
}

// Resume reopens the gate and releases all blocked waiters.
func (g *Gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	g.paused = false
	close(g.resume)
	g.resume = nil
}

// Paused reports whether the gate is currently closed.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait blocks while the gate is paused. A nil Gate never blocks. Returns
// ctx.Err() if the context is cancelled before or during the wait.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil {
		return ctx.Err()
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.mu.Lock()
		if !g.paused {
			g.mu.Unlock()
			return nil
		}
		resume := g.resume
		g.mu.Unlock()

		select {
		case <-resume:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
