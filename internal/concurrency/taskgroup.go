package concurrency

import (
	"context"
	"sync"
)

// TaskGroup schedules fire-and-forget units with at most capacity running at once.
//
// Go blocks only until a permit is available and then returns; Wait joins every
// submitted unit that has not finished yet. A TaskGroup may be reused after Wait.
type TaskGroup struct {
	limiter *Limiter
	wg      sync.WaitGroup
}

// NewTaskGroup creates a task group admitting at most capacity concurrent units.
func NewTaskGroup(capacity int) *TaskGroup {
	return &TaskGroup{limiter: NewLimiter(capacity)}
}

// Go starts fn once a permit is available. If ctx ends while waiting, fn is not
// started and ctx's error is returned.
func (g *TaskGroup) Go(ctx context.Context, fn func()) error {
	if err := g.limiter.Acquire(ctx); err != nil {
		return err
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.limiter.Release()
		fn()
	}()
	return nil
}

// Wait blocks until every started unit has finished.
func (g *TaskGroup) Wait() {
	g.wg.Wait()
}

// InFlight returns the number of units currently running.
func (g *TaskGroup) InFlight() int {
	return g.limiter.InFlight()
}

// Capacity returns the maximum number of concurrent units.
func (g *TaskGroup) Capacity() int {
	return g.limiter.Capacity()
}
