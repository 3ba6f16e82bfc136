package concurrency

import "context"

// ExclusiveSection serializes access to one shared external resource.
// Unlike sync.Mutex, waiting honors context cancellation.
type ExclusiveSection struct {
	limiter *Limiter
}

// NewExclusiveSection creates an unlocked section.
func NewExclusiveSection() *ExclusiveSection {
	return &ExclusiveSection{limiter: NewLimiter(1)}
}

// Do runs fn inside the section. The section is released exactly once, on
// every exit path including a panic in fn.
func (s *ExclusiveSection) Do(ctx context.Context, fn func() error) error {
	return s.limiter.Do(ctx, func(context.Context) error {
		return fn()
	})
}

// Held reports whether some caller is currently inside the section.
func (s *ExclusiveSection) Held() bool {
	return s.limiter.InFlight() > 0
}
