package workers

import (
	"context"
)

// StagePool bounds concurrency for one pipeline stage. Unlike Pool it has no
// job queue: the caller's goroutine blocks until a slot is free, runs the
// function inline, and releases the slot. Sizing each stage independently
// keeps a slow stage from starving the others.
type StagePool struct {
	name string
	sem  chan struct{}
}

// NewStagePool creates a stage pool with the given slot count
func NewStagePool(name string, slots int) *StagePool {
	if slots <= 0 {
		slots = 1
	}
	return &StagePool{
		name: name,
		sem:  make(chan struct{}, slots),
	}
}

// Run executes fn under a pool slot, honoring ctx while waiting
func (p *StagePool) Run(ctx context.Context, fn func() error) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()

	return fn()
}

// Name returns the pool's stage name
func (p *StagePool) Name() string {
	return p.name
}
