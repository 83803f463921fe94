package memory

import (
	"context"
	"sync"
)

// Snapshotter is implemented by every in-memory component enrolled in an
// atomic unit of work.
type Snapshotter interface {
	Snapshot() any
	Restore(state any)
}

// AtomicRunner implements domain.Atomic over a set of in-memory components:
// it snapshots each part, runs the unit of work, and restores every part
// when the unit fails. The same discipline a SQL-backed deployment gets from
// BEGIN/ROLLBACK, without a database.
type AtomicRunner struct {
	mu    sync.Mutex
	parts []Snapshotter
}

// NewAtomic creates a runner over the given components.
func NewAtomic(parts ...Snapshotter) *AtomicRunner {
	return &AtomicRunner{parts: parts}
}

// Execute runs fn all-or-nothing. Units of work are serialized: one runs to
// completion before the next is admitted.
func (a *AtomicRunner) Execute(_ context.Context, fn func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	snaps := make([]any, len(a.parts))
	for i, p := range a.parts {
		snaps[i] = p.Snapshot()
	}
	if err := fn(); err != nil {
		for i, p := range a.parts {
			p.Restore(snaps[i])
		}
		return err
	}
	return nil
}
