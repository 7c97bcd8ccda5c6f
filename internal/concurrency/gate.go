// Package concurrency implements the two-level gating shared by both
// engines: a counting semaphore bounding total in-flight jobs per engine,
// and a per-key exclusion set (used by the sync engine to forbid two
// concurrent operations on the same pair). The semaphore is FIFO-ordered by
// golang.org/x/sync/semaphore's own queueing; the exclusion set is a plain
// mutex-guarded map, the same shape used elsewhere in this codebase for
// small membership sets.
package concurrency

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/countygov/terrasync/internal/apperrors"
)

// Gate bounds concurrent work for one engine (sync or export) and tracks
// which exclusion keys are currently held.
type Gate struct {
	sem *semaphore.Weighted

	mu      sync.Mutex
	held    map[string]struct{}
}

// New constructs a Gate with the given permit capacity.
func New(maxConcurrent int) *Gate {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Gate{
		sem:  semaphore.NewWeighted(int64(maxConcurrent)),
		held: make(map[string]struct{}),
	}
}

// Acquire blocks, FIFO-ordered, until a permit is available or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release returns the permit. Safe to call from a defer on every exit path,
// including after a panic recovery.
func (g *Gate) Release() {
	g.sem.Release(1)
}

// TryExclusive claims key for exclusive use, failing with Conflict if it is
// already held. Pair it with Unlock on every exit path.
func (g *Gate) TryExclusive(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[key]; busy {
		return apperrors.NewConflict("key %q already has an operation running", key)
	}
	g.held[key] = struct{}{}
	return nil
}

// Unlock releases an exclusion key previously claimed with TryExclusive.
func (g *Gate) Unlock(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, key)
}

// IsHeld reports whether key currently has an exclusive claim.
func (g *Gate) IsHeld(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.held[key]
	return busy
}
