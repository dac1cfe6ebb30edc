// internal/txmgr/noncegate.go
package txmgr

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// NonceGate serializes the nonce-sensitive sign+broadcast critical
// section. One permit for the whole manager: unrelated senders queue
// behind each other, trading parallelism for a simple correctness
// argument. A holder that never releases deadlocks the pipeline; that is
// a programming error, not a recoverable condition.
type NonceGate struct {
	sem *semaphore.Weighted
}

func NewNonceGate() *NonceGate {
	return &NonceGate{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the permit is available or ctx is done.
func (g *NonceGate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release returns the permit. Must be called exactly once per successful
// Acquire, on every exit path of the critical section.
func (g *NonceGate) Release() {
	g.sem.Release(1)
}

// TryAcquire grabs the permit without blocking. Used to observe gate
// liveness in tests.
func (g *NonceGate) TryAcquire() bool {
	return g.sem.TryAcquire(1)
}
