// Package ledger tracks which unique authorization IDs have been consumed.
// Consumption is one-way: an ID marked consumed never becomes usable again,
// and a read cannot distinguish an ID spent by execution from one revoked
// administratively.
package ledger

import (
	"context"
	"sync"

	apperrors "github.com/quorumgate/quorumgate/pkg/errors"
	"github.com/quorumgate/quorumgate/pkg/types"
)

// Ledger is the replay-protection registry consulted and updated by the
// authorizer. Implementations must make Consume atomic: under concurrent
// calls with the same ID, exactly one succeeds.
type Ledger interface {
	// IsConsumed reports whether the ID has been consumed. Pure read.
	IsConsumed(ctx context.Context, id types.UniqueID) (bool, error)
	// Consume marks the ID consumed, failing with ErrIDAlreadyConsumed if it
	// already is. Irreversible.
	Consume(ctx context.Context, id types.UniqueID) error
	// Revoke marks the ID consumed pre-emptively. Caller authorization is the
	// authorizer's concern, not the ledger's.
	Revoke(ctx context.Context, id types.UniqueID) error
}

// MemoryLedger is a mutex-guarded in-process Ledger. Used in tests and in
// single-node deployments that accept losing the blacklist on restart.
type MemoryLedger struct {
	mu       sync.Mutex
	consumed map[types.UniqueID]struct{}
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{consumed: make(map[types.UniqueID]struct{})}
}

// IsConsumed implements Ledger.
func (l *MemoryLedger) IsConsumed(_ context.Context, id types.UniqueID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.consumed[id]
	return ok, nil
}

// Consume implements Ledger.
func (l *MemoryLedger) Consume(_ context.Context, id types.UniqueID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.consumed[id]; ok {
		return apperrors.WithDetail(apperrors.ErrIDAlreadyConsumed, id.Hex())
	}
	l.consumed[id] = struct{}{}
	return nil
}

// Revoke implements Ledger. Revoking an already-consumed ID is a no-op rather
// than an error: the caller's goal, that the ID never executes, already holds.
func (l *MemoryLedger) Revoke(_ context.Context, id types.UniqueID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consumed[id] = struct{}{}
	return nil
}
