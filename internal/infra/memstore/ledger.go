// Package memstore provides in-memory implementations of the persistence
// contracts for development and tests, used when no database is configured.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"consentledger/internal/domain"
)

// Ledger is an in-memory LedgerStore. Appends are serialized per store;
// sequence claims follow the same conflict semantics as the database store.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string][]domain.LedgerEntry
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string][]domain.LedgerEntry)}
}

func (l *Ledger) Tail(ctx context.Context, ledgerID string) (domain.LedgerTail, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	chain := l.entries[ledgerID]
	if len(chain) == 0 {
		return domain.LedgerTail{LedgerID: ledgerID}, nil
	}
	last := chain[len(chain)-1]
	return domain.LedgerTail{
		LedgerID:  ledgerID,
		Sequence:  last.Sequence,
		ChainHash: last.ChainHash,
		Exists:    true,
	}, nil
}

func (l *Ledger) Append(ctx context.Context, entry domain.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	chain := l.entries[entry.LedgerID]
	next := int64(len(chain))
	if entry.Sequence < next {
		return fmt.Errorf("%w: sequence %d already written in %s", domain.ErrAppendOnlyViolation, entry.Sequence, entry.LedgerID)
	}
	if entry.Sequence != next {
		return fmt.Errorf("%w: want %d, got %d", domain.ErrSequenceConflict, next, entry.Sequence)
	}
	l.entries[entry.LedgerID] = append(chain, entry)
	return nil
}

func (l *Ledger) ReadRange(ctx context.Context, ledgerID string, from, to int64) ([]domain.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if from < 0 || to < from {
		return nil, fmt.Errorf("%w: invalid range [%d,%d]", domain.ErrNotFound, from, to)
	}
	chain := l.entries[ledgerID]
	if to >= int64(len(chain)) {
		return nil, fmt.Errorf("%w: %s has no sequence %d", domain.ErrChainBreak, ledgerID, to)
	}
	out := make([]domain.LedgerEntry, to-from+1)
	copy(out, chain[from:to+1])
	return out, nil
}

func (l *Ledger) ReadAll(ctx context.Context, ledgerID string) ([]domain.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	chain := l.entries[ledgerID]
	out := make([]domain.LedgerEntry, len(chain))
	copy(out, chain)
	return out, nil
}

func (l *Ledger) Tails(ctx context.Context) ([]domain.LedgerTail, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.LedgerTail, 0, len(l.entries))
	for id, chain := range l.entries {
		if len(chain) == 0 {
			continue
		}
		last := chain[len(chain)-1]
		out = append(out, domain.LedgerTail{
			LedgerID:  id,
			Sequence:  last.Sequence,
			ChainHash: last.ChainHash,
			Exists:    true,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LedgerID < out[j].LedgerID })
	return out, nil
}
