package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"consentledger/internal/domain"
)

var testClock Clock = func() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

// stubLedger mimics the persistence contract in memory. conflicts injects
// that many sequence conflicts before appends start succeeding.
type stubLedger struct {
	mu        sync.Mutex
	entries   map[string][]domain.LedgerEntry
	conflicts int
	appendErr error
}

func newStubLedger() *stubLedger {
	return &stubLedger{entries: make(map[string][]domain.LedgerEntry)}
}

func (s *stubLedger) Tail(_ context.Context, ledgerID string) (domain.LedgerTail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.entries[ledgerID]
	if len(chain) == 0 {
		return domain.LedgerTail{LedgerID: ledgerID}, nil
	}
	last := chain[len(chain)-1]
	return domain.LedgerTail{LedgerID: ledgerID, Sequence: last.Sequence, ChainHash: last.ChainHash, Exists: true}, nil
}

func (s *stubLedger) Append(_ context.Context, entry domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	if s.conflicts > 0 {
		s.conflicts--
		return domain.ErrSequenceConflict
	}
	chain := s.entries[entry.LedgerID]
	if entry.Sequence != int64(len(chain)) {
		return fmt.Errorf("%w: want %d, got %d", domain.ErrSequenceConflict, len(chain), entry.Sequence)
	}
	s.entries[entry.LedgerID] = append(chain, entry)
	return nil
}

func (s *stubLedger) ReadRange(_ context.Context, ledgerID string, from, to int64) ([]domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.entries[ledgerID]
	if from < 0 || to < from || to >= int64(len(chain)) {
		return nil, fmt.Errorf("%w: range [%d,%d]", domain.ErrNotFound, from, to)
	}
	out := make([]domain.LedgerEntry, to-from+1)
	copy(out, chain[from:to+1])
	return out, nil
}

func (s *stubLedger) ReadAll(_ context.Context, ledgerID string) ([]domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.entries[ledgerID]
	out := make([]domain.LedgerEntry, len(chain))
	copy(out, chain)
	return out, nil
}

func (s *stubLedger) Tails(_ context.Context) ([]domain.LedgerTail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LedgerTail, 0, len(s.entries))
	for id, chain := range s.entries {
		if len(chain) == 0 {
			continue
		}
		last := chain[len(chain)-1]
		out = append(out, domain.LedgerTail{LedgerID: id, Sequence: last.Sequence, ChainHash: last.ChainHash, Exists: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LedgerID < out[j].LedgerID })
	return out, nil
}

type stubRegistry struct {
	mu   sync.Mutex
	keys map[string]domain.IdentityKey
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{keys: make(map[string]domain.IdentityKey)}
}

func registryKey(tenantID, identityID string) string {
	return tenantID + "/" + identityID
}

func (r *stubRegistry) Get(_ context.Context, tenantID, identityID string) (domain.IdentityKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[registryKey(tenantID, identityID)]
	if !ok {
		return domain.IdentityKey{}, fmt.Errorf("%w: %s", domain.ErrIdentityUnknown, identityID)
	}
	return key, nil
}

func (r *stubRegistry) Put(_ context.Context, key domain.IdentityKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := registryKey(key.TenantID, key.IdentityID)
	if _, exists := r.keys[k]; exists {
		return fmt.Errorf("%w: %s", domain.ErrIdentityExists, key.IdentityID)
	}
	r.keys[k] = key
	return nil
}

func (r *stubRegistry) Revoke(_ context.Context, tenantID, identityID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := registryKey(tenantID, identityID)
	key, ok := r.keys[k]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrIdentityUnknown, identityID)
	}
	key.RevokedAt = &at
	r.keys[k] = key
	return nil
}

func (r *stubRegistry) List(_ context.Context, tenantID string) ([]domain.IdentityKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.IdentityKey{}
	for _, key := range r.keys {
		if key.TenantID == tenantID {
			out = append(out, key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityID < out[j].IdentityID })
	return out, nil
}

// put force-writes a key bypassing the exists check, for shaping broken
// registries in tests.
func (r *stubRegistry) put(key domain.IdentityKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[registryKey(key.TenantID, key.IdentityID)] = key
}
