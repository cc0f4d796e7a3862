package memstore

import (
	"context"
	"sync"

	"consentledger/internal/domain"
)

// Idempotency is an in-memory IdempotencyStore with first-writer-wins
// semantics.
type Idempotency struct {
	mu      sync.Mutex
	records map[string]domain.IdempotencyRecord
}

func NewIdempotency() *Idempotency {
	return &Idempotency{records: make(map[string]domain.IdempotencyRecord)}
}

func recordKey(tenantID, key string) string {
	return tenantID + "\x00" + key
}

func (s *Idempotency) Lookup(ctx context.Context, tenantID, key string) (domain.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordKey(tenantID, key)]
	return rec, ok, nil
}

func (s *Idempotency) Store(ctx context.Context, rec domain.IdempotencyRecord) (domain.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey(rec.TenantID, rec.Key)
	if existing, ok := s.records[k]; ok {
		return existing, false, nil
	}
	s.records[k] = rec
	return rec, true, nil
}
