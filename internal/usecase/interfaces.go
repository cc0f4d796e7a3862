package usecase

import (
	"context"
	"time"

	"consentledger/internal/domain"
)

// Clock abstracts time for deterministic tests.
type Clock func() time.Time

// LedgerStore is the persistence contract for hash-chained ledgers. Append
// must claim the entry's sequence atomically: a concurrent writer racing for
// the same slot gets domain.ErrSequenceConflict, and any attempt to write a
// sequence that already holds a row is domain.ErrAppendOnlyViolation. Stores
// expose no update or delete operations.
type LedgerStore interface {
	Tail(ctx context.Context, ledgerID string) (domain.LedgerTail, error)
	Append(ctx context.Context, entry domain.LedgerEntry) error
	ReadRange(ctx context.Context, ledgerID string, from, to int64) ([]domain.LedgerEntry, error)
	ReadAll(ctx context.Context, ledgerID string) ([]domain.LedgerEntry, error)
	Tails(ctx context.Context) ([]domain.LedgerTail, error)
}

// IdentityRegistry stores identity keys per tenant. Get returns
// domain.ErrIdentityUnknown for a missing identity. Revoke is forward-only;
// un-revoking is not supported.
type IdentityRegistry interface {
	Get(ctx context.Context, tenantID, identityID string) (domain.IdentityKey, error)
	Put(ctx context.Context, key domain.IdentityKey) error
	Revoke(ctx context.Context, tenantID, identityID string, at time.Time) error
	List(ctx context.Context, tenantID string) ([]domain.IdentityKey, error)
}

// IdempotencyStore persists write outcomes keyed by (tenant, key). Store is
// first-writer-wins: when a record already exists it returns the stored one
// with inserted=false and never overwrites.
type IdempotencyStore interface {
	Lookup(ctx context.Context, tenantID, key string) (domain.IdempotencyRecord, bool, error)
	Store(ctx context.Context, rec domain.IdempotencyRecord) (domain.IdempotencyRecord, bool, error)
}
