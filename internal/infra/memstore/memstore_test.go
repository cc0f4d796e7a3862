package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"consentledger/internal/domain"
)

func entry(ledgerID string, seq int64) domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:          "e",
		LedgerID:    ledgerID,
		Sequence:    seq,
		Payload:     []byte(`{"n":1}`),
		PayloadHash: "ph",
		PrevHash:    domain.GenesisHash,
		ChainHash:   "ch",
	}
}

func TestLedgerAppendSequenceSemantics(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()

	if err := l.Append(ctx, entry("x", 0)); err != nil {
		t.Fatalf("append 0: %v", err)
	}
	if err := l.Append(ctx, entry("x", 1)); err != nil {
		t.Fatalf("append 1: %v", err)
	}

	// Rewriting an occupied slot is an append-only violation, not a
	// retryable conflict.
	if err := l.Append(ctx, entry("x", 0)); !errors.Is(err, domain.ErrAppendOnlyViolation) {
		t.Fatalf("expected append-only violation, got %v", err)
	}
	// Skipping ahead is a sequence conflict.
	if err := l.Append(ctx, entry("x", 5)); !errors.Is(err, domain.ErrSequenceConflict) {
		t.Fatalf("expected sequence conflict, got %v", err)
	}
}

func TestLedgerTailTracksLastEntry(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()

	tail, err := l.Tail(ctx, "x")
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if tail.Exists {
		t.Fatal("empty ledger reports an existing tail")
	}
	if tail.NextSequence() != 0 || tail.NextPrevHash() != domain.GenesisHash {
		t.Fatalf("empty tail next slot wrong: %+v", tail)
	}

	e := entry("x", 0)
	e.ChainHash = "abc"
	if err := l.Append(ctx, e); err != nil {
		t.Fatalf("append: %v", err)
	}
	tail, err = l.Tail(ctx, "x")
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if !tail.Exists || tail.Sequence != 0 || tail.ChainHash != "abc" {
		t.Fatalf("tail %+v", tail)
	}
}

func TestLedgerReadRangeBounds(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	for i := int64(0); i < 3; i++ {
		if err := l.Append(ctx, entry("x", i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := l.ReadRange(ctx, "x", 1, 2)
	if err != nil {
		t.Fatalf("read range: %v", err)
	}
	if len(got) != 2 || got[0].Sequence != 1 || got[1].Sequence != 2 {
		t.Fatalf("range %+v", got)
	}

	if _, err := l.ReadRange(ctx, "x", 0, 9); !errors.Is(err, domain.ErrChainBreak) {
		t.Fatalf("expected chain break for out-of-range read, got %v", err)
	}
	if _, err := l.ReadRange(ctx, "x", -1, 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for negative range, got %v", err)
	}
}

func TestLedgerTailsSortedAndNonEmpty(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	for _, id := range []string{"system", "consent/t1/c1", "identity/t1"} {
		if err := l.Append(ctx, entry(id, 0)); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	tails, err := l.Tails(ctx)
	if err != nil {
		t.Fatalf("tails: %v", err)
	}
	want := []string{"consent/t1/c1", "identity/t1", "system"}
	if len(tails) != len(want) {
		t.Fatalf("got %d tails", len(tails))
	}
	for i, id := range want {
		if tails[i].LedgerID != id {
			t.Fatalf("tail %d is %s, want %s", i, tails[i].LedgerID, id)
		}
	}
}

func TestRegistryPutGetRevoke(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	key := domain.IdentityKey{TenantID: "t1", IdentityID: "root", PublicKey: "pk", Fingerprint: "fp"}

	if err := r.Put(ctx, key); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := r.Put(ctx, key); !errors.Is(err, domain.ErrIdentityExists) {
		t.Fatalf("expected exists error, got %v", err)
	}
	if _, err := r.Get(ctx, "t1", "other"); !errors.Is(err, domain.ErrIdentityUnknown) {
		t.Fatalf("expected unknown error, got %v", err)
	}

	first := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := r.Revoke(ctx, "t1", "root", first); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	// A later revoke does not move the original timestamp.
	if err := r.Revoke(ctx, "t1", "root", first.Add(time.Hour)); err != nil {
		t.Fatalf("revoke again: %v", err)
	}
	got, err := r.Get(ctx, "t1", "root")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RevokedAt == nil || !got.RevokedAt.Equal(first) {
		t.Fatalf("revoked_at %v, want %v", got.RevokedAt, first)
	}
}

func TestRegistryListIsTenantScoped(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	for _, k := range []domain.IdentityKey{
		{TenantID: "t1", IdentityID: "b"},
		{TenantID: "t1", IdentityID: "a"},
		{TenantID: "t2", IdentityID: "c"},
	} {
		if err := r.Put(ctx, k); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	keys, err := r.List(ctx, "t1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 || keys[0].IdentityID != "a" || keys[1].IdentityID != "b" {
		t.Fatalf("list %+v", keys)
	}
}

func TestIdempotencyFirstWriterWins(t *testing.T) {
	s := NewIdempotency()
	ctx := context.Background()

	first := domain.IdempotencyRecord{TenantID: "t1", Key: "k", RequestHash: "h1", StatusCode: 201}
	stored, inserted, err := s.Store(ctx, first)
	if err != nil || !inserted {
		t.Fatalf("first store inserted=%v err=%v", inserted, err)
	}
	if stored.RequestHash != "h1" {
		t.Fatalf("stored %+v", stored)
	}

	second := domain.IdempotencyRecord{TenantID: "t1", Key: "k", RequestHash: "h2", StatusCode: 500}
	stored, inserted, err = s.Store(ctx, second)
	if err != nil || inserted {
		t.Fatalf("second store inserted=%v err=%v", inserted, err)
	}
	if stored.RequestHash != "h1" {
		t.Fatal("second writer overwrote the first record")
	}

	rec, ok, err := s.Lookup(ctx, "t1", "k")
	if err != nil || !ok || rec.RequestHash != "h1" {
		t.Fatalf("lookup %+v ok=%v err=%v", rec, ok, err)
	}

	// Same key under another tenant is an independent slot.
	if _, ok, _ := s.Lookup(ctx, "t2", "k"); ok {
		t.Fatal("idempotency record leaked across tenants")
	}
}

func TestTenantsCreateRejectsDuplicates(t *testing.T) {
	s := NewTenants()
	ctx := context.Background()

	id, err := s.Create(ctx, "acme")
	if err != nil || id == "" {
		t.Fatalf("create: id=%q err=%v", id, err)
	}
	if _, err := s.Create(ctx, "acme"); err == nil {
		t.Fatal("duplicate tenant name accepted")
	}
}
