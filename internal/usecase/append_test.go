package usecase

import (
	"context"
	"errors"
	"testing"

	"consentledger/internal/domain"
)

func TestAppendThreeEntriesChainsCorrectly(t *testing.T) {
	store := newStubLedger()
	appender := NewAppender(store, testClock)
	ctx := context.Background()

	payloads := []map[string]any{{"a": 1}, {"a": 2}, {"a": 3}}
	entries := make([]domain.LedgerEntry, 0, 3)
	for _, p := range payloads {
		entry, err := appender.Append(ctx, "consent/t1/c1", p)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		entries = append(entries, entry)
	}

	for i, e := range entries {
		if e.Sequence != int64(i) {
			t.Fatalf("entry %d: sequence %d", i, e.Sequence)
		}
	}
	if entries[0].PrevHash != domain.GenesisHash {
		t.Fatalf("entry 0 prev_hash = %s, want genesis", entries[0].PrevHash)
	}
	if entries[1].PrevHash != entries[0].ChainHash {
		t.Fatal("entry 1 not linked to entry 0")
	}
	if entries[2].PrevHash != entries[1].ChainHash {
		t.Fatal("entry 2 not linked to entry 1")
	}
	if string(entries[0].Payload) != `{"a":1}` {
		t.Fatalf("payload stored non-canonically: %s", entries[0].Payload)
	}
}

func TestAppendIsDeterministicForEqualPayloads(t *testing.T) {
	a := newStubLedger()
	b := newStubLedger()
	ctx := context.Background()

	e1, err := NewAppender(a, testClock).Append(ctx, "x", map[string]any{"k": "v", "n": 1})
	if err != nil {
		t.Fatalf("append a: %v", err)
	}
	e2, err := NewAppender(b, testClock).Append(ctx, "x", map[string]any{"n": 1, "k": "v"})
	if err != nil {
		t.Fatalf("append b: %v", err)
	}
	if e1.PayloadHash != e2.PayloadHash || e1.ChainHash != e2.ChainHash {
		t.Fatal("equal payloads produced different hashes")
	}
}

func TestAppendRetriesAfterSequenceConflict(t *testing.T) {
	store := newStubLedger()
	store.conflicts = 2
	appender := NewAppender(store, testClock)

	entry, err := appender.Append(context.Background(), "x", map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if entry.Sequence != 0 {
		t.Fatalf("sequence %d, want 0", entry.Sequence)
	}
}

func TestAppendGivesUpAfterMaxAttempts(t *testing.T) {
	store := newStubLedger()
	store.conflicts = maxAppendAttempts
	appender := NewAppender(store, testClock)

	_, err := appender.Append(context.Background(), "x", map[string]any{"a": 1})
	if !errors.Is(err, domain.ErrSequenceConflict) {
		t.Fatalf("expected sequence conflict, got %v", err)
	}
}

func TestAppendWithRebuildsPayloadPerAttempt(t *testing.T) {
	store := newStubLedger()
	store.conflicts = 1
	appender := NewAppender(store, testClock)

	var seen []int64
	entry, err := appender.AppendWith(context.Background(), "x", func(seq int64) (any, error) {
		seen = append(seen, seq)
		return map[string]any{"seq": seq}, nil
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("build called %d times, want 2", len(seen))
	}
	if string(entry.Payload) != `{"seq":0}` {
		t.Fatalf("payload %s does not carry the claimed sequence", entry.Payload)
	}
}
