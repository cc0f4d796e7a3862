package usecase

import (
	"context"
	"testing"

	cryptoinfra "consentledger/internal/infra/crypto"
)

type fakeCommitLog struct {
	lines [][2]string
	err   error
}

func (f *fakeCommitLog) Append(timestamp, digest string) error {
	if f.err != nil {
		return f.err
	}
	f.lines = append(f.lines, [2]string{timestamp, digest})
	return nil
}

func seedLedgers(t *testing.T, store *stubLedger) {
	t.Helper()
	appender := NewAppender(store, testClock)
	ctx := context.Background()
	// Seeded out of lexicographic order on purpose.
	for _, id := range []string{"system", "consent/t1/c2", "consent/t1/c1", "identity/t1"} {
		if _, err := appender.Append(ctx, id, map[string]any{"ledger": id}); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
}

func TestSnapshotSortsEntriesByLedgerID(t *testing.T) {
	store := newStubLedger()
	seedLedgers(t, store)
	snap, err := NewAnchors(store, nil, testClock).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	want := []string{"consent/t1/c1", "consent/t1/c2", "identity/t1", "system"}
	if snap.EntryCount != len(want) {
		t.Fatalf("entry count %d, want %d", snap.EntryCount, len(want))
	}
	for i, id := range want {
		if snap.Entries[i].LedgerID != id {
			t.Fatalf("entry %d is %s, want %s", i, snap.Entries[i].LedgerID, id)
		}
	}
	if snap.GeneratedAt != "2025-06-01T12:00:00Z" {
		t.Fatalf("generated_at %q", snap.GeneratedAt)
	}
}

func TestSnapshotDigestIsStableAcrossRuns(t *testing.T) {
	a := newStubLedger()
	b := newStubLedger()
	seedLedgers(t, a)
	seedLedgers(t, b)

	s1, err := NewAnchors(a, nil, testClock).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot a: %v", err)
	}
	s2, err := NewAnchors(b, nil, testClock).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot b: %v", err)
	}
	if s1.Digest != s2.Digest {
		t.Fatal("identical ledger state produced different digests")
	}
	if !cryptoinfra.IsHexDigest(s1.Digest) {
		t.Fatalf("digest %q not lowercase hex", s1.Digest)
	}
}

func TestSnapshotWritesCommitLine(t *testing.T) {
	store := newStubLedger()
	seedLedgers(t, store)
	commit := &fakeCommitLog{}

	snap, err := NewAnchors(store, commit, testClock).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(commit.lines) != 1 {
		t.Fatalf("commit log got %d lines, want 1", len(commit.lines))
	}
	if commit.lines[0][0] != snap.GeneratedAt || commit.lines[0][1] != snap.Digest {
		t.Fatalf("commit line %v does not match snapshot", commit.lines[0])
	}
}

func TestSnapshotOfEmptyStoreHasNoEntries(t *testing.T) {
	snap, err := NewAnchors(newStubLedger(), nil, testClock).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.EntryCount != 0 || len(snap.Entries) != 0 {
		t.Fatalf("empty store produced entries: %+v", snap)
	}
}
