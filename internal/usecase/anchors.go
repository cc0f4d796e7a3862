package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"consentledger/internal/domain"
	cryptoinfra "consentledger/internal/infra/crypto"
)

// CommitLog receives one line per published snapshot. Implementations are
// append-only.
type CommitLog interface {
	Append(timestamp, digest string) error
}

// Anchors builds sorted snapshot digests over all ledger tips. Commit is
// optional; when nil a snapshot is computed and returned without any
// external write.
type Anchors struct {
	Store  LedgerStore
	Commit CommitLog
	Clock  Clock
}

func NewAnchors(store LedgerStore, commit CommitLog, clock Clock) *Anchors {
	if clock == nil {
		clock = time.Now
	}
	return &Anchors{Store: store, Commit: commit, Clock: clock}
}

// Snapshot collects every non-empty ledger's tip, sorts by ledger_id, and
// digests the canonical entry list.
func (a *Anchors) Snapshot(ctx context.Context) (domain.AnchorSnapshot, error) {
	tails, err := a.Store.Tails(ctx)
	if err != nil {
		return domain.AnchorSnapshot{}, fmt.Errorf("read ledger tails: %w", err)
	}

	entries := make([]domain.AnchorEntry, 0, len(tails))
	for _, t := range tails {
		if !t.Exists {
			continue
		}
		entries = append(entries, domain.AnchorEntry{
			LedgerID:        t.LedgerID,
			LatestSequence:  t.Sequence,
			LatestChainHash: t.ChainHash,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].LedgerID < entries[j].LedgerID })

	digest, err := anchorEntriesDigest(entries)
	if err != nil {
		return domain.AnchorSnapshot{}, err
	}

	snap := domain.AnchorSnapshot{
		Version:     domain.ExportVersion,
		GeneratedAt: a.Clock().UTC().Format(time.RFC3339),
		Algorithm:   domain.LedgerAlgorithm,
		EntryCount:  len(entries),
		Digest:      digest,
		Entries:     entries,
	}

	if a.Commit != nil {
		if err := a.Commit.Append(snap.GeneratedAt, snap.Digest); err != nil {
			return domain.AnchorSnapshot{}, fmt.Errorf("write anchor commit line: %w", err)
		}
	}
	return snap, nil
}

// anchorEntriesDigest is the one digest both snapshot creation and offline
// snapshot verification compute.
func anchorEntriesDigest(entries []domain.AnchorEntry) (string, error) {
	canonical, err := cryptoinfra.Canonicalize(entries)
	if err != nil {
		return "", fmt.Errorf("canonicalize anchor entries: %w", err)
	}
	return cryptoinfra.DigestHex(canonical), nil
}
