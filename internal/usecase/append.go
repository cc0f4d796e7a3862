package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"consentledger/internal/domain"
)

// maxAppendAttempts bounds retries when concurrent writers race for the
// same sequence slot.
const maxAppendAttempts = 5

// Appender turns arbitrary payloads into chained ledger entries. It reads
// the ledger tail, derives the next sequence and prev hash, computes both
// hashes, and appends, retrying on sequence conflicts so concurrent writes
// to the same ledger serialize into a gap-free chain.
type Appender struct {
	Store LedgerStore
	Clock Clock
}

func NewAppender(store LedgerStore, clock Clock) *Appender {
	if clock == nil {
		clock = time.Now
	}
	return &Appender{Store: store, Clock: clock}
}

// Append writes a single payload to the given ledger and returns the stored
// entry.
func (a *Appender) Append(ctx context.Context, ledgerID string, payload any) (domain.LedgerEntry, error) {
	return a.AppendWith(ctx, ledgerID, func(int64) (any, error) {
		return payload, nil
	})
}

// AppendWith builds the payload from the sequence it will occupy. Payloads
// that embed their own position, such as signed bindings, need the sequence
// before the entry exists; build runs again on every retry so the payload
// always matches the slot actually claimed.
func (a *Appender) AppendWith(ctx context.Context, ledgerID string, build func(sequence int64) (any, error)) (domain.LedgerEntry, error) {
	var lastErr error
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		tail, err := a.Store.Tail(ctx, ledgerID)
		if err != nil {
			return domain.LedgerEntry{}, fmt.Errorf("read tail of %s: %w", ledgerID, err)
		}

		seq := tail.NextSequence()
		payload, err := build(seq)
		if err != nil {
			return domain.LedgerEntry{}, err
		}

		ph, canonical, err := payloadHash(payload)
		if err != nil {
			return domain.LedgerEntry{}, err
		}
		prev := tail.NextPrevHash()
		ch, err := chainHash(prev, ph)
		if err != nil {
			return domain.LedgerEntry{}, err
		}

		entry := domain.LedgerEntry{
			ID:          uuid.NewString(),
			LedgerID:    ledgerID,
			Sequence:    seq,
			Payload:     json.RawMessage(canonical),
			PayloadHash: ph,
			PrevHash:    prev,
			ChainHash:   ch,
			CreatedAt:   a.Clock().UTC(),
		}

		err = a.Store.Append(ctx, entry)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, domain.ErrSequenceConflict) {
			return domain.LedgerEntry{}, err
		}
		lastErr = err
	}
	return domain.LedgerEntry{}, fmt.Errorf("append to %s: %w", ledgerID, lastErr)
}
