package domain

import (
	"encoding/json"
	"time"
)

// GenesisHash is the prev_hash sentinel for sequence 0 of every ledger.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

const (
	LedgerAlgorithm        = "SHA256"
	LedgerCanonicalization = "sorted-json-no-whitespace"
	ExportVersion          = 1
)

// SystemLedgerID names the single global system event ledger.
const SystemLedgerID = "system"

func ConsentLedgerID(tenantID, consentID string) string {
	return "consent/" + tenantID + "/" + consentID
}

func IdentityLedgerID(tenantID string) string {
	return "identity/" + tenantID
}

func AssertionLedgerID(tenantID string) string {
	return "assertion/" + tenantID
}

// LedgerEntry is one append-only record. Payload holds the canonical bytes
// of the entry payload; PayloadHash is the digest of those bytes and
// ChainHash binds the entry to its predecessor.
type LedgerEntry struct {
	ID          string
	LedgerID    string
	Sequence    int64
	Payload     json.RawMessage
	PayloadHash string
	PrevHash    string
	ChainHash   string
	CreatedAt   time.Time
}

// LedgerTail is the current tip of a ledger as observed by a reader.
// Exists is false for an empty ledger.
type LedgerTail struct {
	LedgerID  string
	Sequence  int64
	ChainHash string
	Exists    bool
}

func (t LedgerTail) NextSequence() int64 {
	if !t.Exists {
		return 0
	}
	return t.Sequence + 1
}

func (t LedgerTail) NextPrevHash() string {
	if !t.Exists {
		return GenesisHash
	}
	return t.ChainHash
}
