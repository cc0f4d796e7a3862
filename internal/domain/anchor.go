package domain

// AnchorEntry summarizes the current tip of one ledger.
type AnchorEntry struct {
	LedgerID        string `json:"ledger_id"`
	LatestSequence  int64  `json:"latest_sequence"`
	LatestChainHash string `json:"latest_chain_hash"`
}

// AnchorSnapshot is an ephemeral, independently re-verifiable summary of all
// tracked ledger tips. Entries are sorted by ledger_id and the digest covers
// their canonical encoding.
type AnchorSnapshot struct {
	Version     int           `json:"version"`
	GeneratedAt string        `json:"generated_at"`
	Algorithm   string        `json:"algorithm"`
	EntryCount  int           `json:"entry_count"`
	Digest      string        `json:"digest"`
	Entries     []AnchorEntry `json:"entries"`
}
