package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"consentledger/internal/domain"
	cryptoinfra "consentledger/internal/infra/crypto"
)

// Lineage actions. noop records that a write was accepted but changed
// nothing, so even no-change requests leave an auditable trace.
const (
	LineageActionCreated = "created"
	LineageActionUpdated = "updated"
	LineageActionRevoked = "revoked"
	LineageActionNoop    = "noop"
)

func validLineageAction(action string) bool {
	switch action {
	case LineageActionCreated, LineageActionUpdated, LineageActionRevoked, LineageActionNoop:
		return true
	}
	return false
}

// ExportedEntry is the wire form of a ledger entry inside export artifacts.
type ExportedEntry struct {
	Sequence    int64           `json:"sequence"`
	Payload     json.RawMessage `json:"payload"`
	PayloadHash string          `json:"payload_hash"`
	PrevHash    string          `json:"prev_hash"`
	ChainHash   string          `json:"chain_hash"`
	CreatedAt   time.Time       `json:"created_at"`
}

func exportEntries(entries []domain.LedgerEntry) []ExportedEntry {
	out := make([]ExportedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, exportEntry(e))
	}
	return out
}

// LineageExport is the offline-verifiable artifact for one consent's
// lineage. Signer fields are present all together or not at all; the
// signature covers the canonical bytes of the export with the signature
// field removed.
type LineageExport struct {
	Version            int             `json:"version"`
	Algorithm          string          `json:"algorithm"`
	Canonicalization   string          `json:"canonicalization"`
	TenantID           string          `json:"tenant_id"`
	ConsentID          string          `json:"consent_id"`
	LedgerID           string          `json:"ledger_id"`
	TenantAnchor       string          `json:"tenant_anchor"`
	Entries            []ExportedEntry `json:"entries"`
	SignerIdentityID   string          `json:"signer_identity_id,omitempty"`
	SignerPublicKey    string          `json:"signer_public_key,omitempty"`
	SignerFingerprint  string          `json:"signer_fingerprint,omitempty"`
	SignatureAlgorithm string          `json:"signature_algorithm,omitempty"`
	Signature          string          `json:"signature,omitempty"`
}

// TenantAnchor binds an export to its tenant so a chain-valid export cannot
// be replayed under a different tenant.
func TenantAnchor(tenantID, lastChainHash string) string {
	return cryptoinfra.DigestString("ANCHOR|" + tenantID + "|" + lastChainHash)
}

// Lineage appends consent lifecycle events and produces export artifacts.
// Signer is optional; when set, exports carry signer fields.
type Lineage struct {
	Appender *Appender
	Store    LedgerStore
	Signer   *Signer
}

// AppendEvent records one lifecycle action for a consent. data is the
// caller-supplied event body and may be nil.
func (l *Lineage) AppendEvent(ctx context.Context, tenantID, consentID, action string, data json.RawMessage) (domain.LedgerEntry, error) {
	if !validLineageAction(action) {
		return domain.LedgerEntry{}, fmt.Errorf("%w: unknown lineage action %q", domain.ErrInvalidArtifact, action)
	}
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	payload := map[string]any{
		"action":     action,
		"consent_id": consentID,
		"tenant_id":  tenantID,
		"data":       data,
	}
	return l.Appender.Append(ctx, domain.ConsentLedgerID(tenantID, consentID), payload)
}

// Export reads the full chain for one consent and wraps it in the
// verifiable artifact format. Empty ledgers export with zero entries and a
// genesis-anchored tenant anchor.
func (l *Lineage) Export(ctx context.Context, tenantID, consentID string) (LineageExport, error) {
	ledgerID := domain.ConsentLedgerID(tenantID, consentID)
	entries, err := l.Store.ReadAll(ctx, ledgerID)
	if err != nil {
		return LineageExport{}, fmt.Errorf("read %s: %w", ledgerID, err)
	}

	lastChainHash := domain.GenesisHash
	if len(entries) > 0 {
		lastChainHash = entries[len(entries)-1].ChainHash
	}

	export := LineageExport{
		Version:          domain.ExportVersion,
		Algorithm:        domain.LedgerAlgorithm,
		Canonicalization: domain.LedgerCanonicalization,
		TenantID:         tenantID,
		ConsentID:        consentID,
		LedgerID:         ledgerID,
		TenantAnchor:     TenantAnchor(tenantID, lastChainHash),
		Entries:          exportEntries(entries),
	}

	if l.Signer != nil {
		export.SignerIdentityID = l.Signer.IdentityID
		export.SignerPublicKey = l.Signer.PublicKeyHex
		export.SignerFingerprint = l.Signer.Fingerprint
		export.SignatureAlgorithm = domain.SignatureAlgorithmEd25519
		unsigned, err := cryptoinfra.Canonicalize(export)
		if err != nil {
			return LineageExport{}, fmt.Errorf("canonicalize export: %w", err)
		}
		export.Signature = l.Signer.Sign(unsigned)
	}
	return export, nil
}
