package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"consentledger/internal/domain"
	cryptoinfra "consentledger/internal/infra/crypto"
)

const ProofTypeSignedAssertion = "SIGNED_ASSERTION"

// assertionBinding is what the signature covers: the payload plus the slot
// the entry occupies, so a valid signature cannot be replayed at another
// position or in another ledger.
func assertionBinding(ledgerID string, sequence int64, payload json.RawMessage) ([]byte, error) {
	return cryptoinfra.Canonicalize(map[string]any{
		"binding": map[string]any{
			"ledger_id": ledgerID,
			"sequence":  sequence,
		},
		"payload": payload,
	})
}

// BundleIdentity is the wire form of a registry row inside a proof bundle.
type BundleIdentity struct {
	IdentityID    string `json:"identity_id"`
	PublicKey     string `json:"public_key"`
	Fingerprint   string `json:"fingerprint"`
	DelegatedFrom string `json:"delegated_from,omitempty"`
	RevokedAt     string `json:"revoked_at,omitempty"`
}

// ProofBundle packages one signed assertion with the identity registry
// snapshot needed to verify it offline.
type ProofBundle struct {
	Version        int              `json:"version"`
	ProofType      string           `json:"proof_type"`
	TenantID       string           `json:"tenant_id"`
	LedgerID       string           `json:"ledger_id"`
	Assertion      ExportedEntry    `json:"assertion"`
	Identities     []BundleIdentity `json:"identities"`
	RootIdentityID string           `json:"root_identity_id"`
}

// Assertions issues signed assertions to the per-tenant assertion ledger
// and builds proof bundles for them.
type Assertions struct {
	Appender *Appender
	Store    LedgerStore
	Registry IdentityRegistry
	Signer   *Signer
}

// Issue signs payload and appends it. The signature is recomputed on every
// append retry because the bound sequence changes with the claimed slot.
func (a *Assertions) Issue(ctx context.Context, tenantID string, payload json.RawMessage) (domain.LedgerEntry, error) {
	if a.Signer == nil {
		return domain.LedgerEntry{}, domain.ErrSigningUnavailable
	}
	ledgerID := domain.AssertionLedgerID(tenantID)
	return a.Appender.AppendWith(ctx, ledgerID, func(sequence int64) (any, error) {
		msg, err := assertionBinding(ledgerID, sequence, payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"payload":             payload,
			"signer_identity_id":  a.Signer.IdentityID,
			"signature":           a.Signer.Sign(msg),
			"signature_algorithm": domain.SignatureAlgorithmEd25519,
		}, nil
	})
}

// BuildProof packages the assertion at sequence into a self-contained
// bundle embedding the tenant's identity registry.
func (a *Assertions) BuildProof(ctx context.Context, tenantID string, sequence int64) (ProofBundle, error) {
	ledgerID := domain.AssertionLedgerID(tenantID)
	entries, err := a.Store.ReadRange(ctx, ledgerID, sequence, sequence)
	if err != nil {
		return ProofBundle{}, err
	}
	if len(entries) != 1 {
		return ProofBundle{}, fmt.Errorf("%w: assertion %d in %s", domain.ErrNotFound, sequence, ledgerID)
	}
	entry := entries[0]

	var stored struct {
		SignerIdentityID string `json:"signer_identity_id"`
	}
	if err := json.Unmarshal(entry.Payload, &stored); err != nil {
		return ProofBundle{}, fmt.Errorf("decode assertion payload: %w", err)
	}

	keys, err := a.Registry.List(ctx, tenantID)
	if err != nil {
		return ProofBundle{}, err
	}
	byID := make(map[string]domain.IdentityKey, len(keys))
	identities := make([]BundleIdentity, 0, len(keys))
	for _, k := range keys {
		byID[k.IdentityID] = k
		bi := BundleIdentity{
			IdentityID:    k.IdentityID,
			PublicKey:     k.PublicKey,
			Fingerprint:   k.Fingerprint,
			DelegatedFrom: k.DelegatedFrom,
		}
		if k.RevokedAt != nil {
			bi.RevokedAt = k.RevokedAt.UTC().Format(time.RFC3339)
		}
		identities = append(identities, bi)
	}

	if _, err := ResolveDelegationChain(func(id string) (domain.IdentityKey, bool) {
		k, ok := byID[id]
		return k, ok
	}, stored.SignerIdentityID); err != nil {
		return ProofBundle{}, err
	}

	rootID := stored.SignerIdentityID
	for !byID[rootID].Root() {
		rootID = byID[rootID].DelegatedFrom
	}

	return ProofBundle{
		Version:        domain.ExportVersion,
		ProofType:      ProofTypeSignedAssertion,
		TenantID:       tenantID,
		LedgerID:       ledgerID,
		Assertion:      exportEntry(entry),
		Identities:     identities,
		RootIdentityID: rootID,
	}, nil
}

func exportEntry(e domain.LedgerEntry) ExportedEntry {
	return ExportedEntry{
		Sequence:    e.Sequence,
		Payload:     e.Payload,
		PayloadHash: e.PayloadHash,
		PrevHash:    e.PrevHash,
		ChainHash:   e.ChainHash,
		CreatedAt:   e.CreatedAt,
	}
}
