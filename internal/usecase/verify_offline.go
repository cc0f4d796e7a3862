package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"time"

	"consentledger/internal/domain"
	cryptoinfra "consentledger/internal/infra/crypto"
)

// Verifier re-derives every hash and signature in an exported artifact from
// the artifact bytes alone. No storage or network access; given the same
// bytes it always returns the same result.
type Verifier struct{}

func NewVerifier() *Verifier { return &Verifier{} }

// decodeArtifact parses a JSON object strictly: numbers kept exact,
// trailing data rejected.
func decodeArtifact(raw []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

func strField(obj map[string]any, key string) (string, bool) {
	v, ok := obj[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func intField(obj map[string]any, key string) (int64, bool) {
	v, ok := obj[key]
	if !ok {
		return 0, false
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	n, err := num.Int64()
	if err != nil {
		return 0, false
	}
	return n, true
}

// VerifyLineageExport checks a consent lineage export. Signature material,
// when present, is checked before any structural check so a tampered signed
// artifact always reports as a signature-class failure.
func (v *Verifier) VerifyLineageExport(raw []byte) domain.VerifyResult {
	obj, ok := decodeArtifact(raw)
	if !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}

	if res, signed := v.checkExportSignature(obj); signed {
		if !res.Verified {
			return res
		}
	}

	if !v.exportHeaderValid(obj) {
		return domain.FailedResult(domain.ReasonValidation)
	}
	tenantID, ok := strField(obj, "tenant_id")
	if !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}
	if _, ok := strField(obj, "consent_id"); !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}
	if _, ok := strField(obj, "ledger_id"); !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}
	anchor, ok := strField(obj, "tenant_anchor")
	if !ok || !cryptoinfra.IsHexDigest(anchor) {
		return domain.FailedResult(domain.ReasonValidation)
	}
	entries, ok := obj["entries"].([]any)
	if !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}

	lastChainHash, res := walkChain(entries)
	if !res.Verified {
		return res
	}

	if TenantAnchor(tenantID, lastChainHash) != anchor {
		return domain.FailedResult(domain.ReasonHashMismatch)
	}
	return domain.VerifiedResult()
}

// VerifySystemExport checks a system ledger export.
func (v *Verifier) VerifySystemExport(raw []byte) domain.VerifyResult {
	obj, ok := decodeArtifact(raw)
	if !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}
	version, ok := intField(obj, "version")
	if !ok || version != int64(domain.ExportVersion) {
		return domain.FailedResult(domain.ReasonValidation)
	}
	entries, ok := obj["entries"].([]any)
	if !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}
	count, ok := intField(obj, "event_count")
	if !ok || count != int64(len(entries)) {
		return domain.FailedResult(domain.ReasonValidation)
	}

	lastChainHash, res := walkChain(entries)
	if !res.Verified {
		return res
	}

	stored, present := obj["last_chain_hash"]
	if !present {
		return domain.FailedResult(domain.ReasonValidation)
	}
	if len(entries) == 0 {
		if stored != nil {
			return domain.FailedResult(domain.ReasonValidation)
		}
		return domain.VerifiedResult()
	}
	storedHash, ok := stored.(string)
	if !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}
	if storedHash != lastChainHash {
		return domain.FailedResult(domain.ReasonHashMismatch)
	}
	return domain.VerifiedResult()
}

// VerifyAnchorSnapshot recomputes the snapshot digest over the supplied
// entries. Entries must arrive sorted; sorting them here would mask
// tampering with the published order.
func (v *Verifier) VerifyAnchorSnapshot(raw []byte) domain.VerifyResult {
	obj, ok := decodeArtifact(raw)
	if !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}
	version, ok := intField(obj, "version")
	if !ok || version != int64(domain.ExportVersion) {
		return domain.FailedResult(domain.ReasonValidation)
	}
	if alg, ok := strField(obj, "algorithm"); !ok || alg != domain.LedgerAlgorithm {
		return domain.FailedResult(domain.ReasonValidation)
	}
	digest, ok := strField(obj, "digest")
	if !ok || !cryptoinfra.IsHexDigest(digest) {
		return domain.FailedResult(domain.ReasonValidation)
	}
	rawEntries, ok := obj["entries"].([]any)
	if !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}
	count, ok := intField(obj, "entry_count")
	if !ok || count != int64(len(rawEntries)) {
		return domain.FailedResult(domain.ReasonValidation)
	}

	entries := make([]domain.AnchorEntry, 0, len(rawEntries))
	for i, item := range rawEntries {
		entryObj, ok := item.(map[string]any)
		if !ok {
			return domain.FailedResultAt(domain.ReasonValidation, int64(i))
		}
		ledgerID, ok := strField(entryObj, "ledger_id")
		if !ok {
			return domain.FailedResultAt(domain.ReasonValidation, int64(i))
		}
		seq, ok := intField(entryObj, "latest_sequence")
		if !ok || seq < 0 {
			return domain.FailedResultAt(domain.ReasonValidation, int64(i))
		}
		ch, ok := strField(entryObj, "latest_chain_hash")
		if !ok || !cryptoinfra.IsHexDigest(ch) {
			return domain.FailedResultAt(domain.ReasonValidation, int64(i))
		}
		if i > 0 && entries[i-1].LedgerID >= ledgerID {
			return domain.FailedResultAt(domain.ReasonValidation, int64(i))
		}
		entries = append(entries, domain.AnchorEntry{
			LedgerID:        ledgerID,
			LatestSequence:  seq,
			LatestChainHash: ch,
		})
	}

	recomputed, err := anchorEntriesDigest(entries)
	if err != nil || recomputed != digest {
		return domain.FailedResult(domain.ReasonHashMismatch)
	}
	return domain.VerifiedResult()
}

// VerifyProofBundle resolves the signer inside the bundle's embedded
// registry and checks the assertion signature before any structural check.
func (v *Verifier) VerifyProofBundle(raw []byte) domain.VerifyResult {
	obj, ok := decodeArtifact(raw)
	if !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}
	version, ok := intField(obj, "version")
	if !ok || version != int64(domain.ExportVersion) {
		return domain.FailedResult(domain.ReasonValidation)
	}
	if pt, ok := strField(obj, "proof_type"); !ok || pt != ProofTypeSignedAssertion {
		return domain.FailedResult(domain.ReasonValidation)
	}
	ledgerID, ok := strField(obj, "ledger_id")
	if !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}
	rootID, ok := strField(obj, "root_identity_id")
	if !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}

	registry, ok := decodeBundleIdentities(obj["identities"])
	if !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}

	assertion, ok := obj["assertion"].(map[string]any)
	if !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}
	sequence, ok := intField(assertion, "sequence")
	if !ok || sequence < 0 {
		return domain.FailedResult(domain.ReasonValidation)
	}
	stored, ok := assertion["payload"].(map[string]any)
	if !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}
	signerID, ok := strField(stored, "signer_identity_id")
	if !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}
	signature, ok := strField(stored, "signature")
	if !ok {
		return domain.FailedResult(domain.ReasonValidation)
	}
	if alg, ok := strField(stored, "signature_algorithm"); !ok || alg != domain.SignatureAlgorithmEd25519 {
		return domain.FailedResult(domain.ReasonValidation)
	}
	inner, present := stored["payload"]
	if !present {
		return domain.FailedResult(domain.ReasonValidation)
	}

	// Signature class first.
	signer, err := ResolveDelegationChain(func(id string) (domain.IdentityKey, bool) {
		k, found := registry[id]
		return k, found
	}, signerID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrIdentityCycle):
		return domain.FailedResult(domain.ReasonIdentityCycle)
	case errors.Is(err, domain.ErrIdentityRevoked):
		return domain.FailedResult(domain.ReasonIdentityRevoked)
	default:
		return domain.FailedResult(domain.ReasonSignatureMismatch)
	}

	fp, err := cryptoinfra.Fingerprint(signer.PublicKey)
	if err != nil || fp != signer.Fingerprint {
		return domain.FailedResult(domain.ReasonSignatureMismatch)
	}
	if resolvedRootOf(registry, signerID) != rootID {
		return domain.FailedResult(domain.ReasonSignatureMismatch)
	}
	msg, err := assertionBindingValue(ledgerID, sequence, inner)
	if err != nil {
		return domain.FailedResult(domain.ReasonValidation)
	}
	if !cryptoinfra.VerifyHex(signer.PublicKey, msg, signature) {
		return domain.FailedResult(domain.ReasonSignatureMismatch)
	}

	// Structural class only after the signature holds.
	return checkEntryHashes(assertion, stored)
}

func assertionBindingValue(ledgerID string, sequence int64, payload any) ([]byte, error) {
	return cryptoinfra.Canonicalize(map[string]any{
		"binding": map[string]any{
			"ledger_id": ledgerID,
			"sequence":  sequence,
		},
		"payload": payload,
	})
}

func decodeBundleIdentities(v any) (map[string]domain.IdentityKey, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	registry := make(map[string]domain.IdentityKey, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		id, ok := strField(obj, "identity_id")
		if !ok {
			return nil, false
		}
		pub, ok := strField(obj, "public_key")
		if !ok {
			return nil, false
		}
		fp, ok := strField(obj, "fingerprint")
		if !ok || !cryptoinfra.IsHexDigest(fp) {
			return nil, false
		}
		key := domain.IdentityKey{IdentityID: id, PublicKey: pub, Fingerprint: fp}
		if raw, present := obj["delegated_from"]; present {
			parent, ok := raw.(string)
			if !ok {
				return nil, false
			}
			key.DelegatedFrom = parent
		}
		if raw, present := obj["revoked_at"]; present {
			s, ok := raw.(string)
			if !ok {
				return nil, false
			}
			at, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, false
			}
			key.RevokedAt = &at
		}
		registry[id] = key
	}
	return registry, true
}

// resolvedRootOf assumes the chain already resolved cleanly.
func resolvedRootOf(registry map[string]domain.IdentityKey, id string) string {
	for !registry[id].Root() {
		id = registry[id].DelegatedFrom
	}
	return id
}

// exportHeaderValid checks the fixed protocol fields shared by lineage
// exports.
func (v *Verifier) exportHeaderValid(obj map[string]any) bool {
	version, ok := intField(obj, "version")
	if !ok || version != int64(domain.ExportVersion) {
		return false
	}
	if alg, ok := strField(obj, "algorithm"); !ok || alg != domain.LedgerAlgorithm {
		return false
	}
	if c, ok := strField(obj, "canonicalization"); !ok || c != domain.LedgerCanonicalization {
		return false
	}
	return true
}

var exportSignerFields = []string{
	"signer_identity_id",
	"signer_public_key",
	"signer_fingerprint",
	"signature_algorithm",
	"signature",
}

// checkExportSignature handles the optional signer fields on an export.
// Returns signed=false when no signer field is present at all; a partial
// set is a validation failure.
func (v *Verifier) checkExportSignature(obj map[string]any) (domain.VerifyResult, bool) {
	present := 0
	for _, f := range exportSignerFields {
		if _, ok := obj[f]; ok {
			present++
		}
	}
	if present == 0 {
		return domain.VerifiedResult(), false
	}
	if present != len(exportSignerFields) {
		return domain.FailedResult(domain.ReasonValidation), true
	}

	pub, ok := strField(obj, "signer_public_key")
	if !ok {
		return domain.FailedResult(domain.ReasonValidation), true
	}
	fp, ok := strField(obj, "signer_fingerprint")
	if !ok {
		return domain.FailedResult(domain.ReasonValidation), true
	}
	alg, ok := strField(obj, "signature_algorithm")
	if !ok || alg != domain.SignatureAlgorithmEd25519 {
		return domain.FailedResult(domain.ReasonValidation), true
	}
	signature, ok := strField(obj, "signature")
	if !ok {
		return domain.FailedResult(domain.ReasonValidation), true
	}

	computedFP, err := cryptoinfra.Fingerprint(pub)
	if err != nil || computedFP != fp {
		return domain.FailedResult(domain.ReasonSignatureMismatch), true
	}

	unsigned := make(map[string]any, len(obj))
	for k, val := range obj {
		if k == "signature" {
			continue
		}
		unsigned[k] = val
	}
	msg, err := cryptoinfra.Canonicalize(unsigned)
	if err != nil {
		return domain.FailedResult(domain.ReasonValidation), true
	}
	if !cryptoinfra.VerifyHex(pub, msg, signature) {
		return domain.FailedResult(domain.ReasonSignatureMismatch), true
	}
	return domain.VerifiedResult(), true
}

// walkChain verifies an exported entry list from sequence 0 forward and
// returns the last chain hash. Failures carry the index of the first entry
// where the invariant breaks. An empty list walks to the genesis sentinel.
func walkChain(entries []any) (string, domain.VerifyResult) {
	prev := domain.GenesisHash
	for i, item := range entries {
		idx := int64(i)
		obj, ok := item.(map[string]any)
		if !ok {
			return "", domain.FailedResultAt(domain.ReasonValidation, idx)
		}
		seq, ok := intField(obj, "sequence")
		if !ok {
			return "", domain.FailedResultAt(domain.ReasonValidation, idx)
		}
		payload, present := obj["payload"]
		if !present {
			return "", domain.FailedResultAt(domain.ReasonValidation, idx)
		}
		ph, ok := strField(obj, "payload_hash")
		if !ok || !cryptoinfra.IsHexDigest(ph) {
			return "", domain.FailedResultAt(domain.ReasonValidation, idx)
		}
		prevStored, ok := strField(obj, "prev_hash")
		if !ok || !cryptoinfra.IsHexDigest(prevStored) {
			return "", domain.FailedResultAt(domain.ReasonValidation, idx)
		}
		ch, ok := strField(obj, "chain_hash")
		if !ok || !cryptoinfra.IsHexDigest(ch) {
			return "", domain.FailedResultAt(domain.ReasonValidation, idx)
		}

		// A missing sequence k shifts entry k+1 into position k, so the
		// break is reported exactly where the gap is.
		if seq != idx {
			return "", domain.FailedResultAt(domain.ReasonChainBreak, idx)
		}

		canonical, err := cryptoinfra.Canonicalize(payload)
		if err != nil {
			return "", domain.FailedResultAt(domain.ReasonValidation, idx)
		}
		if cryptoinfra.DigestHex(canonical) != ph {
			return "", domain.FailedResultAt(domain.ReasonHashMismatch, idx)
		}
		if prevStored != prev {
			return "", domain.FailedResultAt(domain.ReasonChainBreak, idx)
		}
		recomputed, err := chainHash(prevStored, ph)
		if err != nil || recomputed != ch {
			return "", domain.FailedResultAt(domain.ReasonChainBreak, idx)
		}
		prev = ch
	}
	return prev, domain.VerifiedResult()
}

// checkEntryHashes is the structural half of assertion verification:
// payload hash then chain-hash recompute for a single entry.
func checkEntryHashes(entry map[string]any, payload any) domain.VerifyResult {
	ph, ok := strField(entry, "payload_hash")
	if !ok || !cryptoinfra.IsHexDigest(ph) {
		return domain.FailedResult(domain.ReasonValidation)
	}
	prev, ok := strField(entry, "prev_hash")
	if !ok || !cryptoinfra.IsHexDigest(prev) {
		return domain.FailedResult(domain.ReasonValidation)
	}
	ch, ok := strField(entry, "chain_hash")
	if !ok || !cryptoinfra.IsHexDigest(ch) {
		return domain.FailedResult(domain.ReasonValidation)
	}

	canonical, err := cryptoinfra.Canonicalize(payload)
	if err != nil {
		return domain.FailedResult(domain.ReasonValidation)
	}
	if cryptoinfra.DigestHex(canonical) != ph {
		return domain.FailedResult(domain.ReasonHashMismatch)
	}
	recomputed, err := chainHash(prev, ph)
	if err != nil || recomputed != ch {
		return domain.FailedResult(domain.ReasonChainBreak)
	}
	return domain.VerifiedResult()
}
