package usecase

import (
	"fmt"

	cryptoinfra "consentledger/internal/infra/crypto"
)

// payloadHash canonicalizes the payload and hashes the canonical bytes.
// Equivalent payloads always produce the same hash regardless of key order
// or whitespace in the submitted form.
func payloadHash(payload any) (string, []byte, error) {
	canonical, err := cryptoinfra.Canonicalize(payload)
	if err != nil {
		return "", nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return cryptoinfra.DigestHex(canonical), canonical, nil
}

// chainHash derives an entry's chain hash from its payload hash and the
// previous entry's chain hash. The pair is itself canonicalized so the link
// format is a stable, verifiable JSON object rather than ad-hoc
// concatenation.
func chainHash(prevHash, payloadHash string) (string, error) {
	link, err := cryptoinfra.Canonicalize(map[string]any{
		"payload_hash": payloadHash,
		"prev_hash":    prevHash,
	})
	if err != nil {
		return "", fmt.Errorf("canonicalize chain link: %w", err)
	}
	return cryptoinfra.DigestHex(link), nil
}
