package usecase

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	cryptoinfra "consentledger/internal/infra/crypto"
)

// Signer holds the service signing identity. It signs canonical bytes and
// exposes the public material exports embed so offline verifiers need no
// registry access.
type Signer struct {
	IdentityID   string
	PublicKeyHex string
	Fingerprint  string

	priv ed25519.PrivateKey
}

// NewSigner builds a signer from a 32-byte seed in hex form, the shape
// signing key material arrives in from configuration.
func NewSigner(identityID, seedHex string) (*Signer, error) {
	priv, err := cryptoinfra.ParsePrivateSeedHex(seedHex)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	pubHex := hex.EncodeToString(priv[32:])
	fp, err := cryptoinfra.Fingerprint(pubHex)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	return &Signer{
		IdentityID:   identityID,
		PublicKeyHex: pubHex,
		Fingerprint:  fp,
		priv:         priv,
	}, nil
}

func (s *Signer) Sign(message []byte) string {
	return cryptoinfra.SignHex(s.priv, message)
}
