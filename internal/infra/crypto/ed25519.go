package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
)

// ParsePublicKeyHex decodes a 32-byte ed25519 public key from its 64-char
// hex wire form.
func ParsePublicKeyHex(publicKeyHex string) (ed25519.PublicKey, error) {
	if len(publicKeyHex) != 64 {
		return nil, errors.New("public key must be 32 bytes encoded as 64 hex characters")
	}
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("public key must be valid hex: %w", err)
	}
	return ed25519.PublicKey(raw), nil
}

// ParsePrivateSeedHex derives an ed25519 private key from a 32-byte seed in
// hex form, the format signing key material is configured in.
func ParsePrivateSeedHex(seedHex string) (ed25519.PrivateKey, error) {
	if len(seedHex) != 64 {
		return nil, errors.New("private key seed must be 32 bytes encoded as 64 hex characters")
	}
	raw, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("private key seed must be valid hex: %w", err)
	}
	return ed25519.NewKeyFromSeed(raw), nil
}

func SignHex(priv ed25519.PrivateKey, message []byte) string {
	return hex.EncodeToString(ed25519.Sign(priv, message))
}

// VerifyHex checks signatureHex over message against a hex-encoded public
// key. Any malformed input verifies false rather than erroring; callers map
// false to a signature-class failure.
func VerifyHex(publicKeyHex string, message []byte, signatureHex string) bool {
	pub, err := ParsePublicKeyHex(publicKeyHex)
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, message, sig)
}

// Fingerprint is the digest of the raw public key bytes, used as the stable
// identity of a key independent of registry row IDs.
func Fingerprint(publicKeyHex string) (string, error) {
	pub, err := ParsePublicKeyHex(publicKeyHex)
	if err != nil {
		return "", err
	}
	return DigestHex(pub), nil
}
