package usecase

import (
	"fmt"

	"consentledger/internal/domain"
	cryptoinfra "consentledger/internal/infra/crypto"
)

// MaxIdempotencyKeyBytes caps client-supplied idempotency keys. The limit is
// in bytes, not runes.
const MaxIdempotencyKeyBytes = 255

// ValidateIdempotencyKey enforces the key constraints in a fixed order:
// oversize first, then charset, then empty. Keys are limited to a printable
// ASCII allow-list so they are safe in logs, headers, and index columns.
func ValidateIdempotencyKey(key string) error {
	if len(key) > MaxIdempotencyKeyBytes {
		return fmt.Errorf("%w: key exceeds %d bytes", domain.ErrInvalidIdempotencyKey, MaxIdempotencyKeyBytes)
	}
	for i := 0; i < len(key); i++ {
		if !allowedKeyByte(key[i]) {
			return fmt.Errorf("%w: disallowed character at position %d", domain.ErrInvalidIdempotencyKey, i)
		}
	}
	if key == "" {
		return fmt.Errorf("%w: key is empty", domain.ErrInvalidIdempotencyKey)
	}
	return nil
}

func allowedKeyByte(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', ':', '+', '=', '@':
		return true
	}
	return false
}

// RequestHash fingerprints a write request so a replayed key can be checked
// against the request it originally committed. The body is canonicalized
// first so formatting differences do not defeat replay detection.
func RequestHash(method, path string, body []byte) (string, error) {
	canonical := []byte{}
	if len(body) > 0 {
		var err error
		canonical, err = cryptoinfra.CanonicalizeJSON(body)
		if err != nil {
			return "", fmt.Errorf("canonicalize request body: %w", err)
		}
	}
	return cryptoinfra.DigestString(method + "|" + path + "|" + string(canonical)), nil
}
