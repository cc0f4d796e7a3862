package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// DigestHex is the single hash primitive: lowercase hex SHA-256, 64
// characters. Every hash field across ledgers, anchors, and proofs uses it;
// mixing digest algorithms across ledger kinds is a protocol break.
func DigestHex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}

func DigestString(input string) string {
	return DigestHex([]byte(input))
}

// IsHexDigest reports whether s is a well-formed digest: exactly 64
// lowercase hex characters.
func IsHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
