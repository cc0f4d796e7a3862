package domain

import "time"

const SignatureAlgorithmEd25519 = "ed25519"

// MaxDelegationDepth bounds delegation-chain walks. The visited set already
// prevents unbounded cycles; the cap bounds adversarially long chains.
const MaxDelegationDepth = 32

// IdentityKey is one entry in the identity registry. DelegatedFrom is empty
// for a root identity. Revocation is forward-only: the row is never removed,
// RevokedAt is set exactly once.
type IdentityKey struct {
	IdentityID    string
	TenantID      string
	PublicKey     string // 32-byte ed25519 public key, lowercase hex
	Fingerprint   string // digest of the raw public key bytes
	DelegatedFrom string
	RevokedAt     *time.Time
	CreatedAt     time.Time
}

func (k IdentityKey) Revoked() bool {
	return k.RevokedAt != nil
}

func (k IdentityKey) Root() bool {
	return k.DelegatedFrom == ""
}
