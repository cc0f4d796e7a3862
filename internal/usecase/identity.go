package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"consentledger/internal/domain"
	cryptoinfra "consentledger/internal/infra/crypto"
)

const delegationType = "identity_delegation"

// DelegationMessage is the canonical byte string a parent identity signs to
// delegate to a child key. It binds both fingerprints so neither side of the
// delegation can be substituted after signing.
func DelegationMessage(parentFingerprint, childFingerprint string) ([]byte, error) {
	return cryptoinfra.Canonicalize(map[string]any{
		"child_fingerprint":  childFingerprint,
		"delegation_type":    delegationType,
		"parent_fingerprint": parentFingerprint,
	})
}

// Identity manages the per-tenant key registry. Every registration,
// delegation, and revocation is appended to the tenant's identity ledger in
// addition to the queryable registry row.
type Identity struct {
	Registry IdentityRegistry
	Appender *Appender
	Clock    Clock
}

func NewIdentity(registry IdentityRegistry, appender *Appender, clock Clock) *Identity {
	if clock == nil {
		clock = time.Now
	}
	return &Identity{Registry: registry, Appender: appender, Clock: clock}
}

// Register creates a root identity from its public key.
func (s *Identity) Register(ctx context.Context, tenantID, identityID, publicKeyHex string) (domain.IdentityKey, error) {
	return s.register(ctx, tenantID, identityID, publicKeyHex, "")
}

// Delegate registers childID as delegated from parentID. The caller holds
// the parent's private key and supplies signatureHex over
// DelegationMessage(parent, child); the parent chain must resolve cleanly
// before the child is accepted.
func (s *Identity) Delegate(ctx context.Context, tenantID, parentID, childID, childPublicKeyHex, signatureHex string) (domain.IdentityKey, error) {
	parent, err := s.Resolve(ctx, tenantID, parentID)
	if err != nil {
		return domain.IdentityKey{}, err
	}
	childFP, err := cryptoinfra.Fingerprint(childPublicKeyHex)
	if err != nil {
		return domain.IdentityKey{}, fmt.Errorf("%w: %s", domain.ErrInvalidArtifact, err)
	}
	msg, err := DelegationMessage(parent.Fingerprint, childFP)
	if err != nil {
		return domain.IdentityKey{}, err
	}
	if !cryptoinfra.VerifyHex(parent.PublicKey, msg, signatureHex) {
		return domain.IdentityKey{}, fmt.Errorf("%w: delegation signature does not verify against %s", domain.ErrSignatureInvalid, parentID)
	}
	return s.register(ctx, tenantID, childID, childPublicKeyHex, parentID)
}

func (s *Identity) register(ctx context.Context, tenantID, identityID, publicKeyHex, delegatedFrom string) (domain.IdentityKey, error) {
	fp, err := cryptoinfra.Fingerprint(publicKeyHex)
	if err != nil {
		return domain.IdentityKey{}, fmt.Errorf("%w: %s", domain.ErrInvalidArtifact, err)
	}
	if _, err := s.Registry.Get(ctx, tenantID, identityID); err == nil {
		return domain.IdentityKey{}, fmt.Errorf("%w: %s", domain.ErrIdentityExists, identityID)
	} else if !errors.Is(err, domain.ErrIdentityUnknown) {
		return domain.IdentityKey{}, err
	}

	key := domain.IdentityKey{
		IdentityID:    identityID,
		TenantID:      tenantID,
		PublicKey:     publicKeyHex,
		Fingerprint:   fp,
		DelegatedFrom: delegatedFrom,
		CreatedAt:     s.Clock().UTC(),
	}

	op := "register"
	if delegatedFrom != "" {
		op = "delegate"
	}
	payload := map[string]any{
		"op":          op,
		"tenant_id":   tenantID,
		"identity_id": identityID,
		"fingerprint": fp,
		"public_key":  publicKeyHex,
	}
	if delegatedFrom != "" {
		payload["delegated_from"] = delegatedFrom
	}
	if _, err := s.Appender.Append(ctx, domain.IdentityLedgerID(tenantID), payload); err != nil {
		return domain.IdentityKey{}, err
	}
	if err := s.Registry.Put(ctx, key); err != nil {
		return domain.IdentityKey{}, err
	}
	return key, nil
}

// Revoke marks an identity revoked and logs the revocation. Revocation is
// forward-only: signatures issued before the revocation stay valid, and a
// second revoke of the same identity fails rather than re-stamping.
func (s *Identity) Revoke(ctx context.Context, tenantID, identityID string) error {
	key, err := s.Registry.Get(ctx, tenantID, identityID)
	if err != nil {
		return err
	}
	if key.Revoked() {
		return fmt.Errorf("%w: %s", domain.ErrIdentityRevoked, identityID)
	}

	at := s.Clock().UTC()
	payload := map[string]any{
		"op":          "revoke",
		"tenant_id":   tenantID,
		"identity_id": identityID,
		"fingerprint": key.Fingerprint,
	}
	if _, err := s.Appender.Append(ctx, domain.IdentityLedgerID(tenantID), payload); err != nil {
		return err
	}
	return s.Registry.Revoke(ctx, tenantID, identityID, at)
}

// Resolve loads an identity and validates its delegation chain up to the
// root.
func (s *Identity) Resolve(ctx context.Context, tenantID, identityID string) (domain.IdentityKey, error) {
	return ResolveDelegationChain(func(id string) (domain.IdentityKey, bool) {
		key, err := s.Registry.Get(ctx, tenantID, id)
		if err != nil {
			return domain.IdentityKey{}, false
		}
		return key, true
	}, identityID)
}

// ResolveDelegationChain walks delegated_from links from identityID to a
// root, failing on an unknown link, a revoked link, a cycle, or a chain
// deeper than domain.MaxDelegationDepth. A chain that never reaches a root
// within the cap is treated as cycle-class. Returns the leaf identity.
func ResolveDelegationChain(get func(id string) (domain.IdentityKey, bool), identityID string) (domain.IdentityKey, error) {
	visited := map[string]bool{}
	var leaf domain.IdentityKey

	current := identityID
	for depth := 0; ; depth++ {
		if depth > domain.MaxDelegationDepth {
			return domain.IdentityKey{}, fmt.Errorf("%w: delegation chain for %s exceeds depth %d", domain.ErrIdentityCycle, identityID, domain.MaxDelegationDepth)
		}
		if visited[current] {
			return domain.IdentityKey{}, fmt.Errorf("%w: at %s", domain.ErrIdentityCycle, current)
		}
		visited[current] = true

		key, ok := get(current)
		if !ok {
			return domain.IdentityKey{}, fmt.Errorf("%w: %s", domain.ErrIdentityUnknown, current)
		}
		if key.Revoked() {
			return domain.IdentityKey{}, fmt.Errorf("%w: %s", domain.ErrIdentityRevoked, current)
		}
		if depth == 0 {
			leaf = key
		}
		if key.Root() {
			return leaf, nil
		}
		current = key.DelegatedFrom
	}
}
