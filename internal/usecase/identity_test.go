package usecase

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"testing"

	"consentledger/internal/domain"
	cryptoinfra "consentledger/internal/infra/crypto"
)

func testKeyPair(t *testing.T, seedByte string) (string, ed25519.PrivateKey) {
	t.Helper()
	priv, err := cryptoinfra.ParsePrivateSeedHex(strings.Repeat(seedByte, 32))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return hex.EncodeToString(priv[32:]), priv
}

func newIdentityService() (*Identity, *stubRegistry, *stubLedger) {
	registry := newStubRegistry()
	store := newStubLedger()
	svc := NewIdentity(registry, NewAppender(store, testClock), testClock)
	return svc, registry, store
}

func TestRegisterAppendsToIdentityLedger(t *testing.T) {
	svc, _, store := newIdentityService()
	pub, _ := testKeyPair(t, "11")
	ctx := context.Background()

	key, err := svc.Register(ctx, "t1", "root", pub)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !key.Root() {
		t.Fatal("registered key should be a root")
	}
	fp, _ := cryptoinfra.Fingerprint(pub)
	if key.Fingerprint != fp {
		t.Fatalf("fingerprint %s, want %s", key.Fingerprint, fp)
	}

	entries, err := store.ReadAll(ctx, domain.IdentityLedgerID("t1"))
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("identity ledger has %d entries, want 1", len(entries))
	}
}

func TestRegisterRejectsDuplicateAndBadKey(t *testing.T) {
	svc, _, _ := newIdentityService()
	pub, _ := testKeyPair(t, "11")
	ctx := context.Background()

	if _, err := svc.Register(ctx, "t1", "root", pub); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "t1", "root", pub); !errors.Is(err, domain.ErrIdentityExists) {
		t.Fatalf("expected exists error, got %v", err)
	}
	if _, err := svc.Register(ctx, "t1", "bad", "zz"); !errors.Is(err, domain.ErrInvalidArtifact) {
		t.Fatalf("expected invalid key error, got %v", err)
	}
}

func TestDelegateVerifiesParentSignature(t *testing.T) {
	svc, _, _ := newIdentityService()
	parentPub, parentPriv := testKeyPair(t, "11")
	childPub, _ := testKeyPair(t, "22")
	ctx := context.Background()

	if _, err := svc.Register(ctx, "t1", "root", parentPub); err != nil {
		t.Fatalf("register: %v", err)
	}

	parentFP, _ := cryptoinfra.Fingerprint(parentPub)
	childFP, _ := cryptoinfra.Fingerprint(childPub)
	msg, err := DelegationMessage(parentFP, childFP)
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	sig := cryptoinfra.SignHex(parentPriv, msg)

	child, err := svc.Delegate(ctx, "t1", "root", "child", childPub, sig)
	if err != nil {
		t.Fatalf("delegate: %v", err)
	}
	if child.DelegatedFrom != "root" {
		t.Fatalf("delegated_from %q", child.DelegatedFrom)
	}

	// A signature over the wrong message is refused.
	badSig := cryptoinfra.SignHex(parentPriv, []byte("other"))
	if _, err := svc.Delegate(ctx, "t1", "root", "child2", childPub, badSig); !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Fatalf("expected signature error, got %v", err)
	}
}

func TestResolveWalksDelegationChain(t *testing.T) {
	svc, _, _ := newIdentityService()
	parentPub, parentPriv := testKeyPair(t, "11")
	childPub, _ := testKeyPair(t, "22")
	ctx := context.Background()

	if _, err := svc.Register(ctx, "t1", "root", parentPub); err != nil {
		t.Fatalf("register: %v", err)
	}
	parentFP, _ := cryptoinfra.Fingerprint(parentPub)
	childFP, _ := cryptoinfra.Fingerprint(childPub)
	msg, _ := DelegationMessage(parentFP, childFP)
	if _, err := svc.Delegate(ctx, "t1", "root", "child", childPub, cryptoinfra.SignHex(parentPriv, msg)); err != nil {
		t.Fatalf("delegate: %v", err)
	}

	leaf, err := svc.Resolve(ctx, "t1", "child")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if leaf.IdentityID != "child" {
		t.Fatalf("resolved %q", leaf.IdentityID)
	}
}

func TestResolveFailsOnRevokedParent(t *testing.T) {
	svc, _, _ := newIdentityService()
	parentPub, parentPriv := testKeyPair(t, "11")
	childPub, _ := testKeyPair(t, "22")
	ctx := context.Background()

	if _, err := svc.Register(ctx, "t1", "root", parentPub); err != nil {
		t.Fatalf("register: %v", err)
	}
	parentFP, _ := cryptoinfra.Fingerprint(parentPub)
	childFP, _ := cryptoinfra.Fingerprint(childPub)
	msg, _ := DelegationMessage(parentFP, childFP)
	if _, err := svc.Delegate(ctx, "t1", "root", "child", childPub, cryptoinfra.SignHex(parentPriv, msg)); err != nil {
		t.Fatalf("delegate: %v", err)
	}
	if err := svc.Revoke(ctx, "t1", "root"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if _, err := svc.Resolve(ctx, "t1", "child"); !errors.Is(err, domain.ErrIdentityRevoked) {
		t.Fatalf("expected revoked error, got %v", err)
	}
	// Revocation is forward-only and not repeatable.
	if err := svc.Revoke(ctx, "t1", "root"); !errors.Is(err, domain.ErrIdentityRevoked) {
		t.Fatalf("expected revoked error on double revoke, got %v", err)
	}
}

func TestResolveDetectsCycle(t *testing.T) {
	registry := newStubRegistry()
	registry.put(domain.IdentityKey{TenantID: "t1", IdentityID: "a", DelegatedFrom: "b"})
	registry.put(domain.IdentityKey{TenantID: "t1", IdentityID: "b", DelegatedFrom: "a"})
	svc := NewIdentity(registry, NewAppender(newStubLedger(), testClock), testClock)

	if _, err := svc.Resolve(context.Background(), "t1", "a"); !errors.Is(err, domain.ErrIdentityCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestResolveEnforcesDepthCap(t *testing.T) {
	registry := newStubRegistry()
	for i := 0; i <= domain.MaxDelegationDepth+1; i++ {
		key := domain.IdentityKey{TenantID: "t1", IdentityID: idName(i)}
		if i > 0 {
			key.DelegatedFrom = idName(i - 1)
		}
		registry.put(key)
	}
	svc := NewIdentity(registry, NewAppender(newStubLedger(), testClock), testClock)

	if _, err := svc.Resolve(context.Background(), "t1", idName(domain.MaxDelegationDepth+1)); !errors.Is(err, domain.ErrIdentityCycle) {
		t.Fatalf("expected depth cap error, got %v", err)
	}
}

func idName(i int) string {
	return "id-" + strconv.Itoa(i)
}
