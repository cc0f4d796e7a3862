package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"consentledger/internal/domain"
)

func newLineage(signer *Signer) (*Lineage, *stubLedger) {
	store := newStubLedger()
	return &Lineage{Appender: NewAppender(store, testClock), Store: store, Signer: signer}, store
}

func TestAppendEventRejectsUnknownAction(t *testing.T) {
	svc, _ := newLineage(nil)
	_, err := svc.AppendEvent(context.Background(), "t1", "c1", "deleted", nil)
	if !errors.Is(err, domain.ErrInvalidArtifact) {
		t.Fatalf("expected invalid action error, got %v", err)
	}
}

func TestAppendEventBuildsLifecyclePayload(t *testing.T) {
	svc, _ := newLineage(nil)
	entry, err := svc.AppendEvent(context.Background(), "t1", "c1", LineageActionCreated, json.RawMessage(`{"purpose":"email"}`))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if entry.LedgerID != "consent/t1/c1" {
		t.Fatalf("ledger id %q", entry.LedgerID)
	}
	want := `{"action":"created","consent_id":"c1","data":{"purpose":"email"},"tenant_id":"t1"}`
	if string(entry.Payload) != want {
		t.Fatalf("payload %s, want %s", entry.Payload, want)
	}
}

func TestAppendEventNilDataStoredAsNull(t *testing.T) {
	svc, _ := newLineage(nil)
	entry, err := svc.AppendEvent(context.Background(), "t1", "c1", LineageActionNoop, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	want := `{"action":"noop","consent_id":"c1","data":null,"tenant_id":"t1"}`
	if string(entry.Payload) != want {
		t.Fatalf("payload %s, want %s", entry.Payload, want)
	}
}

func TestExportEmptyLedgerIsGenesisAnchored(t *testing.T) {
	svc, _ := newLineage(nil)
	export, err := svc.Export(context.Background(), "t1", "missing")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(export.Entries) != 0 {
		t.Fatalf("expected empty entries, got %d", len(export.Entries))
	}
	if export.TenantAnchor != TenantAnchor("t1", domain.GenesisHash) {
		t.Fatal("empty export not anchored at genesis")
	}
	if export.Signature != "" || export.SignerIdentityID != "" {
		t.Fatal("unsigned export carries signer fields")
	}
}

func TestExportCarriesHeaderAndAnchor(t *testing.T) {
	svc, _ := newLineage(nil)
	ctx := context.Background()
	if _, err := svc.AppendEvent(ctx, "t1", "c1", LineageActionCreated, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	last, err := svc.AppendEvent(ctx, "t1", "c1", LineageActionUpdated, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	export, err := svc.Export(ctx, "t1", "c1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if export.Version != domain.ExportVersion || export.Algorithm != domain.LedgerAlgorithm || export.Canonicalization != domain.LedgerCanonicalization {
		t.Fatalf("header fields wrong: %+v", export)
	}
	if export.LedgerID != "consent/t1/c1" || len(export.Entries) != 2 {
		t.Fatalf("body fields wrong: %+v", export)
	}
	if export.TenantAnchor != TenantAnchor("t1", last.ChainHash) {
		t.Fatal("tenant anchor does not bind the last chain hash")
	}
}

func TestSignedExportVerifiesOffline(t *testing.T) {
	signer, err := NewSigner("exporter", "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	svc, _ := newLineage(signer)
	ctx := context.Background()
	if _, err := svc.AppendEvent(ctx, "t1", "c1", LineageActionCreated, json.RawMessage(`{"scope":"analytics"}`)); err != nil {
		t.Fatalf("append: %v", err)
	}

	export, err := svc.Export(ctx, "t1", "c1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if export.SignerIdentityID != "exporter" || export.Signature == "" {
		t.Fatalf("signer fields missing: %+v", export)
	}

	raw, err := json.Marshal(export)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	result := NewVerifier().VerifyLineageExport(raw)
	if !result.Verified {
		t.Fatalf("signed export failed verification: %+v", result)
	}
}
