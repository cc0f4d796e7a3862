package usecase

import (
	"context"
	"fmt"
	"time"

	"consentledger/internal/domain"
)

// SystemEvent is one security-relevant occurrence recorded to the global
// system ledger: verification failures, revocations, anchor publications.
type SystemEvent struct {
	EventType    string `json:"event_type"`
	TenantID     string `json:"tenant_id"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	PayloadHash  string `json:"payload_hash"`
}

// SystemExport is the offline-verifiable artifact for the system ledger.
// LastChainHash is nil for an empty ledger.
type SystemExport struct {
	Version       int             `json:"version"`
	GeneratedAt   string          `json:"generated_at"`
	EventCount    int             `json:"event_count"`
	LastChainHash *string         `json:"last_chain_hash"`
	Entries       []ExportedEntry `json:"entries"`
}

// SystemEvents records telemetry to the system ledger and exports it.
type SystemEvents struct {
	Appender *Appender
	Store    LedgerStore
	Clock    Clock
}

func NewSystemEvents(appender *Appender, store LedgerStore, clock Clock) *SystemEvents {
	if clock == nil {
		clock = time.Now
	}
	return &SystemEvents{Appender: appender, Store: store, Clock: clock}
}

// Record appends one event. With failOpen set, a storage failure is
// swallowed so telemetry cannot take down the write path it observes; the
// caller logs the dropped event instead.
func (s *SystemEvents) Record(ctx context.Context, ev SystemEvent, failOpen bool) error {
	_, err := s.Appender.Append(ctx, domain.SystemLedgerID, ev)
	if err != nil && failOpen {
		return nil
	}
	if err != nil {
		return fmt.Errorf("record system event: %w", err)
	}
	return nil
}

// Export reads the whole system ledger into its artifact form.
func (s *SystemEvents) Export(ctx context.Context) (SystemExport, error) {
	entries, err := s.Store.ReadAll(ctx, domain.SystemLedgerID)
	if err != nil {
		return SystemExport{}, fmt.Errorf("read system ledger: %w", err)
	}
	export := SystemExport{
		Version:     domain.ExportVersion,
		GeneratedAt: s.Clock().UTC().Format(time.RFC3339),
		EventCount:  len(entries),
		Entries:     exportEntries(entries),
	}
	if len(entries) > 0 {
		last := entries[len(entries)-1].ChainHash
		export.LastChainHash = &last
	}
	return export, nil
}
