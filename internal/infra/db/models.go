package db

import "time"

type TenantModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

type LedgerEntryModel struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	LedgerID    string    `gorm:"uniqueIndex:idx_ledger_seq;not null"`
	Seq         int64     `gorm:"uniqueIndex:idx_ledger_seq;not null"`
	PayloadJSON []byte    `gorm:"type:jsonb;not null"`
	PayloadHash string    `gorm:"not null"`
	PrevHash    string    `gorm:"not null"`
	ChainHash   string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

// LedgerSeqModel claims sequence numbers under row locks so concurrent
// appenders to the same ledger serialize.
type LedgerSeqModel struct {
	LedgerID string `gorm:"primaryKey"`
	Seq      int64  `gorm:"not null"`
}

type IdentityKeyModel struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	TenantID      string `gorm:"uniqueIndex:idx_tenant_identity;not null"`
	IdentityID    string `gorm:"uniqueIndex:idx_tenant_identity;not null"`
	PublicKey     string `gorm:"not null"`
	Fingerprint   string `gorm:"index;not null"`
	DelegatedFrom *string
	RevokedAt     *time.Time
	CreatedAt     time.Time `gorm:"not null"`
}

type IdempotencyKeyModel struct {
	ID           string    `gorm:"type:uuid;primaryKey"`
	TenantID     string    `gorm:"uniqueIndex:idx_tenant_idem_key;not null"`
	Key          string    `gorm:"uniqueIndex:idx_tenant_idem_key;not null"`
	RequestHash  string    `gorm:"not null"`
	ResponseJSON []byte    `gorm:"type:jsonb;not null"`
	StatusCode   int       `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}
