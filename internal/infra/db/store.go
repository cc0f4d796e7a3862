package db

import (
	"context"
	"errors"
	"fmt"

	"consentledger/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var errDBUnavailable = errors.New("database unavailable")

type Store struct {
	DB *gorm.DB
}

// NewStore connects to postgres, or returns a nil-DB store when no DSN is
// configured so the caller can fall back to in-memory persistence.
func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if cfg.AutoCreateSchema {
		if err := gdb.AutoMigrate(
			&TenantModel{},
			&LedgerEntryModel{},
			&LedgerSeqModel{},
			&IdentityKeyModel{},
			&IdempotencyKeyModel{},
		); err != nil {
			return nil, fmt.Errorf("auto-create schema: %w", err)
		}
	}

	return &Store{DB: gdb}, nil
}

func (s *Store) Available() bool {
	return s != nil && s.DB != nil
}

// MigrationHead reports the latest applied migration version, empty when the
// tracking table does not exist yet.
func (s *Store) MigrationHead(ctx context.Context) (string, error) {
	if !s.Available() {
		return "", nil
	}
	var exists bool
	if err := s.DB.WithContext(ctx).Raw(
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'schema_migrations')",
	).Scan(&exists).Error; err != nil {
		return "", err
	}
	if !exists {
		return "", nil
	}
	var head string
	if err := s.DB.WithContext(ctx).Raw(
		"SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1",
	).Scan(&head).Error; err != nil {
		return "", err
	}
	return head, nil
}
