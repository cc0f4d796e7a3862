package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"consentledger/internal/domain"
)

type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) Get(ctx context.Context, tenantID, identityID string) (domain.IdentityKey, error) {
	if r.db == nil {
		return domain.IdentityKey{}, errDBUnavailable
	}
	var model IdentityKeyModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND identity_id = ?", tenantID, identityID).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.IdentityKey{}, fmt.Errorf("%w: %s", domain.ErrIdentityUnknown, identityID)
	}
	if err != nil {
		return domain.IdentityKey{}, err
	}
	return identityKeyFromModel(model), nil
}

func (r *IdentityRepository) Put(ctx context.Context, key domain.IdentityKey) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := IdentityKeyModel{
		ID:          uuid.NewString(),
		TenantID:    key.TenantID,
		IdentityID:  key.IdentityID,
		PublicKey:   key.PublicKey,
		Fingerprint: key.Fingerprint,
		RevokedAt:   key.RevokedAt,
		CreatedAt:   key.CreatedAt.UTC(),
	}
	if key.DelegatedFrom != "" {
		model.DelegatedFrom = &key.DelegatedFrom
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", domain.ErrIdentityExists, key.IdentityID)
		}
		return err
	}
	return nil
}

func (r *IdentityRepository) Revoke(ctx context.Context, tenantID, identityID string, at time.Time) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).
		Model(&IdentityKeyModel{}).
		Where("tenant_id = ? AND identity_id = ? AND revoked_at IS NULL", tenantID, identityID).
		Update("revoked_at", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&IdentityKeyModel{}).
			Where("tenant_id = ? AND identity_id = ?", tenantID, identityID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: %s", domain.ErrIdentityUnknown, identityID)
		}
	}
	return nil
}

func (r *IdentityRepository) List(ctx context.Context, tenantID string) ([]domain.IdentityKey, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []IdentityKeyModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("identity_id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.IdentityKey, 0, len(models))
	for _, model := range models {
		out = append(out, identityKeyFromModel(model))
	}
	return out, nil
}

func identityKeyFromModel(model IdentityKeyModel) domain.IdentityKey {
	key := domain.IdentityKey{
		IdentityID:  model.IdentityID,
		TenantID:    model.TenantID,
		PublicKey:   model.PublicKey,
		Fingerprint: model.Fingerprint,
		RevokedAt:   model.RevokedAt,
		CreatedAt:   model.CreatedAt.UTC(),
	}
	if model.DelegatedFrom != nil {
		key.DelegatedFrom = *model.DelegatedFrom
	}
	return key
}
