package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"consentledger/internal/domain"
)

type IdempotencyRepository struct {
	db *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Lookup(ctx context.Context, tenantID, key string) (domain.IdempotencyRecord, bool, error) {
	if r.db == nil {
		return domain.IdempotencyRecord{}, false, errDBUnavailable
	}
	var model IdempotencyKeyModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND key = ?", tenantID, key).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return domain.IdempotencyRecord{}, false, err
	}
	return idempotencyRecordFromModel(model), true, nil
}

// Store inserts with ON CONFLICT DO NOTHING and reads back, so concurrent
// writers with the same key converge on whichever record committed first.
func (r *IdempotencyRepository) Store(ctx context.Context, rec domain.IdempotencyRecord) (domain.IdempotencyRecord, bool, error) {
	if r.db == nil {
		return domain.IdempotencyRecord{}, false, errDBUnavailable
	}
	model := IdempotencyKeyModel{
		ID:           uuid.NewString(),
		TenantID:     rec.TenantID,
		Key:          rec.Key,
		RequestHash:  rec.RequestHash,
		ResponseJSON: []byte(rec.ResponseJSON),
		StatusCode:   rec.StatusCode,
		CreatedAt:    rec.CreatedAt.UTC(),
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "key"}},
			DoNothing: true,
		}).
		Create(&model)
	if res.Error != nil {
		return domain.IdempotencyRecord{}, false, res.Error
	}
	if res.RowsAffected == 1 {
		return rec, true, nil
	}
	stored, found, err := r.Lookup(ctx, rec.TenantID, rec.Key)
	if err != nil {
		return domain.IdempotencyRecord{}, false, err
	}
	if !found {
		return domain.IdempotencyRecord{}, false, fmt.Errorf("idempotency record for %s vanished after conflict", rec.Key)
	}
	return stored, false, nil
}

func idempotencyRecordFromModel(model IdempotencyKeyModel) domain.IdempotencyRecord {
	return domain.IdempotencyRecord{
		TenantID:     model.TenantID,
		Key:          model.Key,
		RequestHash:  model.RequestHash,
		ResponseJSON: model.ResponseJSON,
		StatusCode:   model.StatusCode,
		CreatedAt:    model.CreatedAt.UTC(),
	}
}
