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

type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Create(ctx context.Context, name string) (string, error) {
	if r.db == nil {
		return "", errDBUnavailable
	}
	model := TenantModel{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return "", fmt.Errorf("tenant %q already exists", name)
		}
		return "", err
	}
	return model.ID, nil
}

func (r *TenantRepository) GetByID(ctx context.Context, tenantID string) (TenantModel, error) {
	if r.db == nil {
		return TenantModel{}, errDBUnavailable
	}
	var model TenantModel
	err := r.db.WithContext(ctx).Where("id = ?", tenantID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return TenantModel{}, fmt.Errorf("%w: tenant %s", domain.ErrNotFound, tenantID)
	}
	return model, err
}
