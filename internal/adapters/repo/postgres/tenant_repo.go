package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/phenrril/pdvhub/internal/domain"
)

type TenantRepo struct{ db *gorm.DB }

func NewTenantRepo(db *gorm.DB) *TenantRepo { return &TenantRepo{db: db} }

func (r *TenantRepo) FirstActive(ctx context.Context) (*domain.Tenant, error) {
	var t domain.Tenant
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at asc").
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TenantRepo) EnsureDefault(ctx context.Context, id uuid.UUID, name, businessType string) error {
	if id == uuid.Nil {
		// no pinned id: keep whatever tenant already exists, otherwise
		// bootstrap a fresh one
		var n int64
		if err := r.db.WithContext(ctx).Model(&domain.Tenant{}).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		id = uuid.New()
	}
	t := domain.Tenant{ID: id, Name: name, BusinessType: businessType, Active: true}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&t).Error
}
