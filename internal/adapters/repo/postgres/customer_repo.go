package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phenrril/pdvhub/internal/domain"
)

type CustomerRepo struct{ db *gorm.DB }

func NewCustomerRepo(db *gorm.DB) *CustomerRepo { return &CustomerRepo{db: db} }

// Apply upserts a customer by id with partial-update semantics: only fields
// present in the payload overwrite stored columns, absent fields are left
// untouched rather than nulled.
func (r *CustomerRepo) Apply(ctx context.Context, tenantID, id uuid.UUID, ch domain.CustomerChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Customer
		err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c := domain.Customer{ID: id, TenantID: tenantID, Active: true}
			if ch.Name != nil {
				c.Name = strings.TrimSpace(*ch.Name)
			}
			if c.Name == "" {
				return domain.InvalidPayloadf("customer name is required")
			}
			if ch.Document != nil {
				c.Document = *ch.Document
			}
			if ch.Phone != nil {
				c.Phone = *ch.Phone
			}
			if ch.Address != nil {
				c.Address = *ch.Address
			}
			if ch.Active != nil {
				c.Active = *ch.Active
			}
			return tx.Create(&c).Error
		}
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if ch.Name != nil {
			name := strings.TrimSpace(*ch.Name)
			if name == "" {
				return domain.InvalidPayloadf("customer name cannot be blank")
			}
			updates["name"] = name
		}
		if ch.Document != nil {
			updates["document"] = *ch.Document
		}
		if ch.Phone != nil {
			updates["phone"] = *ch.Phone
		}
		if ch.Address != nil {
			updates["address"] = *ch.Address
		}
		if ch.Active != nil {
			updates["active"] = *ch.Active
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&domain.Customer{}).
			Where("tenant_id = ? AND id = ?", tenantID, id).
			Updates(updates).Error
	})
}

func (r *CustomerRepo) List(ctx context.Context, tenantID uuid.UUID) ([]domain.Customer, error) {
	var list []domain.Customer
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Order("name asc").
		Find(&list).Error
	return list, err
}

func (r *CustomerRepo) Feed(ctx context.Context, tenantID uuid.UUID, cur domain.TypeCursor, limit int) ([]domain.Customer, error) {
	var list []domain.Customer
	q := afterCursor(r.db.WithContext(ctx).Where("tenant_id = ?", tenantID), cur)
	err := q.Order("updated_at asc, id asc").Limit(limit).Find(&list).Error
	return list, err
}
