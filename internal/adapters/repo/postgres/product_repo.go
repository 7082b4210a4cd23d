package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phenrril/pdvhub/internal/domain"
)

type ProductRepo struct{ db *gorm.DB }

func NewProductRepo(db *gorm.DB) *ProductRepo { return &ProductRepo{db: db} }

func (r *ProductRepo) Resolve(ctx context.Context, tenantID uuid.UUID, idOrCode string) (*domain.Product, error) {
	return resolveProduct(r.db.WithContext(ctx), tenantID, idOrCode, "")
}

// resolveProduct looks a product up by primary id. When the id does not
// parse as a UUID it is treated as the tenant-scoped natural code; an
// explicit code argument takes precedence over that fallback.
func resolveProduct(tx *gorm.DB, tenantID uuid.UUID, idStr, code string) (*domain.Product, error) {
	if pid, err := uuid.Parse(strings.TrimSpace(idStr)); err == nil {
		var p domain.Product
		err := tx.Where("tenant_id = ? AND id = ?", tenantID, pid).First(&p).Error
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, domain.ErrNotFound
	}

	lookup := strings.TrimSpace(code)
	if lookup == "" {
		lookup = strings.TrimSpace(idStr)
	}
	if lookup == "" {
		return nil, domain.ErrNotFound
	}
	var p domain.Product
	if err := tx.Where("tenant_id = ? AND code = ?", tenantID, lookup).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepo) Upsert(ctx context.Context, tenantID uuid.UUID, in domain.ProductUpsert) (*domain.Product, error) {
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return nil, errors.New("code and name are required")
	}

	var out *domain.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Product
		err := tx.Where("tenant_id = ? AND code = ?", tenantID, code).First(&p).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			p = domain.Product{
				ID:          uuid.New(),
				TenantID:    tenantID,
				Code:        code,
				Name:        name,
				Description: in.Description,
				CostPrice:   in.CostPrice,
				SalePrice:   in.SalePrice,
				Unit:        "un",
				Active:      true,
			}
			if in.Stock != nil {
				p.Stock = *in.Stock
			}
			if in.MinStock != nil {
				p.MinStock = *in.MinStock
			}
			if in.SoldByWeight != nil {
				p.SoldByWeight = *in.SoldByWeight
			}
			if in.Unit != "" {
				p.Unit = in.Unit
			}
			if in.VATRate != nil {
				p.VATRate = *in.VATRate
			}
			if in.Active != nil {
				p.Active = *in.Active
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			updates := map[string]any{
				"name":        name,
				"description": in.Description,
				"cost_price":  in.CostPrice,
				"sale_price":  in.SalePrice,
			}
			if in.Stock != nil {
				updates["stock"] = *in.Stock
			}
			if in.MinStock != nil {
				updates["min_stock"] = *in.MinStock
			}
			if in.SoldByWeight != nil {
				updates["sold_by_weight"] = *in.SoldByWeight
			}
			if in.Unit != "" {
				updates["unit"] = in.Unit
			}
			if in.VATRate != nil {
				updates["vat_rate"] = *in.VATRate
			}
			if in.Active != nil {
				updates["active"] = *in.Active
			}
			if err := tx.Model(&domain.Product{}).
				Where("tenant_id = ? AND id = ?", tenantID, p.ID).
				Updates(updates).Error; err != nil {
				return err
			}
			if err := tx.Where("tenant_id = ? AND id = ?", tenantID, p.ID).First(&p).Error; err != nil {
				return err
			}
		}
		out = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ProductRepo) List(ctx context.Context, tenantID uuid.UUID, f domain.ProductFilter) ([]domain.Product, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Product{}).Where("tenant_id = ?", tenantID)
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}
	if f.Query != "" {
		like := "%" + strings.TrimSpace(f.Query) + "%"
		q = q.Where("LOWER(name) LIKE LOWER(?) OR LOWER(code) LIKE LOWER(?)", like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 50
	}
	var list []domain.Product
	offset := (f.Page - 1) * f.PageSize
	if err := q.Order("name asc").Offset(offset).Limit(f.PageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// productRefs loads the snapshot fields for a set of product ids in one
// query. Missing ids simply have no entry; feed rows keep a nil snapshot
// instead of being dropped.
func productRefs(tx *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*domain.ProductRef, error) {
	refs := make(map[uuid.UUID]*domain.ProductRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}
	var products []domain.Product
	if err := tx.Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&products).Error; err != nil {
		return nil, err
	}
	for i := range products {
		refs[products[i].ID] = products[i].Ref()
	}
	return refs, nil
}
