package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_products_tenant_code"`
	Code         string    `gorm:"size:50;uniqueIndex:idx_products_tenant_code"`
	Name         string    `gorm:"size:200;not null"`
	Description  string    `gorm:"size:500"`
	CostPrice    float64   `gorm:"type:decimal(12,2);default:0"`
	SalePrice    float64   `gorm:"type:decimal(12,2);not null"`
	Stock        float64   `gorm:"type:decimal(12,3);default:0"`
	MinStock     float64   `gorm:"type:decimal(12,3);default:0"`
	SoldByWeight bool      `gorm:"default:false"`
	Unit         string    `gorm:"size:10;default:un"`
	VATRate      float64   `gorm:"type:decimal(5,2);default:0"`
	Active       bool      `gorm:"default:true;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProductRef is the denormalized snapshot embedded in feed line items so the
// client can render an order without a follow-up product fetch.
type ProductRef struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	SalePrice float64 `json:"sale_price"`
}

func (p *Product) Ref() *ProductRef {
	return &ProductRef{Code: p.Code, Name: p.Name, SalePrice: p.SalePrice}
}

type ProductFilter struct {
	Query    string
	Active   *bool
	Page     int
	PageSize int
}

type ProductUpsert struct {
	Code         string   `json:"code" validate:"required"`
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description"`
	CostPrice    float64  `json:"cost_price" validate:"gte=0"`
	SalePrice    float64  `json:"sale_price" validate:"gte=0"`
	Stock        *float64 `json:"stock"`
	MinStock     *float64 `json:"min_stock"`
	SoldByWeight *bool    `json:"sold_by_weight"`
	Unit         string   `json:"unit"`
	VATRate      *float64 `json:"vat_rate"`
	Active       *bool    `json:"active"`
}

type ProductRepo interface {
	// Resolve finds a product by primary id; when idOrCode does not parse
	// as a UUID it is treated as the tenant-scoped natural code instead.
	Resolve(ctx context.Context, tenantID uuid.UUID, idOrCode string) (*Product, error)
	Upsert(ctx context.Context, tenantID uuid.UUID, in ProductUpsert) (*Product, error)
	List(ctx context.Context, tenantID uuid.UUID, f ProductFilter) ([]Product, int64, error)
}
