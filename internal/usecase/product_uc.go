package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/phenrril/pdvhub/internal/domain"
)

// ProductUC is the thin catalog surface the terminals seed their local
// product tables from. The sync core only reads products, through Resolve.
type ProductUC struct {
	Products domain.ProductRepo
}

func (uc *ProductUC) List(ctx context.Context, tenantID uuid.UUID, f domain.ProductFilter) ([]domain.Product, int64, error) {
	if f.PageSize == 0 {
		f.PageSize = 50
	}
	return uc.Products.List(ctx, tenantID, f)
}

func (uc *ProductUC) Upsert(ctx context.Context, tenantID uuid.UUID, in domain.ProductUpsert) (*domain.Product, error) {
	return uc.Products.Upsert(ctx, tenantID, in)
}

func (uc *ProductUC) Resolve(ctx context.Context, tenantID uuid.UUID, idOrCode string) (*domain.Product, error) {
	return uc.Products.Resolve(ctx, tenantID, idOrCode)
}
