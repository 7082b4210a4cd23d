package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/phenrril/pdvhub/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:test-%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Tenant{}, &domain.Product{}, &domain.Customer{},
		&domain.Order{}, &domain.OrderItem{},
		&domain.Debt{}, &domain.DebtItem{}, &domain.DebtPayment{},
	))
	return db
}

func seedTenant(t *testing.T, db *gorm.DB, name string) uuid.UUID {
	t.Helper()
	tn := domain.Tenant{ID: uuid.New(), Name: name, Slug: name, Active: true}
	require.NoError(t, db.Create(&tn).Error)
	return tn.ID
}

func TestResolveByID(t *testing.T) {
	db := newTestDB(t)
	tid := seedTenant(t, db, "shop")
	repo := NewProductRepo(db)
	ctx := context.Background()

	p, err := repo.Upsert(ctx, tid, domain.ProductUpsert{Code: "RICE-1", Name: "Rice 1kg", SalePrice: 3.5})
	require.NoError(t, err)

	got, err := repo.Resolve(ctx, tid, p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "RICE-1", got.Code)
}

func TestResolveByCodeFallback(t *testing.T) {
	db := newTestDB(t)
	tid := seedTenant(t, db, "shop")
	repo := NewProductRepo(db)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, tid, domain.ProductUpsert{Code: "RICE-1", Name: "Rice 1kg", SalePrice: 3.5})
	require.NoError(t, err)

	// a non-uuid identifier falls back to the tenant-scoped code
	got, err := repo.Resolve(ctx, tid, "RICE-1")
	require.NoError(t, err)
	assert.Equal(t, "Rice 1kg", got.Name)

	// a well-formed uuid that matches nothing does not fall back
	_, err = repo.Resolve(ctx, tid, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveTenantScoped(t *testing.T) {
	db := newTestDB(t)
	tidA := seedTenant(t, db, "shop-a")
	tidB := seedTenant(t, db, "shop-b")
	repo := NewProductRepo(db)
	ctx := context.Background()

	p, err := repo.Upsert(ctx, tidA, domain.ProductUpsert{Code: "RICE-1", Name: "Rice 1kg", SalePrice: 3.5})
	require.NoError(t, err)

	_, err = repo.Resolve(ctx, tidB, p.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.Resolve(ctx, tidB, "RICE-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpsertByTenantAndCode(t *testing.T) {
	db := newTestDB(t)
	tid := seedTenant(t, db, "shop")
	repo := NewProductRepo(db)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, tid, domain.ProductUpsert{Code: "RICE-1", Name: "Rice 1kg", SalePrice: 3.5})
	require.NoError(t, err)

	stock := 40.0
	second, err := repo.Upsert(ctx, tid, domain.ProductUpsert{Code: "RICE-1", Name: "Rice 1kg premium", SalePrice: 4.2, Stock: &stock})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Rice 1kg premium", second.Name)
	assert.Equal(t, 4.2, second.SalePrice)
	assert.Equal(t, 40.0, second.Stock)

	var n int64
	require.NoError(t, db.Model(&domain.Product{}).Where("tenant_id = ?", tid).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestListFiltersAndPages(t *testing.T) {
	db := newTestDB(t)
	tid := seedTenant(t, db, "shop")
	repo := NewProductRepo(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Upsert(ctx, tid, domain.ProductUpsert{Code: fmt.Sprintf("RICE-%d", i), Name: fmt.Sprintf("Rice %d", i), SalePrice: 1})
		require.NoError(t, err)
	}
	inactive := false
	_, err := repo.Upsert(ctx, tid, domain.ProductUpsert{Code: "OLD-1", Name: "Discontinued", SalePrice: 1, Active: &inactive})
	require.NoError(t, err)

	active := true
	list, total, err := repo.List(ctx, tid, domain.ProductFilter{Query: "rice", Active: &active, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 2)

	list, _, err = repo.List(ctx, tid, domain.ProductFilter{Query: "rice", Active: &active, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
