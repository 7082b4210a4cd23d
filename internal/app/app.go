package app

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/phenrril/pdvhub/internal/adapters/cache"
	"github.com/phenrril/pdvhub/internal/adapters/httpserver"
	"github.com/phenrril/pdvhub/internal/adapters/repo/postgres"
	"github.com/phenrril/pdvhub/internal/config"
	"github.com/phenrril/pdvhub/internal/domain"
	"github.com/phenrril/pdvhub/internal/usecase"
)

type App struct {
	DB        *gorm.DB
	Cfg       config.Config
	SyncUC    *usecase.SyncUC
	ProductUC *usecase.ProductUC
	MetricsUC *usecase.MetricsUC
	Tenants   domain.TenantRepo
	Customers domain.CustomerRepo
	Debts     domain.DebtRepo
}

func NewApp(db *gorm.DB, cfg config.Config) *App {
	prodRepo := postgres.NewProductRepo(db)
	orderRepo := postgres.NewOrderRepo(db)
	custRepo := postgres.NewCustomerRepo(db)
	debtRepo := postgres.NewDebtRepo(db)
	tenantRepo := postgres.NewTenantRepo(db)

	var metricsCache domain.Cache
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, using in-process cache")
			metricsCache = cache.NewMemory(0)
		} else {
			metricsCache = rc
		}
	} else {
		metricsCache = cache.NewMemory(0)
	}

	syncUC := usecase.NewSyncUC(orderRepo, custRepo, debtRepo, usecase.SyncOptions{
		EventTimeout: cfg.EventTimeout,
		MaxLimit:     cfg.PullMaxLimit,
		DefaultLimit: cfg.PullDefaultLimit,
	})

	return &App{
		DB:        db,
		Cfg:       cfg,
		SyncUC:    syncUC,
		ProductUC: &usecase.ProductUC{Products: prodRepo},
		MetricsUC: usecase.NewMetricsUC(orderRepo, metricsCache, cfg.MetricsCacheTTL),
		Tenants:   tenantRepo,
		Customers: custRepo,
		Debts:     debtRepo,
	}
}

func (a *App) Handler() http.Handler {
	return httpserver.New(a.SyncUC, a.ProductUC, a.MetricsUC, a.Customers, a.Debts, a.Tenants)
}

func (a *App) MigrateAndSeed(ctx context.Context) error {
	if err := a.DB.AutoMigrate(
		&domain.Tenant{}, &domain.Product{}, &domain.Customer{},
		&domain.Order{}, &domain.OrderItem{},
		&domain.Debt{}, &domain.DebtItem{}, &domain.DebtPayment{},
	); err != nil {
		return err
	}

	_ = a.DB.Exec("CREATE INDEX IF NOT EXISTS idx_orders_tenant_updated ON orders(tenant_id, updated_at, id)").Error
	_ = a.DB.Exec("CREATE INDEX IF NOT EXISTS idx_customers_tenant_updated ON customers(tenant_id, updated_at, id)").Error
	_ = a.DB.Exec("CREATE INDEX IF NOT EXISTS idx_debts_tenant_updated ON debts(tenant_id, updated_at, id)").Error
	_ = a.DB.Exec("CREATE INDEX IF NOT EXISTS idx_debts_tenant_status ON debts(tenant_id, status)").Error

	return a.Tenants.EnsureDefault(ctx, a.Cfg.DefaultTenantID, a.Cfg.DefaultTenantName, a.Cfg.DefaultTenantType)
}
