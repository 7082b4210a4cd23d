package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/phenrril/pdvhub/internal/domain"
)

// MetricsUC serves dashboard aggregates through the injected TTL cache so
// a cold-starting terminal fleet does not hammer the store with the same
// day-total query.
type MetricsUC struct {
	Orders domain.OrderRepo
	Cache  domain.Cache
	TTL    time.Duration
}

func NewMetricsUC(orders domain.OrderRepo, cache domain.Cache, ttl time.Duration) *MetricsUC {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &MetricsUC{Orders: orders, Cache: cache, TTL: ttl}
}

func (uc *MetricsUC) SalesDay(ctx context.Context, tenantID uuid.UUID, day time.Time) (float64, error) {
	key := fmt.Sprintf("sales_day:%s:%s", tenantID, day.Format("2006-01-02"))
	if raw, ok := uc.Cache.Get(ctx, key); ok {
		if total, err := strconv.ParseFloat(raw, 64); err == nil {
			return total, nil
		}
	}
	total, err := uc.Orders.DayTotal(ctx, tenantID, day)
	if err != nil {
		return 0, err
	}
	uc.Cache.Set(ctx, key, strconv.FormatFloat(total, 'f', -1, 64), uc.TTL)
	return total, nil
}
