package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/phenrril/pdvhub/internal/domain"
)

type OrderRepo struct{ db *gorm.DB }

func NewOrderRepo(db *gorm.DB) *OrderRepo { return &OrderRepo{db: db} }

// Apply runs one pushed order event in its own transaction. The order id is
// the idempotency key: the first successful apply inserts the header, later
// applies only move soft fields, so a stale retry can never downgrade a
// server-confirmed sale. The header total is recomputed from the resolved
// items, never trusted from the payload.
func (r *OrderRepo) Apply(ctx context.Context, tenantID, id uuid.UUID, ch domain.OrderChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, subtotalSum, err := buildOrderItems(tx, tenantID, id, ch.Items)
		if err != nil {
			return err
		}

		var existing domain.Order
		err = tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			o := domain.Order{
				ID:            id,
				TenantID:      tenantID,
				Discount:      ch.Discount,
				PaymentMethod: ch.PaymentMethod,
				OrderType:     ch.OrderType,
				Status:        domain.OrderStatus(ch.Status),
				DeliveryFee:   ch.DeliveryFee,
			}
			if o.Status == "" {
				o.Status = domain.OrderStatusCompleted
			}
			if ch.Notes != nil {
				o.Notes = *ch.Notes
			}
			total := subtotalSum + ch.DeliveryFee - ch.Discount
			if total < 0 {
				total = 0
			}
			o.Total = total
			if ch.CustomerID != "" {
				cid, err := uuid.Parse(ch.CustomerID)
				if err != nil {
					return domain.InvalidPayloadf("bad customer_id %q", ch.CustomerID)
				}
				var n int64
				if err := tx.Model(&domain.Customer{}).
					Where("tenant_id = ? AND id = ?", tenantID, cid).
					Count(&n).Error; err != nil {
					return err
				}
				if n == 0 {
					return domain.InvalidReferencef("customer %s not found in tenant", cid)
				}
				o.CustomerID = &cid
			}
			if ch.CreatedAt != nil {
				// keep the terminal's sale time, the device may have been
				// offline for days
				o.CreatedAt = *ch.CreatedAt
			}
			if err := tx.Create(&o).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if ch.Notes != nil {
				if err := tx.Model(&domain.Order{}).
					Where("tenant_id = ? AND id = ?", tenantID, id).
					Updates(map[string]any{"notes": *ch.Notes}).Error; err != nil {
					return err
				}
			}
		}

		if len(items) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// lineKey identifies identical lines within one payload. Each repeat of
// the same key gets the next occurrence index folded into its hash, so
// intra-payload duplicates survive the dedup insert while a retried
// payload still maps onto the same rows.
type lineKey struct {
	productID uuid.UUID
	qty       float64
	weightKG  float64
	unitPrice float64
	subtotal  float64
}

type lineCounter map[lineKey]int

func (c lineCounter) next(k lineKey) int {
	seq := c[k]
	c[k]++
	return seq
}

// buildOrderItems resolves every line's product before anything is written:
// one dangling reference rejects the whole event, otherwise the client's
// local total would silently disagree with the persisted one.
func buildOrderItems(tx *gorm.DB, tenantID, orderID uuid.UUID, lines []domain.OrderItemChange) ([]domain.OrderItem, float64, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	seen := lineCounter{}
	var subtotalSum float64
	for _, line := range lines {
		prod, err := resolveProduct(tx, tenantID, line.ProductID, line.ProductCode)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, 0, domain.InvalidReferencef("product %q not found in tenant", line.ProductID)
			}
			return nil, 0, err
		}
		seq := seen.next(lineKey{prod.ID, line.Quantity, line.WeightKG, line.UnitPrice, line.Subtotal})
		base, amount := vatSplit(line.Subtotal, prod.VATRate)
		items = append(items, domain.OrderItem{
			ID:        uuid.New(),
			OrderID:   orderID,
			ProductID: prod.ID,
			Quantity:  line.Quantity,
			WeightKG:  line.WeightKG,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
			VATRate:   prod.VATRate,
			VATBase:   base,
			VATAmount: amount,
			LineHash:  domain.LineHash(prod.ID, line.Quantity, line.WeightKG, line.UnitPrice, line.Subtotal, seq),
		})
		subtotalSum += line.Subtotal
	}
	return items, subtotalSum, nil
}

// vatSplit extracts the tax share from a gross subtotal at the product's
// rate.
func vatSplit(subtotal, rate float64) (base, amount float64) {
	if rate <= 0 {
		return subtotal, 0
	}
	base = subtotal / (1 + rate/100)
	return base, subtotal - base
}

func (r *OrderRepo) Feed(ctx context.Context, tenantID uuid.UUID, cur domain.TypeCursor, limit int) ([]domain.OrderView, error) {
	var rows []domain.Order
	q := afterCursor(r.db.WithContext(ctx).Where("tenant_id = ?", tenantID), cur)
	if err := q.Order("updated_at asc, id asc").Limit(limit).Preload("Items").Find(&rows).Error; err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0)
	for i := range rows {
		for j := range rows[i].Items {
			ids = append(ids, rows[i].Items[j].ProductID)
		}
	}
	refs, err := productRefs(r.db.WithContext(ctx), tenantID, ids)
	if err != nil {
		return nil, err
	}

	views := make([]domain.OrderView, 0, len(rows))
	for i := range rows {
		o := rows[i]
		v := domain.OrderView{
			ID:            o.ID,
			CustomerID:    o.CustomerID,
			Total:         o.Total,
			Discount:      o.Discount,
			PaymentMethod: o.PaymentMethod,
			OrderType:     o.OrderType,
			Status:        o.Status,
			DeliveryFee:   o.DeliveryFee,
			Notes:         o.Notes,
			Canceled:      o.Canceled,
			Items:         make([]domain.OrderItemView, 0, len(o.Items)),
			CreatedAt:     o.CreatedAt,
			UpdatedAt:     o.UpdatedAt,
		}
		for _, it := range o.Items {
			v.Items = append(v.Items, domain.OrderItemView{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				WeightKG:  it.WeightKG,
				UnitPrice: it.UnitPrice,
				Subtotal:  it.Subtotal,
				VATRate:   it.VATRate,
				VATAmount: it.VATAmount,
				Product:   refs[it.ProductID],
			})
		}
		views = append(views, v)
	}
	return views, nil
}

func (r *OrderRepo) DayTotal(ctx context.Context, tenantID uuid.UUID, day time.Time) (float64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	var total float64
	err := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("tenant_id = ? AND canceled = ? AND created_at >= ? AND created_at < ?", tenantID, false, start, end).
		Select("COALESCE(SUM(total), 0)").
		Scan(&total).Error
	return total, err
}
