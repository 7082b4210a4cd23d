package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/phenrril/pdvhub/internal/domain"
)

type DebtRepo struct{ db *gorm.DB }

func NewDebtRepo(db *gorm.DB) *DebtRepo { return &DebtRepo{db: db} }

// Apply runs one pushed debt event in its own transaction. Header scalars
// follow partial-update semantics, items dedup on their line hash, payments
// dedup on the client-supplied payment id. Totals and status are recomputed
// from the stored children at the end, never taken from the payload.
func (r *DebtRepo) Apply(ctx context.Context, tenantID, id uuid.UUID, ch domain.DebtChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := buildDebtItems(tx, tenantID, id, ch.Items)
		if err != nil {
			return err
		}

		var customerID *uuid.UUID
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
			customerID = &cid
		}

		var existing domain.Debt
		err = tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			d := domain.Debt{ID: id, TenantID: tenantID, CustomerID: customerID, Status: domain.DebtStatusPending}
			if ch.DiscountAmount != nil {
				d.DiscountAmount = *ch.DiscountAmount
			}
			if ch.DiscountPercent != nil {
				d.DiscountPercent = *ch.DiscountPercent
			}
			if ch.Note != nil {
				d.Note = *ch.Note
			}
			if ch.CreatedAt != nil {
				d.CreatedAt = *ch.CreatedAt
			}
			if err := tx.Create(&d).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			updates := map[string]any{}
			if customerID != nil {
				updates["customer_id"] = *customerID
			}
			if ch.DiscountAmount != nil {
				updates["discount_amount"] = *ch.DiscountAmount
			}
			if ch.DiscountPercent != nil {
				updates["discount_percent"] = *ch.DiscountPercent
			}
			if ch.Note != nil {
				updates["note"] = *ch.Note
			}
			if len(updates) > 0 {
				if err := tx.Model(&domain.Debt{}).
					Where("tenant_id = ? AND id = ?", tenantID, id).
					Updates(updates).Error; err != nil {
					return err
				}
			}
		}

		if len(items) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&items).Error; err != nil {
				return err
			}
		}

		for _, p := range ch.Payments {
			if err := insertPayment(tx, id, p); err != nil {
				return err
			}
		}

		return recalcDebt(tx, tenantID, id)
	})
}

func buildDebtItems(tx *gorm.DB, tenantID, debtID uuid.UUID, lines []domain.DebtItemChange) ([]domain.DebtItem, error) {
	items := make([]domain.DebtItem, 0, len(lines))
	seen := lineCounter{}
	for _, line := range lines {
		prod, err := resolveProduct(tx, tenantID, line.ProductID, line.ProductCode)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.InvalidReferencef("product %q not found in tenant", line.ProductID)
			}
			return nil, err
		}
		seq := seen.next(lineKey{prod.ID, line.Quantity, line.WeightKG, line.UnitPrice, line.Subtotal})
		items = append(items, domain.DebtItem{
			ID:        uuid.New(),
			DebtID:    debtID,
			ProductID: prod.ID,
			Quantity:  line.Quantity,
			WeightKG:  line.WeightKG,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
			LineHash:  domain.LineHash(prod.ID, line.Quantity, line.WeightKG, line.UnitPrice, line.Subtotal, seq),
		})
	}
	return items, nil
}

// insertPayment requires a client-generated payment id. Without one a
// network retry of the same push would double-count paid_amount, so
// id-less payments are rejected instead of guessed at.
func insertPayment(tx *gorm.DB, debtID uuid.UUID, p domain.DebtPaymentChange) error {
	pid, err := uuid.Parse(strings.TrimSpace(p.ID))
	if err != nil {
		return domain.InvalidPayloadf("payment requires a client-generated id")
	}
	if p.Amount <= 0 {
		return domain.InvalidPayloadf("payment amount must be positive")
	}
	payment := domain.DebtPayment{ID: pid, DebtID: debtID, Amount: p.Amount, Method: p.Method}
	if p.PaidAt != nil {
		payment.PaidAt = *p.PaidAt
	} else {
		payment.PaidAt = time.Now().UTC()
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&payment).Error
}

// recalcDebt rebuilds the aggregate columns from the stored children.
// paid_amount is the payment sum, so it is monotonically non-decreasing,
// and the status transition pending → partial → settled falls out of it.
func recalcDebt(tx *gorm.DB, tenantID, id uuid.UUID) error {
	var d domain.Debt
	if err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&d).Error; err != nil {
		return err
	}

	var original float64
	if err := tx.Model(&domain.DebtItem{}).
		Where("debt_id = ?", id).
		Select("COALESCE(SUM(subtotal), 0)").
		Scan(&original).Error; err != nil {
		return err
	}
	discount := d.DiscountAmount
	if d.DiscountPercent > 0 {
		discount = original * d.DiscountPercent / 100
	}
	total := original - discount
	if total < 0 {
		total = 0
	}

	var paid float64
	if err := tx.Model(&domain.DebtPayment{}).
		Where("debt_id = ?", id).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&paid).Error; err != nil {
		return err
	}

	return tx.Model(&domain.Debt{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]any{
			"original_amount": original,
			"discount_amount": discount,
			"total":           total,
			"paid_amount":     paid,
			"status":          domain.DeriveDebtStatus(paid, total),
		}).Error
}

func (r *DebtRepo) RegisterPayment(ctx context.Context, tenantID, debtID uuid.UUID, p domain.DebtPaymentChange) (*domain.Debt, error) {
	var out domain.Debt
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d domain.Debt
		if err := tx.Where("tenant_id = ? AND id = ?", tenantID, debtID).First(&d).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if err := insertPayment(tx, debtID, p); err != nil {
			return err
		}
		if err := recalcDebt(tx, tenantID, debtID); err != nil {
			return err
		}
		return tx.Where("tenant_id = ? AND id = ?", tenantID, debtID).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *DebtRepo) ListOpen(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID) ([]domain.DebtView, error) {
	q := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status <> ?", tenantID, domain.DebtStatusSettled)
	if customerID != nil {
		q = q.Where("customer_id = ?", *customerID)
	}
	var rows []domain.Debt
	if err := q.Order("created_at desc").Preload("Items").Preload("Payments").Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.views(ctx, tenantID, rows)
}

func (r *DebtRepo) Feed(ctx context.Context, tenantID uuid.UUID, cur domain.TypeCursor, limit int) ([]domain.DebtView, error) {
	var rows []domain.Debt
	q := afterCursor(r.db.WithContext(ctx).Where("tenant_id = ?", tenantID), cur)
	if err := q.Order("updated_at asc, id asc").Limit(limit).Preload("Items").Preload("Payments").Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.views(ctx, tenantID, rows)
}

func (r *DebtRepo) views(ctx context.Context, tenantID uuid.UUID, rows []domain.Debt) ([]domain.DebtView, error) {
	productIDs := make([]uuid.UUID, 0)
	customerIDs := make([]uuid.UUID, 0)
	for i := range rows {
		if rows[i].CustomerID != nil {
			customerIDs = append(customerIDs, *rows[i].CustomerID)
		}
		for j := range rows[i].Items {
			productIDs = append(productIDs, rows[i].Items[j].ProductID)
		}
	}
	refs, err := productRefs(r.db.WithContext(ctx), tenantID, productIDs)
	if err != nil {
		return nil, err
	}
	names := map[uuid.UUID]string{}
	if len(customerIDs) > 0 {
		var customers []domain.Customer
		if err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND id IN ?", tenantID, customerIDs).
			Find(&customers).Error; err != nil {
			return nil, err
		}
		for i := range customers {
			names[customers[i].ID] = customers[i].Name
		}
	}

	views := make([]domain.DebtView, 0, len(rows))
	for i := range rows {
		d := rows[i]
		v := domain.DebtView{
			ID:              d.ID,
			CustomerID:      d.CustomerID,
			OriginalAmount:  d.OriginalAmount,
			DiscountAmount:  d.DiscountAmount,
			DiscountPercent: d.DiscountPercent,
			Total:           d.Total,
			PaidAmount:      d.PaidAmount,
			Status:          d.Status,
			Note:            d.Note,
			Items:           make([]domain.DebtItemView, 0, len(d.Items)),
			Payments:        d.Payments,
			CreatedAt:       d.CreatedAt,
			UpdatedAt:       d.UpdatedAt,
		}
		if d.CustomerID != nil {
			v.CustomerName = names[*d.CustomerID]
		}
		for _, it := range d.Items {
			v.Items = append(v.Items, domain.DebtItemView{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				WeightKG:  it.WeightKG,
				UnitPrice: it.UnitPrice,
				Subtotal:  it.Subtotal,
				Product:   refs[it.ProductID],
			})
		}
		views = append(views, v)
	}
	return views, nil
}
