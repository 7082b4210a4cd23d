package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type DebtStatus string

const (
	DebtStatusPending DebtStatus = "pending"
	DebtStatusPartial DebtStatus = "partial"
	DebtStatusSettled DebtStatus = "settled"
)

// settleEpsilon absorbs float drift when comparing paid against total.
const settleEpsilon = 0.01

type Debt struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID  `gorm:"type:uuid;index"`
	CustomerID      *uuid.UUID `gorm:"type:uuid;index"`
	OriginalAmount  float64    `gorm:"type:decimal(12,2);default:0"`
	DiscountAmount  float64    `gorm:"type:decimal(12,2);default:0"`
	DiscountPercent float64    `gorm:"type:decimal(5,2);default:0"`
	Total           float64    `gorm:"type:decimal(12,2);not null"`
	PaidAmount      float64    `gorm:"type:decimal(12,2);default:0"`
	Status          DebtStatus `gorm:"type:varchar(20);default:pending;index"`
	Note            string     `gorm:"type:text"`
	Items           []DebtItem
	Payments        []DebtPayment
	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time `gorm:"index"`
}

type DebtItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	DebtID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_debt_items_line"`
	ProductID uuid.UUID `gorm:"type:uuid;index"`
	Quantity  float64   `gorm:"type:decimal(12,3);not null"`
	WeightKG  float64   `gorm:"type:decimal(12,3);default:0"`
	UnitPrice float64   `gorm:"type:decimal(12,2);not null"`
	Subtotal  float64   `gorm:"type:decimal(12,2);not null"`
	LineHash  string    `gorm:"size:64;uniqueIndex:idx_debt_items_line"`
}

// DebtPayment rows are append-only. The id is client-generated and is the
// payment's idempotency key: a retried push with the same id inserts
// nothing, so paid_amount never double-counts.
type DebtPayment struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DebtID uuid.UUID `gorm:"type:uuid;index" json:"debt_id"`
	Amount float64   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Method string    `gorm:"size:50" json:"method"`
	PaidAt time.Time `json:"paid_at"`
}

// DeriveDebtStatus maps the running paid total against the debt total.
// Transitions only ever move forward because payments are append-only.
func DeriveDebtStatus(paid, total float64) DebtStatus {
	switch {
	case paid >= total-settleEpsilon:
		return DebtStatusSettled
	case paid > 0:
		return DebtStatusPartial
	default:
		return DebtStatusPending
	}
}

type DebtItemChange struct {
	ProductID   string  `json:"product_id"`
	ProductCode string  `json:"product_code,omitempty"`
	Quantity    float64 `json:"quantity"`
	WeightKG    float64 `json:"weight_kg,omitempty"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

type DebtPaymentChange struct {
	ID     string     `json:"id"`
	Amount float64    `json:"amount"`
	Method string     `json:"method"`
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

type DebtChange struct {
	ID              string              `json:"id"`
	CustomerID      string              `json:"customer_id,omitempty"`
	DiscountAmount  *float64            `json:"discount_amount,omitempty"`
	DiscountPercent *float64            `json:"discount_percent,omitempty"`
	Note            *string             `json:"note,omitempty"`
	CreatedAt       *time.Time          `json:"created_at,omitempty"`
	Items           []DebtItemChange    `json:"items,omitempty"`
	Payments        []DebtPaymentChange `json:"payments,omitempty"`
}

type DebtItemView struct {
	ProductID uuid.UUID   `json:"product_id"`
	Quantity  float64     `json:"quantity"`
	WeightKG  float64     `json:"weight_kg,omitempty"`
	UnitPrice float64     `json:"unit_price"`
	Subtotal  float64     `json:"subtotal"`
	Product   *ProductRef `json:"product"`
}

type DebtView struct {
	ID              uuid.UUID      `json:"id"`
	CustomerID      *uuid.UUID     `json:"customer_id,omitempty"`
	CustomerName    string         `json:"customer_name,omitempty"`
	OriginalAmount  float64        `json:"original_amount"`
	DiscountAmount  float64        `json:"discount_amount"`
	DiscountPercent float64        `json:"discount_percent"`
	Total           float64        `json:"total"`
	PaidAmount      float64        `json:"paid_amount"`
	Status          DebtStatus     `json:"status"`
	Note            string         `json:"note,omitempty"`
	Items           []DebtItemView `json:"items"`
	Payments        []DebtPayment  `json:"payments"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type DebtRepo interface {
	Apply(ctx context.Context, tenantID, id uuid.UUID, ch DebtChange) error
	ListOpen(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID) ([]DebtView, error)
	RegisterPayment(ctx context.Context, tenantID, debtID uuid.UUID, p DebtPaymentChange) (*Debt, error)
	Feed(ctx context.Context, tenantID uuid.UUID, cur TypeCursor, limit int) ([]DebtView, error)
}
