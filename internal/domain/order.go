package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCompleted OrderStatus = "completed"
)

// Order is a sale pushed from a terminal. Its id is client-generated and is
// the idempotency key: re-pushing the same id mutates the existing row
// instead of creating a duplicate.
type Order struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID   `gorm:"type:uuid;index"`
	CustomerID    *uuid.UUID  `gorm:"type:uuid;index"`
	Total         float64     `gorm:"type:decimal(12,2);not null"`
	Discount      float64     `gorm:"type:decimal(12,2);default:0"`
	PaymentMethod string      `gorm:"size:50;not null"`
	OrderType     string      `gorm:"size:20"`
	Status        OrderStatus `gorm:"type:varchar(30);index"`
	DeliveryFee   float64     `gorm:"type:decimal(12,2);default:0"`
	Notes         string      `gorm:"type:text"`
	Canceled      bool        `gorm:"default:false"`
	Items         []OrderItem
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time `gorm:"index"`
}

type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_order_items_line"`
	ProductID uuid.UUID `gorm:"type:uuid;index"`
	Quantity  float64   `gorm:"type:decimal(12,3);not null"`
	WeightKG  float64   `gorm:"type:decimal(12,3);default:0"`
	UnitPrice float64   `gorm:"type:decimal(12,2);not null"`
	Subtotal  float64   `gorm:"type:decimal(12,2);not null"`
	VATRate   float64   `gorm:"type:decimal(5,2);default:0"`
	VATBase   float64   `gorm:"type:decimal(12,2);default:0"`
	VATAmount float64   `gorm:"type:decimal(12,2);default:0"`
	LineHash  string    `gorm:"size:64;uniqueIndex:idx_order_items_line"`
}

// OrderItemChange is one line of a pushed order. ProductID may carry a
// natural code when the terminal has no server id for the product yet.
type OrderItemChange struct {
	ProductID   string  `json:"product_id"`
	ProductCode string  `json:"product_code,omitempty"`
	Quantity    float64 `json:"quantity"`
	WeightKG    float64 `json:"weight_kg,omitempty"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

type OrderChange struct {
	ID            string            `json:"id"`
	CustomerID    string            `json:"customer_id,omitempty"`
	Discount      float64           `json:"discount,omitempty"`
	PaymentMethod string            `json:"payment_method"`
	OrderType     string            `json:"order_type,omitempty"`
	Status        string            `json:"status,omitempty"`
	DeliveryFee   float64           `json:"delivery_fee,omitempty"`
	Notes         *string           `json:"notes,omitempty"`
	CreatedAt     *time.Time        `json:"created_at,omitempty"`
	Items         []OrderItemChange `json:"items"`
}

type OrderItemView struct {
	ProductID uuid.UUID   `json:"product_id"`
	Quantity  float64     `json:"quantity"`
	WeightKG  float64     `json:"weight_kg,omitempty"`
	UnitPrice float64     `json:"unit_price"`
	Subtotal  float64     `json:"subtotal"`
	VATRate   float64     `json:"vat_rate"`
	VATAmount float64     `json:"vat_amount"`
	Product   *ProductRef `json:"product"`
}

type OrderView struct {
	ID            uuid.UUID       `json:"id"`
	CustomerID    *uuid.UUID      `json:"customer_id,omitempty"`
	Total         float64         `json:"total"`
	Discount      float64         `json:"discount"`
	PaymentMethod string          `json:"payment_method"`
	OrderType     string          `json:"order_type,omitempty"`
	Status        OrderStatus     `json:"status"`
	DeliveryFee   float64         `json:"delivery_fee"`
	Notes         string          `json:"notes,omitempty"`
	Canceled      bool            `json:"canceled"`
	Items         []OrderItemView `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type OrderRepo interface {
	Apply(ctx context.Context, tenantID, id uuid.UUID, ch OrderChange) error
	Feed(ctx context.Context, tenantID uuid.UUID, cur TypeCursor, limit int) ([]OrderView, error)
	// DayTotal sums non-canceled sales created within the day starting at
	// midnight of day's location.
	DayTotal(ctx context.Context, tenantID uuid.UUID, day time.Time) (float64, error)
}
