package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  uuid.UUID `gorm:"type:uuid;index" json:"-"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Document  string    `gorm:"size:20" json:"document,omitempty"`
	Phone     string    `gorm:"size:20" json:"phone,omitempty"`
	Address   string    `gorm:"type:text" json:"address,omitempty"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

// CustomerChange carries a partial update: nil pointers leave the stored
// column untouched rather than nulling it.
type CustomerChange struct {
	ID       string  `json:"id"`
	Name     *string `json:"name,omitempty"`
	Document *string `json:"document,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
	Active   *bool   `json:"active,omitempty"`
}

type CustomerRepo interface {
	Apply(ctx context.Context, tenantID, id uuid.UUID, ch CustomerChange) error
	List(ctx context.Context, tenantID uuid.UUID) ([]Customer, error)
	Feed(ctx context.Context, tenantID uuid.UUID, cur TypeCursor, limit int) ([]Customer, error)
}
