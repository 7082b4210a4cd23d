package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tenant is the isolation boundary: every other row carries its id and no
// read or write may cross it.
type Tenant struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"size:200;not null"`
	Slug         string    `gorm:"size:80;uniqueIndex"`
	BusinessType string    `gorm:"size:50;default:grocery"`
	Active       bool      `gorm:"default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type TenantRepo interface {
	FirstActive(ctx context.Context) (*Tenant, error)
	EnsureDefault(ctx context.Context, id uuid.UUID, name, businessType string) error
}
