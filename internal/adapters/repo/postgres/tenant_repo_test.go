package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/pdvhub/internal/domain"
)

func TestEnsureDefaultBootstraps(t *testing.T) {
	db := newTestDB(t)
	repo := NewTenantRepo(db)
	ctx := context.Background()

	_, err := repo.FirstActive(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.EnsureDefault(ctx, uuid.Nil, "Corner store", "grocery"))
	tn, err := repo.FirstActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Corner store", tn.Name)

	// a second boot is a no-op
	require.NoError(t, repo.EnsureDefault(ctx, uuid.Nil, "Other name", "grocery"))
	var n int64
	require.NoError(t, db.Model(&domain.Tenant{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestEnsureDefaultPinnedID(t *testing.T) {
	db := newTestDB(t)
	repo := NewTenantRepo(db)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, repo.EnsureDefault(ctx, id, "Pinned", "restaurant"))
	require.NoError(t, repo.EnsureDefault(ctx, id, "Pinned again", "restaurant"))

	tn, err := repo.FirstActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, tn.ID)
	assert.Equal(t, "Pinned", tn.Name)
}
