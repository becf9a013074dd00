package sqlite

import (
	"context"
	"testing"

	"github.com/ganot/feapi/internal/domain/load"
	"github.com/ganot/feapi/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestTruckRepository_KeepsPalletOrder(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	seedOrder(t, db)

	repo := NewTruckRepository(db)
	truck, err := repo.Get(ctx, "T-1")
	require.NoError(t, err)
	require.Equal(t, "truck", truck.Name)
	require.Equal(t, "Volvo", truck.Brand)
	require.Equal(t, []string{"P-2", "P-1"}, truck.PalletIDs)
	require.Equal(t, load.StatusReady, truck.Status)

	ok, err := repo.Exists(ctx, "T-1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.Exists(ctx, "T-2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTruckRepository_UpdateStatus(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	seedOrder(t, db)
	repo := NewTruckRepository(db)

	require.NoError(t, repo.UpdateStatus(ctx, "T-1", load.StatusInProgress))
	truck, err := repo.Get(ctx, "T-1")
	require.NoError(t, err)
	require.Equal(t, load.StatusInProgress, truck.Status)

	err = repo.UpdateStatus(ctx, "T-404", load.StatusCompleted)
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.Get(ctx, "T-404")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTruckRepository_DuplicateConflicts(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	seedOrder(t, db)

	err := NewTruckRepository(db).Create(ctx, &load.Truck{ID: "T-1", Status: load.StatusReady})
	require.ErrorIs(t, err, repository.ErrConflict)
}
