package sqlite

import (
	"context"
	"testing"

	"github.com/ganot/feapi/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestPalletRepository_GetKeepsOccurrences(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	seedOrder(t, db)

	pallet, err := NewPalletRepository(db).Get(ctx, "P-2")
	require.NoError(t, err)
	require.Equal(t, []string{"X", "X"}, pallet.ItemIDs)
	require.Equal(t, "pallet", pallet.Name)
	require.Equal(t, "T-1", pallet.TruckID)
	require.False(t, pallet.Finished)

	_, err = NewPalletRepository(db).Get(ctx, "P-9")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPalletRepository_ListByTruckSorted(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	seedOrder(t, db)

	pallets, err := NewPalletRepository(db).ListByTruck(ctx, "T-1")
	require.NoError(t, err)
	require.Len(t, pallets, 2)
	require.Equal(t, "P-1", pallets[0].ID)
	require.Equal(t, "P-2", pallets[1].ID)
	require.Equal(t, []string{"X", "Y"}, pallets[0].ItemIDs)
}

func TestPalletRepository_FirstUnfinishedByInsertion(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	seedOrder(t, db)
	repo := NewPalletRepository(db)

	// P-2 was inserted before P-1.
	pallet, err := repo.FirstUnfinished(ctx, []string{"P-1", "P-2"})
	require.NoError(t, err)
	require.Equal(t, "P-2", pallet.ID)

	require.NoError(t, repo.SetFinished(ctx, "P-2", true))
	pallet, err = repo.FirstUnfinished(ctx, []string{"P-1", "P-2"})
	require.NoError(t, err)
	require.Equal(t, "P-1", pallet.ID)

	require.NoError(t, repo.SetFinished(ctx, "P-1", true))
	_, err = repo.FirstUnfinished(ctx, []string{"P-1", "P-2"})
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.ResetAllFinished(ctx))
	pallet, err = repo.FirstUnfinished(ctx, []string{"P-1"})
	require.NoError(t, err)
	require.Equal(t, "P-1", pallet.ID)

	_, err = repo.FirstUnfinished(ctx, nil)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPalletRepository_SetFinishedMissing(t *testing.T) {
	db := NewTestDB(t)
	err := NewPalletRepository(db).SetFinished(context.Background(), "P-9", true)
	require.ErrorIs(t, err, repository.ErrNotFound)
}
