package sqlite

import (
	"context"
	"testing"

	"github.com/ganot/feapi/internal/domain/load"
	"github.com/ganot/feapi/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestOrderRepository_CreateGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	seedOrder(t, db)

	repo := NewOrderRepository(db)
	order, err := repo.Get(ctx, "O-1")
	require.NoError(t, err)
	require.Equal(t, "D1", order.DeviceID)
	require.Equal(t, []string{"T-1"}, order.TruckIDs)
	require.Equal(t, load.StatusReady, order.Status)
	require.Equal(t, 1, order.Phase)
	require.Equal(t, []load.ItemCount{{ItemID: "X", Count: 3}, {ItemID: "Y", Count: 1}}, order.ItemsUniq)
	require.False(t, order.CreatedAt.IsZero())

	byDevice, err := repo.GetByDevice(ctx, "D1")
	require.NoError(t, err)
	require.Equal(t, "O-1", byDevice.ID)

	_, err = repo.GetByDevice(ctx, "D2")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOrderRepository_DuplicateConflicts(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	seedOrder(t, db)

	err := NewOrderRepository(db).Create(ctx, &load.Order{ID: "O-1", DeviceID: "D1", Status: load.StatusReady, Phase: 1})
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestOrderRepository_ListSorted(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewOrderRepository(db)

	for _, id := range []string{"O-3", "O-1", "O-2"} {
		require.NoError(t, repo.Create(ctx, &load.Order{ID: id, DeviceID: "D1", Status: load.StatusReady, Phase: 1}))
	}

	orders, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	require.Equal(t, "O-1", orders[0].ID)
	require.Equal(t, "O-2", orders[1].ID)
	require.Equal(t, "O-3", orders[2].ID)
}

func TestOrderRepository_Update(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	seedOrder(t, db)
	repo := NewOrderRepository(db)

	order, err := repo.Get(ctx, "O-1")
	require.NoError(t, err)
	order.Status = load.StatusInProgress
	order.Phase = 2
	require.NoError(t, repo.Update(ctx, order))

	got, err := repo.Get(ctx, "O-1")
	require.NoError(t, err)
	require.Equal(t, load.StatusInProgress, got.Status)
	require.Equal(t, 2, got.Phase)

	err = repo.Update(ctx, &load.Order{ID: "missing", Status: load.StatusReady})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOrderRepository_DeleteCascade(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	seedOrder(t, db)
	st := NewStore(db)

	require.NoError(t, st.Items().Create(ctx, &load.Item{ID: "Z", Status: load.ItemReady}))
	require.NoError(t, st.Orders().DeleteCascade(ctx, "O-1"))

	counts, err := st.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, counts["orders"])
	require.Equal(t, 0, counts["trucks"])
	require.Equal(t, 0, counts["pallets"])
	// Z belongs to no pallet of the order.
	require.Equal(t, 1, counts["items"])

	err = st.Orders().DeleteCascade(ctx, "O-1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOrderRepository_SetStructure(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	seedOrder(t, db)
	repo := NewOrderRepository(db)

	order, err := repo.Get(ctx, "O-1")
	require.NoError(t, err)
	order.TruckIDs = []string{"T-1", "T-2"}
	order.ItemsUniq = []load.ItemCount{{ItemID: "X", Count: 4}, {ItemID: "Y", Count: 1}}
	require.NoError(t, repo.SetStructure(ctx, order))

	got, err := repo.Get(ctx, "O-1")
	require.NoError(t, err)
	require.Equal(t, []string{"T-1", "T-2"}, got.TruckIDs)
	require.Equal(t, order.ItemsUniq, got.ItemsUniq)
	require.Equal(t, load.StatusReady, got.Status)

	err = repo.SetStructure(ctx, &load.Order{ID: "O-404"})
	require.ErrorIs(t, err, repository.ErrNotFound)
}
