package fulfillment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ganot/feapi/internal/domain/journal"
	"github.com/ganot/feapi/internal/domain/load"
	"github.com/ganot/feapi/internal/domain/plan"
	"github.com/ganot/feapi/internal/repository/mocks"
	"github.com/ganot/feapi/internal/tenant"
	"github.com/stretchr/testify/require"
)

type evidenceFunc func(ctx context.Context, itemID string) ([]string, error)

func (f evidenceFunc) Images(ctx context.Context, itemID string) ([]string, error) {
	return f(ctx, itemID)
}

type recordingNotifier struct {
	mu        sync.Mutex
	completed []string
}

func (n *recordingNotifier) OrderCompleted(_ context.Context, deviceID, orderID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, deviceID+"/"+orderID)
}

func (n *recordingNotifier) calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.completed...)
}

type fixture struct {
	svc      *Service
	tenants  *tenant.Manager
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := tenant.NewManager("", nil)
	t.Cleanup(func() { _ = m.Close() })
	n := &recordingNotifier{}
	images := evidenceFunc(func(_ context.Context, itemID string) ([]string, error) {
		return []string{"/image/placement_imgs/" + itemID + "/1.png"}, nil
	})
	return &fixture{svc: NewService(m, images, n, nil), tenants: m, notifier: n}
}

// twoTruckPlan: T-1 holds P-1 [X, Y] and P-2 [X, Z]; T-2 holds P-3 [W].
func twoTruckPlan() *plan.Order {
	return &plan.Order{
		ID: "O-1",
		Trucks: []plan.Truck{
			{ID: "T-1", Pallets: []plan.Pallet{
				{ID: "P-1", Items: []plan.Item{{ItemID: "X", Name: "Crate"}, {ItemID: "Y", Name: "Barrel"}}},
				{ID: "P-2", Items: []plan.Item{{ItemID: "X", Name: "Crate"}, {ItemID: "Z", Name: "Drum"}}},
			}},
			{ID: "T-2", Pallets: []plan.Pallet{
				{ID: "P-3", Items: []plan.Item{{ItemID: "W", Name: "Box"}}},
			}},
		},
	}
}

func (f *fixture) importPlan(t *testing.T, deviceID string, p *plan.Order) {
	t.Helper()
	_, err := plan.NewImporter(f.tenants, nil, nil).Import(context.Background(), deviceID, p)
	require.NoError(t, err)
}

func (f *fixture) statuses(t *testing.T, deviceID string) (load.Status, map[string]load.Status) {
	t.Helper()
	ctx := context.Background()
	var orderStatus load.Status
	trucks := map[string]load.Status{}
	err := f.tenants.View(ctx, deviceID, func(st load.Store) error {
		order, err := st.Orders().GetByDevice(ctx, deviceID)
		if err != nil {
			return err
		}
		orderStatus = order.Status
		for _, id := range order.TruckIDs {
			truck, err := st.Trucks().Get(ctx, id)
			if err != nil {
				return err
			}
			trucks[id] = truck.Status
		}
		return nil
	})
	require.NoError(t, err)
	return orderStatus, trucks
}

func TestService_MarkPlacedCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importPlan(t, "D1", twoTruckPlan())

	out, err := f.svc.MarkPlaced(ctx, "D1", "X")
	require.NoError(t, err)
	require.False(t, out.Done)
	require.Equal(t, "O-1", out.OrderID)
	require.Equal(t, 3, out.Remaining)
	require.Empty(t, out.FinishedPallets)
	order, trucks := f.statuses(t, "D1")
	require.Equal(t, load.StatusInProgress, order)
	require.Equal(t, load.StatusInProgress, trucks["T-1"])
	require.Equal(t, load.StatusReady, trucks["T-2"])

	out, err = f.svc.MarkPlaced(ctx, "D1", "Y")
	require.NoError(t, err)
	require.Equal(t, []string{"P-1"}, out.FinishedPallets)
	require.Empty(t, out.CompletedTrucks)

	out, err = f.svc.MarkPlaced(ctx, "D1", "Z")
	require.NoError(t, err)
	require.Equal(t, []string{"P-2"}, out.FinishedPallets)
	require.Equal(t, []string{"T-1"}, out.CompletedTrucks)
	require.False(t, out.Done)
	require.Empty(t, f.notifier.calls())

	out, err = f.svc.MarkPlaced(ctx, "D1", "W")
	require.NoError(t, err)
	require.True(t, out.Done)
	require.Equal(t, 0, out.Remaining)
	require.Equal(t, []string{"T-2"}, out.CompletedTrucks)

	order, trucks = f.statuses(t, "D1")
	require.Equal(t, load.StatusCompleted, order)
	require.Equal(t, load.StatusCompleted, trucks["T-1"])
	require.Equal(t, load.StatusCompleted, trucks["T-2"])
	require.Equal(t, []string{"D1/O-1"}, f.notifier.calls())

	err = f.tenants.View(ctx, "D1", func(st load.Store) error {
		completed := journal.TypeOrderCompleted
		entries, err := st.Journal().List(ctx, journal.ListOptions{Type: &completed})
		require.NoError(t, err)
		require.Len(t, entries, 1)

		placed := journal.TypeItemPlaced
		entries, err = st.Journal().List(ctx, journal.ListOptions{Type: &placed})
		require.NoError(t, err)
		require.Len(t, entries, 4)
		return nil
	})
	require.NoError(t, err)
}

func TestService_SharedItemCompletesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importPlan(t, "D1", &plan.Order{
		ID: "O-1",
		Trucks: []plan.Truck{{ID: "T-1", Pallets: []plan.Pallet{
			{ID: "P-1", Items: []plan.Item{{ItemID: "X"}}},
			{ID: "P-2", Items: []plan.Item{{ItemID: "X"}, {ItemID: "X"}}},
		}}},
	})

	out, err := f.svc.MarkPlaced(ctx, "D1", "X")
	require.NoError(t, err)
	require.True(t, out.Done)
	require.Equal(t, []string{"P-1", "P-2"}, out.FinishedPallets)
	require.Equal(t, []string{"T-1"}, out.CompletedTrucks)
}

func TestService_StatusesNeverRegress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importPlan(t, "D1", twoTruckPlan())

	for _, id := range []string{"X", "Y", "Z", "W"} {
		_, err := f.svc.MarkPlaced(ctx, "D1", id)
		require.NoError(t, err)
	}

	_, err := f.svc.RecordPlacementRequest(ctx, "D1", "X")
	require.NoError(t, err)
	out, err := f.svc.MarkPlaced(ctx, "D1", "X")
	require.NoError(t, err)
	require.True(t, out.Done)
	require.Empty(t, out.CompletedTrucks)

	order, trucks := f.statuses(t, "D1")
	require.Equal(t, load.StatusCompleted, order)
	require.Equal(t, load.StatusCompleted, trucks["T-1"])
	require.Equal(t, load.StatusCompleted, trucks["T-2"])
	require.Len(t, f.notifier.calls(), 1)
}

func TestService_RecordPlacementRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importPlan(t, "D1", twoTruckPlan())

	ev, err := f.svc.RecordPlacementRequest(ctx, "D1", "W")
	require.NoError(t, err)
	require.Equal(t, []string{"/image/placement_imgs/W/1.png"}, ev.Images)

	_, err = f.svc.RecordPlacementRequest(ctx, "D1", "W")
	require.NoError(t, err)

	err = f.tenants.View(ctx, "D1", func(st load.Store) error {
		order, err := st.Orders().Get(ctx, "O-1")
		require.NoError(t, err)
		require.Equal(t, 2, order.Phase)
		require.Equal(t, load.StatusInProgress, order.Status)

		item, err := st.Items().Get(ctx, "W")
		require.NoError(t, err)
		require.Equal(t, ev.Images, item.Evidence)
		require.Equal(t, load.ItemReady, item.Status)
		return nil
	})
	require.NoError(t, err)

	_, trucks := f.statuses(t, "D1")
	require.Equal(t, load.StatusReady, trucks["T-1"])
	require.Equal(t, load.StatusInProgress, trucks["T-2"])

	_, err = f.svc.RecordPlacementRequest(ctx, "D1", "missing")
	require.ErrorIs(t, err, load.ErrItemNotFound)
}

func TestService_RecordPlacementRequestEvidenceFailure(t *testing.T) {
	m := tenant.NewManager("", nil)
	t.Cleanup(func() { _ = m.Close() })
	failing := evidenceFunc(func(context.Context, string) ([]string, error) {
		return nil, errors.New("bucket offline")
	})
	svc := NewService(m, failing, nil, nil)
	_, err := plan.NewImporter(m, nil, nil).Import(context.Background(), "D1", twoTruckPlan())
	require.NoError(t, err)

	_, err = svc.RecordPlacementRequest(context.Background(), "D1", "X")
	require.ErrorContains(t, err, "bucket offline")

	order, err := load.NewService(m, nil).FindOrder(context.Background(), "D1", "O-1")
	require.NoError(t, err)
	require.Equal(t, 1, order.Phase)
}

func TestService_NextPallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importPlan(t, "D1", twoTruckPlan())

	next, err := f.svc.NextPallet(ctx, "D1", "O-1")
	require.NoError(t, err)
	require.False(t, next.OrderComplete)
	require.Equal(t, &PalletRef{OrderID: "O-1", TruckID: "T-1", GateID: "T-1", PalletID: "P-1", PalletCount: 2}, next.Pallet)

	_, err = f.svc.FinishPallet(ctx, "D1", "P-1")
	require.NoError(t, err)
	next, err = f.svc.NextPallet(ctx, "D1", "O-1")
	require.NoError(t, err)
	require.Equal(t, "P-2", next.Pallet.PalletID)

	_, err = f.svc.FinishPallet(ctx, "D1", "P-2")
	require.NoError(t, err)
	next, err = f.svc.NextPallet(ctx, "D1", "O-1")
	require.NoError(t, err)
	require.Equal(t, &PalletRef{OrderID: "O-1", TruckID: "T-2", GateID: "T-2", PalletID: "P-3", PalletCount: 1}, next.Pallet)

	pallet, err := f.svc.FinishPallet(ctx, "D1", "P-3")
	require.NoError(t, err)
	require.True(t, pallet.Finished)

	next, err = f.svc.NextPallet(ctx, "D1", "O-1")
	require.NoError(t, err)
	require.True(t, next.OrderComplete)
	require.Nil(t, next.Pallet)
	require.Equal(t, []string{"D1/O-1"}, f.notifier.calls())

	_, err = f.svc.NextPallet(ctx, "D1", "O-404")
	require.ErrorIs(t, err, load.ErrOrderNotFound)
	_, err = f.svc.FinishPallet(ctx, "D1", "P-404")
	require.ErrorIs(t, err, load.ErrPalletNotFound)
}

func TestService_NextPalletAfterCascadeDoesNotNotifyTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importPlan(t, "D1", twoTruckPlan())

	for _, id := range []string{"X", "Y", "Z", "W"} {
		_, err := f.svc.MarkPlaced(ctx, "D1", id)
		require.NoError(t, err)
	}
	next, err := f.svc.NextPallet(ctx, "D1", "O-1")
	require.NoError(t, err)
	require.True(t, next.OrderComplete)
	require.Len(t, f.notifier.calls(), 1)
}

func TestService_PendingItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importPlan(t, "D1", twoTruckPlan())

	items, err := f.svc.PendingItems(ctx, "D1", "O-1", 0)
	require.NoError(t, err)
	require.Len(t, items, 5)
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ItemID)
	}
	require.Equal(t, []string{"X", "Y", "X", "Z", "W"}, ids)
	require.Equal(t, "Barrel", items[1].Name)
	require.Equal(t, "P-2", items[2].PalletID)
	require.Equal(t, "T-2", items[4].TruckID)

	_, err = f.svc.MarkPlaced(ctx, "D1", "X")
	require.NoError(t, err)
	items, err = f.svc.PendingItems(ctx, "D1", "O-1", 2)
	require.NoError(t, err)
	require.Equal(t, []PendingItem{
		{ItemID: "Y", Name: "Barrel", PalletID: "P-1", TruckID: "T-1"},
		{ItemID: "Z", Name: "Drum", PalletID: "P-2", TruckID: "T-1"},
	}, items)
}

func TestService_UnknownItemLeavesOtherDevicesAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importPlan(t, "D1", twoTruckPlan())

	_, err := f.svc.MarkPlaced(ctx, "D2", "X")
	require.ErrorIs(t, err, load.ErrItemNotFound)
	require.ErrorIs(t, err, load.ErrNotFound)

	order, trucks := f.statuses(t, "D1")
	require.Equal(t, load.StatusReady, order)
	require.Equal(t, load.StatusReady, trucks["T-1"])

	item, err := load.NewService(f.tenants, nil).FindItem(ctx, "D1", "X")
	require.NoError(t, err)
	require.Equal(t, load.ItemReady, item.Status)
}

func TestService_ConsistencyViolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	err := f.tenants.Update(ctx, "D1", func(st load.Store) error {
		if err := st.Items().Create(ctx, &load.Item{ID: "X", Status: load.ItemReady}); err != nil {
			return err
		}
		if err := st.Pallets().Create(ctx, &load.Pallet{ID: "P-1", TruckID: "T-1", ItemIDs: []string{"X", "GHOST"}}); err != nil {
			return err
		}
		if err := st.Trucks().Create(ctx, &load.Truck{ID: "T-1", PalletIDs: []string{"P-1"}, Status: load.StatusReady}); err != nil {
			return err
		}
		return st.Orders().Create(ctx, &load.Order{ID: "O-1", DeviceID: "D1", TruckIDs: []string{"T-1", "T-GONE"}, Status: load.StatusReady, Phase: 1})
	})
	require.NoError(t, err)

	_, err = f.svc.MarkPlaced(ctx, "D1", "X")
	require.ErrorIs(t, err, load.ErrConsistencyViolation)
	var cerr *load.ConsistencyError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "pallet", cerr.Parent)
	require.Equal(t, "GHOST", cerr.ChildID)

	// The failed cascade rolled back the placement.
	item, err := load.NewService(f.tenants, nil).FindItem(ctx, "D1", "X")
	require.NoError(t, err)
	require.Equal(t, load.ItemReady, item.Status)

	_, err = f.svc.NextPallet(ctx, "D1", "O-1")
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "T-GONE", cerr.ChildID)

	_, err = f.svc.PendingItems(ctx, "D1", "O-1", 5)
	require.ErrorIs(t, err, load.ErrConsistencyViolation)
}

func TestService_ConcurrentPlacementsCompleteOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var pallet []plan.Item
	ids := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	for _, id := range ids {
		pallet = append(pallet, plan.Item{ItemID: id})
	}
	f.importPlan(t, "D1", &plan.Order{ID: "O-1", Trucks: []plan.Truck{{ID: "T-1", Pallets: []plan.Pallet{{ID: "P-1", Items: pallet}}}}})

	var wg sync.WaitGroup
	results := make(chan *Outcome, len(ids))
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			out, err := f.svc.MarkPlaced(ctx, "D1", id)
			errs <- err
			results <- out
		}(id)
	}
	wg.Wait()
	close(errs)
	close(results)

	for err := range errs {
		require.NoError(t, err)
	}
	done := 0
	for out := range results {
		if out.Done {
			done++
		}
	}
	require.Equal(t, 1, done)
	require.Equal(t, []string{"D1/O-1"}, f.notifier.calls())
}

func TestService_StoreUnavailable(t *testing.T) {
	tenants := &mocks.Tenants{Store: mocks.NewStore(), Err: load.ErrStoreUnavailable}
	svc := NewService(tenants, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.MarkPlaced(ctx, "D1", "X")
	require.ErrorIs(t, err, load.ErrStoreUnavailable)
	_, err = svc.RecordPlacementRequest(ctx, "D1", "X")
	require.ErrorIs(t, err, load.ErrStoreUnavailable)
	_, err = svc.NextPallet(ctx, "D1", "O-1")
	require.ErrorIs(t, err, load.ErrStoreUnavailable)
	_, err = svc.PendingItems(ctx, "D1", "O-1", 5)
	require.ErrorIs(t, err, load.ErrStoreUnavailable)
	_, err = svc.FinishPallet(ctx, "D1", "P-1")
	require.ErrorIs(t, err, load.ErrStoreUnavailable)
}

func TestService_MarkPlacedRepositoryFailure(t *testing.T) {
	store := mocks.NewStore()
	tenants := &mocks.Tenants{Store: store}
	svc := NewService(tenants, nil, nil, nil)
	ctx := context.Background()

	store.ItemRepo.On("Get", ctx, "X").Return(&load.Item{ID: "X", Status: load.ItemReady}, nil)
	store.ItemRepo.On("UpdateStatus", ctx, "X", load.ItemPlaced).Return(errors.New("disk full"))

	_, err := svc.MarkPlaced(ctx, "D1", "X")
	require.ErrorContains(t, err, "disk full")
	store.ItemRepo.AssertExpectations(t)
}
