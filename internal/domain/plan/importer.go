package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ganot/feapi/internal/domain/journal"
	"github.com/ganot/feapi/internal/domain/load"
	"github.com/ganot/feapi/internal/repository"
)

// Importer materializes load plans into device stores.
type Importer struct {
	tenants load.Tenants
	source  Source
	logger  *slog.Logger
}

// NewImporter creates a new Importer. source may be nil when plans are only
// pushed through Import.
func NewImporter(tenants load.Tenants, source Source, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Importer{tenants: tenants, source: source, logger: logger}
}

// Init returns the device's orders, importing the staged plan first if the
// device has none yet.
func (i *Importer) Init(ctx context.Context, deviceID string) ([]load.Order, error) {
	var orders []load.Order
	err := i.tenants.View(ctx, deviceID, func(st load.Store) error {
		list, err := st.Orders().List(ctx)
		if err != nil {
			return load.MapRepoError(err, load.ErrOrderNotFound, "listing orders")
		}
		orders = list
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(orders) > 0 {
		return orders, nil
	}

	order, err := i.Reimport(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return []load.Order{*order}, nil
}

// Reimport pulls the device's plan from the source and imports it.
func (i *Importer) Reimport(ctx context.Context, deviceID string) (*load.Order, error) {
	if i.source == nil {
		return nil, fmt.Errorf("%w: no plan source configured", load.ErrImportFailure)
	}
	p, err := i.source.Fetch(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching plan for %s: %w", load.ErrImportFailure, deviceID, err)
	}
	return i.Import(ctx, deviceID, p)
}

// Import inserts every truck, pallet and item of p missing from the device
// store and persists the order. An order already present keeps its id, status
// and phase but gains any trucks p adds. The whole import runs in one device
// transaction.
func (i *Importer) Import(ctx context.Context, deviceID string, p *Order) (*load.Order, error) {
	if err := Validate(p); err != nil {
		return nil, fmt.Errorf("%w: %w", load.ErrImportFailure, err)
	}

	var (
		result   *load.Order
		inserted counts
	)
	err := i.tenants.Update(ctx, deviceID, func(st load.Store) error {
		active, err := st.Orders().GetByDevice(ctx, deviceID)
		switch {
		case err == nil && active.ID != p.ID:
			return fmt.Errorf("%w: device %s already holds order %s", load.ErrImportFailure, deviceID, active.ID)
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return load.MapRepoError(err, load.ErrOrderNotFound, "checking active order")
		}

		uniq := newItemCounter()
		truckIDs := make([]string, 0, len(p.Trucks))
		for _, t := range p.Trucks {
			truckIDs = append(truckIDs, t.ID)
			if err := i.insertTruck(ctx, st, t, uniq, &inserted); err != nil {
				return err
			}
		}

		existing := active
		if existing == nil {
			existing, err = st.Orders().Get(ctx, p.ID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return load.MapRepoError(err, load.ErrOrderNotFound, "checking order")
			}
		}
		if existing != nil {
			if err := extendOrder(ctx, st, deviceID, existing, truckIDs); err != nil {
				return err
			}
			result = existing
			return nil
		}

		order := &load.Order{
			ID:        p.ID,
			DeviceID:  deviceID,
			TruckIDs:  truckIDs,
			Status:    load.StatusReady,
			Phase:     1,
			ItemsUniq: uniq.list(),
		}
		if err := st.Orders().Create(ctx, order); err != nil {
			return load.MapRepoError(err, load.ErrOrderNotFound, "creating order")
		}

		entry := journal.NewEntry(deviceID, order.ID, journal.TypePlanImported, order.ID,
			fmt.Sprintf("imported order %s", order.ID)).
			WithDetails(map[string]int{
				"trucks":      inserted.trucks,
				"pallets":     inserted.pallets,
				"items":       inserted.items,
				"occurrences": p.Occurrences(),
			})
		if err := st.Journal().Log(ctx, entry); err != nil {
			return load.MapRepoError(err, load.ErrNotFound, "logging import")
		}

		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	i.logger.Info("plan imported",
		"device_id", deviceID,
		"order_id", result.ID,
		"new_trucks", inserted.trucks,
		"new_pallets", inserted.pallets,
		"new_items", inserted.items,
	)
	return result, nil
}

// Discard deletes an order with its trucks, pallets and items, leaving the
// rest of the device store alone. The device can then import again.
func (i *Importer) Discard(ctx context.Context, deviceID, orderID string) error {
	err := i.tenants.Update(ctx, deviceID, func(st load.Store) error {
		if err := st.Orders().DeleteCascade(ctx, orderID); err != nil {
			return load.MapRepoError(err, load.ErrOrderNotFound, "discarding order")
		}
		entry := journal.NewEntry(deviceID, orderID, journal.TypeOrderDiscarded, orderID,
			fmt.Sprintf("discarded order %s", orderID))
		if err := st.Journal().Log(ctx, entry); err != nil {
			return load.MapRepoError(err, load.ErrNotFound, "logging discard")
		}
		return nil
	})
	if err != nil {
		return err
	}
	i.logger.Info("order discarded", "device_id", deviceID, "order_id", orderID)
	return nil
}

// extendOrder links trucks a repeated import added to an existing order and
// recounts its item types from the store over every listed truck. Status and
// phase are left alone.
func extendOrder(ctx context.Context, st load.Store, deviceID string, order *load.Order, planTruckIDs []string) error {
	merged := slices.Clone(order.TruckIDs)
	for _, id := range planTruckIDs {
		if !slices.Contains(merged, id) {
			merged = append(merged, id)
		}
	}

	uniq := newItemCounter()
	for _, truckID := range merged {
		truck, err := load.GetTruck(ctx, st, truckID)
		if err != nil {
			return err
		}
		for _, palletID := range truck.PalletIDs {
			pallet, err := load.GetPallet(ctx, st, palletID)
			if err != nil {
				return err
			}
			for _, itemID := range pallet.ItemIDs {
				uniq.add(itemID)
			}
		}
	}
	counted := uniq.list()

	if slices.Equal(merged, order.TruckIDs) && slices.Equal(counted, order.ItemsUniq) {
		return nil
	}
	added := len(merged) - len(order.TruckIDs)
	order.TruckIDs = merged
	order.ItemsUniq = counted
	if err := st.Orders().SetStructure(ctx, order); err != nil {
		return load.MapRepoError(err, load.ErrOrderNotFound, "extending order")
	}

	entry := journal.NewEntry(deviceID, order.ID, journal.TypePlanImported, order.ID,
		fmt.Sprintf("extended order %s", order.ID)).
		WithDetails(map[string]int{"added_trucks": added})
	if err := st.Journal().Log(ctx, entry); err != nil {
		return load.MapRepoError(err, load.ErrNotFound, "logging import")
	}
	return nil
}

type counts struct {
	trucks  int
	pallets int
	items   int
}

func (i *Importer) insertTruck(ctx context.Context, st load.Store, t Truck, uniq *itemCounter, inserted *counts) error {
	ok, err := st.Trucks().Exists(ctx, t.ID)
	if err != nil {
		return load.MapRepoError(err, load.ErrTruckNotFound, "checking truck")
	}
	if !ok {
		if err := st.Trucks().Create(ctx, t.toTruck()); err != nil {
			return load.MapRepoError(err, load.ErrTruckNotFound, "creating truck")
		}
		inserted.trucks++
	}

	for _, p := range t.Pallets {
		ok, err := st.Pallets().Exists(ctx, p.ID)
		if err != nil {
			return load.MapRepoError(err, load.ErrPalletNotFound, "checking pallet")
		}
		if !ok {
			if err := st.Pallets().Create(ctx, p.toPallet(t.ID)); err != nil {
				return load.MapRepoError(err, load.ErrPalletNotFound, "creating pallet")
			}
			// A structural change restarts pallet progress for the whole device.
			if err := st.Pallets().ResetAllFinished(ctx); err != nil {
				return load.MapRepoError(err, load.ErrPalletNotFound, "resetting pallets")
			}
			inserted.pallets++
		}

		for _, it := range p.Items {
			uniq.add(it.ItemID)
			ok, err := st.Items().Exists(ctx, it.ItemID)
			if err != nil {
				return load.MapRepoError(err, load.ErrItemNotFound, "checking item")
			}
			if ok {
				continue
			}
			if err := st.Items().Create(ctx, it.toItem()); err != nil {
				return load.MapRepoError(err, load.ErrItemNotFound, "creating item")
			}
			inserted.items++
		}
	}
	return nil
}

// itemCounter counts occurrences per item type, remembering first-seen order.
type itemCounter struct {
	order []string
	n     map[string]int
}

func newItemCounter() *itemCounter {
	return &itemCounter{n: make(map[string]int)}
}

func (c *itemCounter) add(id string) {
	if _, seen := c.n[id]; !seen {
		c.order = append(c.order, id)
	}
	c.n[id]++
}

func (c *itemCounter) list() []load.ItemCount {
	out := make([]load.ItemCount, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, load.ItemCount{ItemID: id, Count: c.n[id]})
	}
	return out
}
