package fulfillment

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

const defaultPendingLimit = 5

// Service drives the item, pallet, truck and order state machine of a device.
type Service struct {
	tenants  load.Tenants
	evidence EvidenceSource
	notifier Notifier
	logger   *slog.Logger
}

// NewService creates a new fulfillment service. evidence and notifier may be nil.
func NewService(tenants load.Tenants, evidence EvidenceSource, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{tenants: tenants, evidence: evidence, notifier: notifier, logger: logger}
}

// RecordPlacementRequest attaches placement evidence to an item and moves the
// orders and trucks holding it into progress.
func (s *Service) RecordPlacementRequest(ctx context.Context, deviceID, itemID string) (*PlacementEvidence, error) {
	err := s.tenants.View(ctx, deviceID, func(st load.Store) error {
		_, err := load.GetItem(ctx, st, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	images := []string{}
	if s.evidence != nil {
		images, err = s.evidence.Images(ctx, itemID)
		if err != nil {
			return nil, fmt.Errorf("resolving placement evidence: %w", err)
		}
	}

	err = s.tenants.Update(ctx, deviceID, func(st load.Store) error {
		if err := st.Items().SetEvidence(ctx, itemID, images); err != nil {
			return load.MapRepoError(err, load.ErrItemNotFound, "storing evidence")
		}

		trees, err := treesContaining(ctx, st, itemID)
		if err != nil {
			return err
		}
		for _, tree := range trees {
			order := tree.order
			if order.Status != load.StatusCompleted && (order.Phase != 2 || order.Status != load.StatusInProgress) {
				order.Phase = 2
				order.Status = load.StatusInProgress
				if err := st.Orders().Update(ctx, order); err != nil {
					return load.MapRepoError(err, load.ErrOrderNotFound, "updating order")
				}
			}
			for _, node := range tree.trucks {
				if !truckHolds(node, itemID) {
					continue
				}
				if err := advanceTruck(ctx, st, node.truck, load.StatusInProgress); err != nil {
					return err
				}
			}

			entry := journal.NewEntry(deviceID, order.ID, journal.TypePlacementRequested, itemID,
				fmt.Sprintf("placement requested for item %s", itemID)).
				WithDetails(map[string]int{"images": len(images)})
			if err := st.Journal().Log(ctx, entry); err != nil {
				return load.MapRepoError(err, load.ErrNotFound, "logging placement request")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &PlacementEvidence{ItemID: itemID, Images: images}, nil
}

// MarkPlaced sets the item to Placed and rescans every order holding it.
// Pallets with all items placed are finished, trucks and orders with none
// left are completed. Outcome.Done is set once the owning order has nothing
// left to place.
func (s *Service) MarkPlaced(ctx context.Context, deviceID, itemID string) (*Outcome, error) {
	outcome := &Outcome{ItemID: itemID}
	var completed []string

	err := s.tenants.Update(ctx, deviceID, func(st load.Store) error {
		item, err := load.GetItem(ctx, st, itemID)
		if err != nil {
			return err
		}
		if item.Status != load.ItemPlaced {
			if err := st.Items().UpdateStatus(ctx, itemID, load.ItemPlaced); err != nil {
				return load.MapRepoError(err, load.ErrItemNotFound, "placing item")
			}
		}

		trees, err := treesContaining(ctx, st, itemID)
		if err != nil {
			return err
		}
		for _, tree := range trees {
			if item.Status != load.ItemPlaced {
				entry := journal.NewEntry(deviceID, tree.order.ID, journal.TypeItemPlaced, itemID,
					fmt.Sprintf("item %s placed", itemID))
				if err := st.Journal().Log(ctx, entry); err != nil {
					return load.MapRepoError(err, load.ErrNotFound, "logging placement")
				}
			}
			done, err := s.cascade(ctx, st, deviceID, tree, outcome)
			if err != nil {
				return err
			}
			if done {
				completed = append(completed, tree.order.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, orderID := range completed {
		s.logger.Info("order completed", "device_id", deviceID, "order_id", orderID)
		if s.notifier != nil {
			s.notifier.OrderCompleted(ctx, deviceID, orderID)
		}
	}
	return outcome, nil
}

// cascade recomputes pallet, truck and order completion by a full rescan of
// tree. It reports whether the order transitioned to Completed.
func (s *Service) cascade(ctx context.Context, st load.Store, deviceID string, tree *orderTree, outcome *Outcome) (bool, error) {
	order := tree.order
	outcome.OrderID = order.ID
	orderUnplaced := 0

	for _, node := range tree.trucks {
		truckUnplaced, truckPlaced := 0, 0
		for _, pallet := range node.pallets {
			palletUnplaced := 0
			for _, id := range pallet.ItemIDs {
				if tree.placed(id) {
					truckPlaced++
				} else {
					palletUnplaced++
				}
			}
			truckUnplaced += palletUnplaced

			if palletUnplaced == 0 && !pallet.Finished {
				if err := st.Pallets().SetFinished(ctx, pallet.ID, true); err != nil {
					return false, load.MapRepoError(err, load.ErrPalletNotFound, "finishing pallet")
				}
				pallet.Finished = true
				outcome.FinishedPallets = append(outcome.FinishedPallets, pallet.ID)
				if err := logEntry(ctx, st, deviceID, order.ID, journal.TypePalletFinished, pallet.ID,
					fmt.Sprintf("pallet %s finished", pallet.ID)); err != nil {
					return false, err
				}
				s.logger.Info("pallet finished", "device_id", deviceID, "pallet_id", pallet.ID)
			}
		}

		truck := node.truck
		switch {
		case truckUnplaced == 0 && truck.Status.Advances(load.StatusCompleted):
			if err := advanceTruck(ctx, st, truck, load.StatusCompleted); err != nil {
				return false, err
			}
			outcome.CompletedTrucks = append(outcome.CompletedTrucks, truck.ID)
			if err := logEntry(ctx, st, deviceID, order.ID, journal.TypeTruckCompleted, truck.ID,
				fmt.Sprintf("truck %s completed", truck.ID)); err != nil {
				return false, err
			}
			s.logger.Info("truck completed", "device_id", deviceID, "truck_id", truck.ID)
		case truckUnplaced > 0 && truckPlaced > 0:
			if err := advanceTruck(ctx, st, truck, load.StatusInProgress); err != nil {
				return false, err
			}
		}
		orderUnplaced += truckUnplaced
	}

	outcome.Remaining += orderUnplaced
	if orderUnplaced > 0 {
		if order.Status.Advances(load.StatusInProgress) {
			order.Status = load.StatusInProgress
			if err := st.Orders().Update(ctx, order); err != nil {
				return false, load.MapRepoError(err, load.ErrOrderNotFound, "updating order")
			}
		}
		return false, nil
	}

	outcome.Done = true
	if !order.Status.Advances(load.StatusCompleted) {
		return false, nil
	}
	order.Status = load.StatusCompleted
	if err := st.Orders().Update(ctx, order); err != nil {
		return false, load.MapRepoError(err, load.ErrOrderNotFound, "completing order")
	}
	if err := logEntry(ctx, st, deviceID, order.ID, journal.TypeOrderCompleted, order.ID,
		fmt.Sprintf("order %s completed", order.ID)); err != nil {
		return false, err
	}
	return true, nil
}

// FinishPallet marks a pallet finished regardless of its items.
func (s *Service) FinishPallet(ctx context.Context, deviceID, palletID string) (*load.Pallet, error) {
	var pallet *load.Pallet
	err := s.tenants.Update(ctx, deviceID, func(st load.Store) error {
		p, err := load.GetPallet(ctx, st, palletID)
		if err != nil {
			return err
		}
		pallet = p
		if p.Finished {
			return nil
		}
		if err := st.Pallets().SetFinished(ctx, palletID, true); err != nil {
			return load.MapRepoError(err, load.ErrPalletNotFound, "finishing pallet")
		}
		p.Finished = true

		orderID := ""
		if order, err := st.Orders().GetByDevice(ctx, deviceID); err == nil {
			orderID = order.ID
		}
		return logEntry(ctx, st, deviceID, orderID, journal.TypePalletFinished, palletID,
			fmt.Sprintf("pallet %s finished", palletID))
	})
	if err != nil {
		return nil, err
	}
	return pallet, nil
}

// NextPallet returns the first unfinished pallet, by insertion order, among
// the order's trucks. When none is left the order is reported complete.
func (s *Service) NextPallet(ctx context.Context, deviceID, orderID string) (*Next, error) {
	var (
		next     *Next
		notified bool
	)
	err := s.tenants.View(ctx, deviceID, func(st load.Store) error {
		order, err := load.GetOrder(ctx, st, orderID)
		if err != nil {
			return err
		}

		var (
			trucks    []*load.Truck
			palletIDs []string
		)
		for _, truckID := range order.TruckIDs {
			truck, err := st.Trucks().Get(ctx, truckID)
			if err != nil {
				return dangling(err, "order", order.ID, truckID, "loading truck")
			}
			trucks = append(trucks, truck)
			palletIDs = append(palletIDs, truck.PalletIDs...)
		}

		pallet, err := st.Pallets().FirstUnfinished(ctx, palletIDs)
		if errors.Is(err, repository.ErrNotFound) {
			next = &Next{OrderComplete: true}
			notified = order.Status != load.StatusCompleted
			return nil
		}
		if err != nil {
			return load.MapRepoError(err, load.ErrPalletNotFound, "selecting next pallet")
		}

		for _, truck := range trucks {
			if slices.Contains(truck.PalletIDs, pallet.ID) {
				next = &Next{Pallet: &PalletRef{
					OrderID:     order.ID,
					TruckID:     truck.ID,
					GateID:      truck.ID,
					PalletID:    pallet.ID,
					PalletCount: len(truck.PalletIDs),
				}}
				return nil
			}
		}
		return &load.ConsistencyError{Parent: "order", ParentID: order.ID, ChildID: pallet.ID}
	})
	if err != nil {
		return nil, err
	}

	if notified {
		s.logger.Info("order has no unfinished pallets", "device_id", deviceID, "order_id", orderID)
		if s.notifier != nil {
			s.notifier.OrderCompleted(ctx, deviceID, orderID)
		}
	}
	return next, nil
}

// PendingItems returns up to limit item occurrences not yet placed, walking
// the order's trucks and pallets in plan order.
func (s *Service) PendingItems(ctx context.Context, deviceID, orderID string, limit int) ([]PendingItem, error) {
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	pending := []PendingItem{}
	err := s.tenants.View(ctx, deviceID, func(st load.Store) error {
		order, err := load.GetOrder(ctx, st, orderID)
		if err != nil {
			return err
		}
		tree, err := walkOrder(ctx, st, order)
		if err != nil {
			return err
		}
		for _, node := range tree.trucks {
			for _, pallet := range node.pallets {
				for _, id := range pallet.ItemIDs {
					if tree.placed(id) {
						continue
					}
					pending = append(pending, PendingItem{
						ItemID:   id,
						Name:     tree.items[id].Name,
						PalletID: pallet.ID,
						TruckID:  node.truck.ID,
					})
					if len(pending) == limit {
						return nil
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func advanceTruck(ctx context.Context, st load.Store, truck *load.Truck, next load.Status) error {
	if !truck.Status.Advances(next) {
		return nil
	}
	if err := st.Trucks().UpdateStatus(ctx, truck.ID, next); err != nil {
		return load.MapRepoError(err, load.ErrTruckNotFound, "updating truck")
	}
	truck.Status = next
	return nil
}

func truckHolds(node truckNode, itemID string) bool {
	for _, p := range node.pallets {
		if slices.Contains(p.ItemIDs, itemID) {
			return true
		}
	}
	return false
}

func logEntry(ctx context.Context, st load.Store, deviceID, orderID string, t journal.EntryType, entityID, summary string) error {
	if err := st.Journal().Log(ctx, journal.NewEntry(deviceID, orderID, t, entityID, summary)); err != nil {
		return load.MapRepoError(err, load.ErrNotFound, "logging "+string(t))
	}
	return nil
}
