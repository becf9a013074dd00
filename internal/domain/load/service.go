package load

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ganot/feapi/internal/repository"
)

// Service is the read-only facade over a device store.
type Service struct {
	tenants Tenants
	logger  *slog.Logger
}

// NewService creates a new query service.
func NewService(tenants Tenants, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{tenants: tenants, logger: logger}
}

// FindOrder fetches an order by id.
func (s *Service) FindOrder(ctx context.Context, deviceID, orderID string) (*Order, error) {
	var order *Order
	err := s.tenants.View(ctx, deviceID, func(st Store) error {
		var err error
		order, err = GetOrder(ctx, st, orderID)
		return err
	})
	return order, err
}

// FindOrderByDevice fetches the order imported for deviceID.
func (s *Service) FindOrderByDevice(ctx context.Context, deviceID string) (*Order, error) {
	var order *Order
	err := s.tenants.View(ctx, deviceID, func(st Store) error {
		o, err := st.Orders().GetByDevice(ctx, deviceID)
		if err != nil {
			return MapRepoError(err, ErrOrderNotFound, "getting order by device")
		}
		order = o
		return nil
	})
	return order, err
}

// FindTruck fetches a truck by id.
func (s *Service) FindTruck(ctx context.Context, deviceID, truckID string) (*Truck, error) {
	var truck *Truck
	err := s.tenants.View(ctx, deviceID, func(st Store) error {
		var err error
		truck, err = GetTruck(ctx, st, truckID)
		return err
	})
	return truck, err
}

// FindPallet fetches a pallet by id.
func (s *Service) FindPallet(ctx context.Context, deviceID, palletID string) (*Pallet, error) {
	var pallet *Pallet
	err := s.tenants.View(ctx, deviceID, func(st Store) error {
		var err error
		pallet, err = GetPallet(ctx, st, palletID)
		return err
	})
	return pallet, err
}

// FindItem fetches an item type by id.
func (s *Service) FindItem(ctx context.Context, deviceID, itemID string) (*Item, error) {
	var item *Item
	err := s.tenants.View(ctx, deviceID, func(st Store) error {
		var err error
		item, err = GetItem(ctx, st, itemID)
		return err
	})
	return item, err
}

// ListPalletsInTruck returns the pallets owned by truckID, sorted by id.
func (s *Service) ListPalletsInTruck(ctx context.Context, deviceID, truckID string) ([]Pallet, error) {
	var pallets []Pallet
	err := s.tenants.View(ctx, deviceID, func(st Store) error {
		if _, err := GetTruck(ctx, st, truckID); err != nil {
			return err
		}
		list, err := st.Pallets().ListByTruck(ctx, truckID)
		if err != nil {
			return MapRepoError(err, ErrPalletNotFound, "listing pallets")
		}
		pallets = list
		return nil
	})
	return pallets, err
}

// ListOrders returns every order in the device store, sorted by id.
func (s *Service) ListOrders(ctx context.Context, deviceID string) ([]Order, error) {
	var orders []Order
	err := s.tenants.View(ctx, deviceID, func(st Store) error {
		list, err := st.Orders().List(ctx)
		if err != nil {
			return MapRepoError(err, ErrOrderNotFound, "listing orders")
		}
		orders = list
		return nil
	})
	return orders, err
}

// OrderStatus returns the status of an order.
func (s *Service) OrderStatus(ctx context.Context, deviceID, orderID string) (Status, error) {
	order, err := s.FindOrder(ctx, deviceID, orderID)
	if err != nil {
		return "", err
	}
	return order.Status, nil
}

// TruckStatus returns the status of a truck.
func (s *Service) TruckStatus(ctx context.Context, deviceID, truckID string) (Status, error) {
	truck, err := s.FindTruck(ctx, deviceID, truckID)
	if err != nil {
		return "", err
	}
	return truck.Status, nil
}

// GetOrder loads an order from st, mapping a miss to ErrOrderNotFound.
func GetOrder(ctx context.Context, st Store, id string) (*Order, error) {
	order, err := st.Orders().Get(ctx, id)
	if err != nil {
		return nil, MapRepoError(err, ErrOrderNotFound, "getting order")
	}
	return order, nil
}

// GetTruck loads a truck from st, mapping a miss to ErrTruckNotFound.
func GetTruck(ctx context.Context, st Store, id string) (*Truck, error) {
	truck, err := st.Trucks().Get(ctx, id)
	if err != nil {
		return nil, MapRepoError(err, ErrTruckNotFound, "getting truck")
	}
	return truck, nil
}

// GetPallet loads a pallet from st, mapping a miss to ErrPalletNotFound.
func GetPallet(ctx context.Context, st Store, id string) (*Pallet, error) {
	pallet, err := st.Pallets().Get(ctx, id)
	if err != nil {
		return nil, MapRepoError(err, ErrPalletNotFound, "getting pallet")
	}
	return pallet, nil
}

// GetItem loads an item from st, mapping a miss to ErrItemNotFound.
func GetItem(ctx context.Context, st Store, id string) (*Item, error) {
	item, err := st.Items().Get(ctx, id)
	if err != nil {
		return nil, MapRepoError(err, ErrItemNotFound, "getting item")
	}
	return item, nil
}

// MapRepoError translates repository errors into domain errors.
func MapRepoError(err error, notFound error, op string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound
	case errors.Is(err, repository.ErrStoreUnavailable):
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
