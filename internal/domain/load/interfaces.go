package load

import (
	"context"

	"github.com/ganot/feapi/internal/domain/journal"
)

// OrderRepository persists orders of one device store.
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByDevice(ctx context.Context, deviceID string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	Update(ctx context.Context, order *Order) error
	SetStructure(ctx context.Context, order *Order) error
	DeleteCascade(ctx context.Context, id string) error
}

// TruckRepository persists trucks of one device store.
type TruckRepository interface {
	Create(ctx context.Context, truck *Truck) error
	Get(ctx context.Context, id string) (*Truck, error)
	Exists(ctx context.Context, id string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// PalletRepository persists pallets of one device store.
type PalletRepository interface {
	Create(ctx context.Context, pallet *Pallet) error
	Get(ctx context.Context, id string) (*Pallet, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListByTruck(ctx context.Context, truckID string) ([]Pallet, error)
	FirstUnfinished(ctx context.Context, ids []string) (*Pallet, error)
	SetFinished(ctx context.Context, id string, finished bool) error
	ResetAllFinished(ctx context.Context) error
}

// ItemRepository persists item types of one device store.
type ItemRepository interface {
	Create(ctx context.Context, item *Item) error
	Get(ctx context.Context, id string) (*Item, error)
	Exists(ctx context.Context, id string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status ItemStatus) error
	SetEvidence(ctx context.Context, id string, refs []string) error
}

// Store bundles the repositories of one device.
type Store interface {
	Orders() OrderRepository
	Trucks() TruckRepository
	Pallets() PalletRepository
	Items() ItemRepository
	Journal() journal.Repository
}

// Tenants hands out device stores. Update serializes mutations per device and
// runs fn in a single transaction; View does neither.
type Tenants interface {
	View(ctx context.Context, deviceID string, fn func(Store) error) error
	Update(ctx context.Context, deviceID string, fn func(Store) error) error
}
