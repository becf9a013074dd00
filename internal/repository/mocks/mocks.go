package mocks

import (
	"context"

	"github.com/ganot/feapi/internal/domain/journal"
	"github.com/ganot/feapi/internal/domain/load"
	"github.com/stretchr/testify/mock"
)

// OrderRepository is a mock for load.OrderRepository.
type OrderRepository struct {
	mock.Mock
}

func (m *OrderRepository) Create(ctx context.Context, order *load.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *OrderRepository) Get(ctx context.Context, id string) (*load.Order, error) {
	args := m.Called(ctx, id)
	if order, ok := args.Get(0).(*load.Order); ok {
		return order, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *OrderRepository) GetByDevice(ctx context.Context, deviceID string) (*load.Order, error) {
	args := m.Called(ctx, deviceID)
	if order, ok := args.Get(0).(*load.Order); ok {
		return order, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *OrderRepository) List(ctx context.Context) ([]load.Order, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]load.Order); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *OrderRepository) Update(ctx context.Context, order *load.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *OrderRepository) SetStructure(ctx context.Context, order *load.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *OrderRepository) DeleteCascade(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// TruckRepository is a mock for load.TruckRepository.
type TruckRepository struct {
	mock.Mock
}

func (m *TruckRepository) Create(ctx context.Context, truck *load.Truck) error {
	args := m.Called(ctx, truck)
	return args.Error(0)
}

func (m *TruckRepository) Get(ctx context.Context, id string) (*load.Truck, error) {
	args := m.Called(ctx, id)
	if truck, ok := args.Get(0).(*load.Truck); ok {
		return truck, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TruckRepository) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *TruckRepository) UpdateStatus(ctx context.Context, id string, status load.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// PalletRepository is a mock for load.PalletRepository.
type PalletRepository struct {
	mock.Mock
}

func (m *PalletRepository) Create(ctx context.Context, pallet *load.Pallet) error {
	args := m.Called(ctx, pallet)
	return args.Error(0)
}

func (m *PalletRepository) Get(ctx context.Context, id string) (*load.Pallet, error) {
	args := m.Called(ctx, id)
	if pallet, ok := args.Get(0).(*load.Pallet); ok {
		return pallet, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PalletRepository) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *PalletRepository) ListByTruck(ctx context.Context, truckID string) ([]load.Pallet, error) {
	args := m.Called(ctx, truckID)
	if list, ok := args.Get(0).([]load.Pallet); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PalletRepository) FirstUnfinished(ctx context.Context, ids []string) (*load.Pallet, error) {
	args := m.Called(ctx, ids)
	if pallet, ok := args.Get(0).(*load.Pallet); ok {
		return pallet, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PalletRepository) SetFinished(ctx context.Context, id string, finished bool) error {
	args := m.Called(ctx, id, finished)
	return args.Error(0)
}

func (m *PalletRepository) ResetAllFinished(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// ItemRepository is a mock for load.ItemRepository.
type ItemRepository struct {
	mock.Mock
}

func (m *ItemRepository) Create(ctx context.Context, item *load.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *ItemRepository) Get(ctx context.Context, id string) (*load.Item, error) {
	args := m.Called(ctx, id)
	if item, ok := args.Get(0).(*load.Item); ok {
		return item, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ItemRepository) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *ItemRepository) UpdateStatus(ctx context.Context, id string, status load.ItemStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *ItemRepository) SetEvidence(ctx context.Context, id string, refs []string) error {
	args := m.Called(ctx, id, refs)
	return args.Error(0)
}

// JournalRepository is a mock for journal.Repository.
type JournalRepository struct {
	mock.Mock
}

func (m *JournalRepository) Log(ctx context.Context, entry *journal.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *JournalRepository) List(ctx context.Context, opts journal.ListOptions) ([]journal.Entry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]journal.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// Store bundles mock repositories into a load.Store.
type Store struct {
	OrderRepo   *OrderRepository
	TruckRepo   *TruckRepository
	PalletRepo  *PalletRepository
	ItemRepo    *ItemRepository
	JournalRepo *JournalRepository
}

// NewStore returns a Store with empty mocks.
func NewStore() *Store {
	return &Store{
		OrderRepo:   &OrderRepository{},
		TruckRepo:   &TruckRepository{},
		PalletRepo:  &PalletRepository{},
		ItemRepo:    &ItemRepository{},
		JournalRepo: &JournalRepository{},
	}
}

func (s *Store) Orders() load.OrderRepository   { return s.OrderRepo }
func (s *Store) Trucks() load.TruckRepository   { return s.TruckRepo }
func (s *Store) Pallets() load.PalletRepository { return s.PalletRepo }
func (s *Store) Items() load.ItemRepository     { return s.ItemRepo }
func (s *Store) Journal() journal.Repository    { return s.JournalRepo }

// Tenants hands the same Store to every device unless Err is set.
type Tenants struct {
	Store *Store
	Err   error
}

func (t *Tenants) View(_ context.Context, _ string, fn func(load.Store) error) error {
	if t.Err != nil {
		return t.Err
	}
	return fn(t.Store)
}

func (t *Tenants) Update(_ context.Context, _ string, fn func(load.Store) error) error {
	if t.Err != nil {
		return t.Err
	}
	return fn(t.Store)
}

func (t *Tenants) JournalFor(_ context.Context, _ string) (journal.Repository, error) {
	if t.Err != nil {
		return nil, t.Err
	}
	return t.Store.JournalRepo, nil
}
