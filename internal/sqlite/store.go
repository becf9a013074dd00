package sqlite

import (
	"context"
	"fmt"

	"github.com/ganot/feapi/internal/domain/journal"
	"github.com/ganot/feapi/internal/domain/load"
)

// Store binds the repositories of one device to a connection or transaction
type Store struct {
	db      Querier
	orders  *OrderRepository
	trucks  *TruckRepository
	pallets *PalletRepository
	items   *ItemRepository
	journal *JournalRepository
}

// NewStore creates a Store over db
func NewStore(db Querier) *Store {
	return &Store{
		db:      db,
		orders:  NewOrderRepository(db),
		trucks:  NewTruckRepository(db),
		pallets: NewPalletRepository(db),
		items:   NewItemRepository(db),
		journal: NewJournalRepository(db),
	}
}

func (s *Store) Orders() load.OrderRepository   { return s.orders }
func (s *Store) Trucks() load.TruckRepository   { return s.trucks }
func (s *Store) Pallets() load.PalletRepository { return s.pallets }
func (s *Store) Items() load.ItemRepository     { return s.items }
func (s *Store) Journal() journal.Repository    { return s.journal }

// entityTables are wiped by Truncate; the journal is kept.
var entityTables = []string{
	"item_evidence",
	"items",
	"pallet_items",
	"pallets",
	"truck_pallets",
	"trucks",
	"order_item_counts",
	"order_trucks",
	"orders",
}

// Truncate deletes every order, truck, pallet and item in the store
func (s *Store) Truncate(ctx context.Context) error {
	for _, table := range entityTables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, mapDriverError(err))
		}
	}
	return nil
}

// Counts returns the number of rows in each entity collection
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, 4)
	for _, table := range []string{"orders", "trucks", "pallets", "items"} {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, mapDriverError(err))
		}
		counts[table] = n
	}
	return counts, nil
}
