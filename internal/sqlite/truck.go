package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ganot/feapi/internal/domain/load"
	"github.com/ganot/feapi/internal/repository"
)

// TruckRepository implements load.TruckRepository for SQLite
type TruckRepository struct {
	db Querier
}

// NewTruckRepository creates a new TruckRepository
func NewTruckRepository(db Querier) *TruckRepository {
	return &TruckRepository{db: db}
}

// Create inserts a truck and its ordered pallet list
func (r *TruckRepository) Create(ctx context.Context, truck *load.Truck) error {
	name := truck.Name
	if name == "" {
		name = "truck"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trucks (id, n, brand, status)
		VALUES (?, ?, ?, ?)
	`, truck.ID, name, truck.Brand, truck.Status)
	if err != nil {
		return fmt.Errorf("failed to create truck: %w", mapDriverError(err))
	}

	for i, palletID := range truck.PalletIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO truck_pallets (truck_id, position, pallet_id) VALUES (?, ?, ?)`,
			truck.ID, i, palletID); err != nil {
			return fmt.Errorf("failed to link truck pallet: %w", mapDriverError(err))
		}
	}

	truck.Name = name
	return nil
}

// Get retrieves a truck by ID
func (r *TruckRepository) Get(ctx context.Context, id string) (*load.Truck, error) {
	var truck load.Truck
	err := r.db.QueryRowContext(ctx, `
		SELECT id, n, brand, status
		FROM trucks
		WHERE id = ?
	`, id).Scan(&truck.ID, &truck.Name, &truck.Brand, &truck.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get truck: %w", mapDriverError(err))
	}

	palletIDs, err := queryStrings(ctx, r.db,
		`SELECT pallet_id FROM truck_pallets WHERE truck_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load truck pallets: %w", err)
	}
	truck.PalletIDs = palletIDs

	return &truck, nil
}

// Exists reports whether a truck with the ID is stored
func (r *TruckRepository) Exists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, r.db, `SELECT COUNT(*) FROM trucks WHERE id = ?`, id)
}

// UpdateStatus sets the truck status
func (r *TruckRepository) UpdateStatus(ctx context.Context, id string, status load.Status) error {
	result, err := r.db.ExecContext(ctx, `UPDATE trucks SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update truck: %w", mapDriverError(err))
	}
	return requireAffected(result)
}

func exists(ctx context.Context, db Querier, query string, args ...any) (bool, error) {
	var count int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check existence: %w", mapDriverError(err))
	}
	return count > 0, nil
}
