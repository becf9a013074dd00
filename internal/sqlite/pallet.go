package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ganot/feapi/internal/domain/load"
	"github.com/ganot/feapi/internal/repository"
)

const palletColumns = `id, n, v, u, gross_weight, width, height, depth, truck_id, finished`

// PalletRepository implements load.PalletRepository for SQLite
type PalletRepository struct {
	db Querier
}

// NewPalletRepository creates a new PalletRepository
func NewPalletRepository(db Querier) *PalletRepository {
	return &PalletRepository{db: db}
}

// Create inserts a pallet and its item occurrences
func (r *PalletRepository) Create(ctx context.Context, pallet *load.Pallet) error {
	name := pallet.Name
	if name == "" {
		name = "pallet"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pallets (`+palletColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		pallet.ID,
		name,
		pallet.V,
		pallet.U,
		pallet.GrossWeight,
		pallet.Width,
		pallet.Height,
		pallet.Depth,
		pallet.TruckID,
		pallet.Finished,
	)
	if err != nil {
		return fmt.Errorf("failed to create pallet: %w", mapDriverError(err))
	}

	for i, itemID := range pallet.ItemIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO pallet_items (pallet_id, position, item_id) VALUES (?, ?, ?)`,
			pallet.ID, i, itemID); err != nil {
			return fmt.Errorf("failed to link pallet item: %w", mapDriverError(err))
		}
	}

	pallet.Name = name
	return nil
}

// Get retrieves a pallet by ID
func (r *PalletRepository) Get(ctx context.Context, id string) (*load.Pallet, error) {
	pallet, err := scanPallet(r.db.QueryRowContext(ctx,
		`SELECT `+palletColumns+` FROM pallets WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, pallet); err != nil {
		return nil, err
	}
	return pallet, nil
}

// Exists reports whether a pallet with the ID is stored
func (r *PalletRepository) Exists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, r.db, `SELECT COUNT(*) FROM pallets WHERE id = ?`, id)
}

// ListByTruck returns the pallets owned by a truck sorted by ID
func (r *PalletRepository) ListByTruck(ctx context.Context, truckID string) ([]load.Pallet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+palletColumns+` FROM pallets WHERE truck_id = ? ORDER BY id ASC`, truckID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pallets: %w", mapDriverError(err))
	}
	defer rows.Close()

	pallets := []load.Pallet{}
	for rows.Next() {
		pallet, err := scanPallet(rows)
		if err != nil {
			return nil, err
		}
		pallets = append(pallets, *pallet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pallets: %w", mapDriverError(err))
	}
	rows.Close()

	for i := range pallets {
		if err := r.loadItems(ctx, &pallets[i]); err != nil {
			return nil, err
		}
	}
	return pallets, nil
}

// FirstUnfinished returns the earliest inserted unfinished pallet among ids
func (r *PalletRepository) FirstUnfinished(ctx context.Context, ids []string) (*load.Pallet, error) {
	if len(ids) == 0 {
		return nil, repository.ErrNotFound
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	pallet, err := scanPallet(r.db.QueryRowContext(ctx, `
		SELECT `+palletColumns+`
		FROM pallets
		WHERE finished = 0 AND id IN (`+placeholders+`)
		ORDER BY rowid ASC
		LIMIT 1
	`, args...))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, pallet); err != nil {
		return nil, err
	}
	return pallet, nil
}

// SetFinished sets the finished flag of one pallet
func (r *PalletRepository) SetFinished(ctx context.Context, id string, finished bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE pallets SET finished = ? WHERE id = ?`, finished, id)
	if err != nil {
		return fmt.Errorf("failed to update pallet: %w", mapDriverError(err))
	}
	return requireAffected(result)
}

// ResetAllFinished clears the finished flag of every pallet in the store
func (r *PalletRepository) ResetAllFinished(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE pallets SET finished = 0`); err != nil {
		return fmt.Errorf("failed to reset pallets: %w", mapDriverError(err))
	}
	return nil
}

func (r *PalletRepository) loadItems(ctx context.Context, pallet *load.Pallet) error {
	itemIDs, err := queryStrings(ctx, r.db,
		`SELECT item_id FROM pallet_items WHERE pallet_id = ? ORDER BY position`, pallet.ID)
	if err != nil {
		return fmt.Errorf("failed to load pallet items: %w", err)
	}
	pallet.ItemIDs = itemIDs
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPallet(row rowScanner) (*load.Pallet, error) {
	var pallet load.Pallet
	err := row.Scan(
		&pallet.ID,
		&pallet.Name,
		&pallet.V,
		&pallet.U,
		&pallet.GrossWeight,
		&pallet.Width,
		&pallet.Height,
		&pallet.Depth,
		&pallet.TruckID,
		&pallet.Finished,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pallet: %w", mapDriverError(err))
	}
	return &pallet, nil
}
