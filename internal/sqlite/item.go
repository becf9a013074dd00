package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ganot/feapi/internal/domain/load"
	"github.com/ganot/feapi/internal/repository"
)

// ItemRepository implements load.ItemRepository for SQLite
type ItemRepository struct {
	db Querier
}

// NewItemRepository creates a new ItemRepository
func NewItemRepository(db Querier) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create inserts an item type
func (r *ItemRepository) Create(ctx context.Context, item *load.Item) error {
	h := item.Handling
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO items (
			id, name, descr, color, width, height, depth, x, y, z, r, gross_weight,
			fragile, top_side_up, heavy, must_be_on_top, flammable, dangerous,
			packed_alone, stackable, load_capacity, unit, hedgehog, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ID, item.Name, item.Description, item.Color,
		item.Width, item.Height, item.Depth,
		item.X, item.Y, item.Z, item.R, item.GrossWeight,
		h.Fragile, h.TopSideUp, h.Heavy, h.MustBeOnTop, h.Flammable, h.Dangerous,
		h.PackedAlone, h.Stackable, h.LoadCapacity, h.Unit, h.Hedgehog,
		item.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", mapDriverError(err))
	}
	return r.writeEvidence(ctx, item.ID, item.Evidence)
}

// Get retrieves an item type by ID, including its placement evidence
func (r *ItemRepository) Get(ctx context.Context, id string) (*load.Item, error) {
	var item load.Item
	h := &item.Handling
	err := r.db.QueryRowContext(ctx, `
		SELECT
			id, name, descr, color, width, height, depth, x, y, z, r, gross_weight,
			fragile, top_side_up, heavy, must_be_on_top, flammable, dangerous,
			packed_alone, stackable, load_capacity, unit, hedgehog, status
		FROM items
		WHERE id = ?
	`, id).Scan(
		&item.ID, &item.Name, &item.Description, &item.Color,
		&item.Width, &item.Height, &item.Depth,
		&item.X, &item.Y, &item.Z, &item.R, &item.GrossWeight,
		&h.Fragile, &h.TopSideUp, &h.Heavy, &h.MustBeOnTop, &h.Flammable, &h.Dangerous,
		&h.PackedAlone, &h.Stackable, &h.LoadCapacity, &h.Unit, &h.Hedgehog,
		&item.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", mapDriverError(err))
	}

	refs, err := queryStrings(ctx, r.db,
		`SELECT ref FROM item_evidence WHERE item_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load item evidence: %w", err)
	}
	item.Evidence = refs

	return &item, nil
}

// Exists reports whether an item type with the ID is stored
func (r *ItemRepository) Exists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, r.db, `SELECT COUNT(*) FROM items WHERE id = ?`, id)
}

// UpdateStatus sets the item status
func (r *ItemRepository) UpdateStatus(ctx context.Context, id string, status load.ItemStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE items SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", mapDriverError(err))
	}
	return requireAffected(result)
}

// SetEvidence replaces the placement evidence references of an item
func (r *ItemRepository) SetEvidence(ctx context.Context, id string, refs []string) error {
	ok, err := r.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrNotFound
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM item_evidence WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear item evidence: %w", mapDriverError(err))
	}
	return r.writeEvidence(ctx, id, refs)
}

func (r *ItemRepository) writeEvidence(ctx context.Context, id string, refs []string) error {
	for i, ref := range refs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO item_evidence (item_id, position, ref) VALUES (?, ?, ?)`,
			id, i, ref); err != nil {
			return fmt.Errorf("failed to store item evidence: %w", mapDriverError(err))
		}
	}
	return nil
}
