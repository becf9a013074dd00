package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ganot/feapi/internal/domain/load"
	"github.com/ganot/feapi/internal/repository"
)

// OrderRepository implements load.OrderRepository for SQLite
type OrderRepository struct {
	db Querier
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db Querier) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts an order with its truck list and item counts
func (r *OrderRepository) Create(ctx context.Context, order *load.Order) error {
	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, hw_id, status, phase, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, order.ID, order.DeviceID, order.Status, order.Phase, createdAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", mapDriverError(err))
	}

	if err := r.writeStructure(ctx, order); err != nil {
		return err
	}

	order.CreatedAt = createdAt
	return nil
}

// SetStructure replaces the truck list and item counts of an existing order
func (r *OrderRepository) SetStructure(ctx context.Context, order *load.Order) error {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE id = ?`, order.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check order: %w", mapDriverError(err))
	}
	if exists == 0 {
		return repository.ErrNotFound
	}

	for _, stmt := range []string{
		`DELETE FROM order_trucks WHERE order_id = ?`,
		`DELETE FROM order_item_counts WHERE order_id = ?`,
	} {
		if _, err := r.db.ExecContext(ctx, stmt, order.ID); err != nil {
			return fmt.Errorf("failed to clear order structure: %w", mapDriverError(err))
		}
	}
	return r.writeStructure(ctx, order)
}

func (r *OrderRepository) writeStructure(ctx context.Context, order *load.Order) error {
	for i, truckID := range order.TruckIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO order_trucks (order_id, position, truck_id) VALUES (?, ?, ?)`,
			order.ID, i, truckID); err != nil {
			return fmt.Errorf("failed to link order truck: %w", mapDriverError(err))
		}
	}

	for i, c := range order.ItemsUniq {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO order_item_counts (order_id, position, item_id, count) VALUES (?, ?, ?, ?)`,
			order.ID, i, c.ItemID, c.Count); err != nil {
			return fmt.Errorf("failed to store item count: %w", mapDriverError(err))
		}
	}
	return nil
}

// Get retrieves an order by ID
func (r *OrderRepository) Get(ctx context.Context, id string) (*load.Order, error) {
	return r.getOne(ctx, `
		SELECT id, hw_id, status, phase, created_at
		FROM orders
		WHERE id = ?
	`, id)
}

// GetByDevice retrieves the first order imported for a device
func (r *OrderRepository) GetByDevice(ctx context.Context, deviceID string) (*load.Order, error) {
	return r.getOne(ctx, `
		SELECT id, hw_id, status, phase, created_at
		FROM orders
		WHERE hw_id = ?
		ORDER BY rowid ASC
		LIMIT 1
	`, deviceID)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, arg string) (*load.Order, error) {
	var order load.Order
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&order.ID,
		&order.DeviceID,
		&order.Status,
		&order.Phase,
		&order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", mapDriverError(err))
	}

	if err := r.loadChildren(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns all orders sorted by ID
func (r *OrderRepository) List(ctx context.Context) ([]load.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, hw_id, status, phase, created_at
		FROM orders
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", mapDriverError(err))
	}
	defer rows.Close()

	orders := []load.Order{}
	for rows.Next() {
		var order load.Order
		if err := rows.Scan(
			&order.ID,
			&order.DeviceID,
			&order.Status,
			&order.Phase,
			&order.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", mapDriverError(err))
	}
	rows.Close()

	for i := range orders {
		if err := r.loadChildren(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// Update persists status and phase
func (r *OrderRepository) Update(ctx context.Context, order *load.Order) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, phase = ? WHERE id = ?`,
		order.Status, order.Phase, order.ID)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", mapDriverError(err))
	}
	return requireAffected(result)
}

// DeleteCascade removes an order, its trucks, their pallets and their items.
// Run it on a transaction-bound repository for an atomic cascade.
func (r *OrderRepository) DeleteCascade(ctx context.Context, id string) error {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check order: %w", mapDriverError(err))
	}
	if exists == 0 {
		return repository.ErrNotFound
	}

	statements := []string{
		`DELETE FROM item_evidence WHERE item_id IN (
			SELECT pi.item_id FROM pallet_items pi
			JOIN truck_pallets tp ON tp.pallet_id = pi.pallet_id
			JOIN order_trucks ot ON ot.truck_id = tp.truck_id
			WHERE ot.order_id = ?)`,
		`DELETE FROM items WHERE id IN (
			SELECT pi.item_id FROM pallet_items pi
			JOIN truck_pallets tp ON tp.pallet_id = pi.pallet_id
			JOIN order_trucks ot ON ot.truck_id = tp.truck_id
			WHERE ot.order_id = ?)`,
		`DELETE FROM pallet_items WHERE pallet_id IN (
			SELECT tp.pallet_id FROM truck_pallets tp
			JOIN order_trucks ot ON ot.truck_id = tp.truck_id
			WHERE ot.order_id = ?)`,
		`DELETE FROM pallets WHERE id IN (
			SELECT tp.pallet_id FROM truck_pallets tp
			JOIN order_trucks ot ON ot.truck_id = tp.truck_id
			WHERE ot.order_id = ?)`,
		`DELETE FROM truck_pallets WHERE truck_id IN (
			SELECT truck_id FROM order_trucks WHERE order_id = ?)`,
		`DELETE FROM trucks WHERE id IN (
			SELECT truck_id FROM order_trucks WHERE order_id = ?)`,
		`DELETE FROM order_item_counts WHERE order_id = ?`,
		`DELETE FROM order_trucks WHERE order_id = ?`,
		`DELETE FROM orders WHERE id = ?`,
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete order: %w", mapDriverError(err))
		}
	}
	return nil
}

func (r *OrderRepository) loadChildren(ctx context.Context, order *load.Order) error {
	truckIDs, err := queryStrings(ctx, r.db,
		`SELECT truck_id FROM order_trucks WHERE order_id = ? ORDER BY position`, order.ID)
	if err != nil {
		return fmt.Errorf("failed to load order trucks: %w", err)
	}
	order.TruckIDs = truckIDs

	rows, err := r.db.QueryContext(ctx,
		`SELECT item_id, count FROM order_item_counts WHERE order_id = ? ORDER BY position`, order.ID)
	if err != nil {
		return fmt.Errorf("failed to load item counts: %w", mapDriverError(err))
	}
	defer rows.Close()

	order.ItemsUniq = []load.ItemCount{}
	for rows.Next() {
		var c load.ItemCount
		if err := rows.Scan(&c.ItemID, &c.Count); err != nil {
			return fmt.Errorf("failed to scan item count: %w", err)
		}
		order.ItemsUniq = append(order.ItemsUniq, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating item counts: %w", mapDriverError(err))
	}
	return nil
}

func queryStrings(ctx context.Context, db Querier, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapDriverError(err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapDriverError(err)
	}
	return values, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
