package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection backing one device store
type DB struct {
	*sql.DB
}

// Querier is satisfied by both *DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", mapDriverError(err))
	}

	// A device store sees one writer at a time; a single connection also keeps
	// ":memory:" databases from splitting across the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", mapDriverError(err))
	}

	return &DB{db}, nil
}

// RunMigrations creates the device store schema if it is missing
func (db *DB) RunMigrations() error {
	migration := `
-- Orders
CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    hw_id TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('N/A', 'Ready', 'InProgress', 'Completed')),
    phase INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_orders_device ON orders(hw_id);

CREATE TABLE IF NOT EXISTS order_trucks (
    order_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    truck_id TEXT NOT NULL,
    PRIMARY KEY (order_id, position)
);

CREATE TABLE IF NOT EXISTS order_item_counts (
    order_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    item_id TEXT NOT NULL,
    count INTEGER NOT NULL,
    PRIMARY KEY (order_id, position)
);

-- Trucks
CREATE TABLE IF NOT EXISTS trucks (
    id TEXT PRIMARY KEY,
    n TEXT NOT NULL DEFAULT 'truck',
    brand TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL CHECK(status IN ('N/A', 'Ready', 'InProgress', 'Completed'))
);

CREATE TABLE IF NOT EXISTS truck_pallets (
    truck_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    pallet_id TEXT NOT NULL,
    PRIMARY KEY (truck_id, position)
);

-- Pallets; rowid is the insertion order used to pick the next pallet
CREATE TABLE IF NOT EXISTS pallets (
    id TEXT PRIMARY KEY,
    n TEXT NOT NULL DEFAULT 'pallet',
    v REAL NOT NULL DEFAULT 0,
    u REAL NOT NULL DEFAULT 0,
    gross_weight REAL NOT NULL DEFAULT 0,
    width REAL NOT NULL DEFAULT 0,
    height REAL NOT NULL DEFAULT 0,
    depth REAL NOT NULL DEFAULT 0,
    truck_id TEXT NOT NULL,
    finished INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_pallets_truck ON pallets(truck_id);
CREATE INDEX IF NOT EXISTS idx_pallets_finished ON pallets(finished);

CREATE TABLE IF NOT EXISTS pallet_items (
    pallet_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    item_id TEXT NOT NULL,
    PRIMARY KEY (pallet_id, position)
);

-- Items, one row per item-type code
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    descr TEXT NOT NULL DEFAULT '',
    color TEXT NOT NULL DEFAULT '',
    width REAL NOT NULL DEFAULT 0,
    height REAL NOT NULL DEFAULT 0,
    depth REAL NOT NULL DEFAULT 0,
    x REAL NOT NULL DEFAULT 0,
    y REAL NOT NULL DEFAULT 0,
    z REAL NOT NULL DEFAULT 0,
    r REAL NOT NULL DEFAULT 0,
    gross_weight REAL NOT NULL DEFAULT 0,
    fragile INTEGER NOT NULL DEFAULT 0,
    top_side_up INTEGER NOT NULL DEFAULT 0,
    heavy INTEGER NOT NULL DEFAULT 0,
    must_be_on_top INTEGER NOT NULL DEFAULT 0,
    flammable INTEGER NOT NULL DEFAULT 0,
    dangerous INTEGER NOT NULL DEFAULT 0,
    packed_alone INTEGER NOT NULL DEFAULT 0,
    stackable INTEGER NOT NULL DEFAULT 0,
    load_capacity INTEGER NOT NULL DEFAULT 0,
    unit INTEGER NOT NULL DEFAULT 0,
    hedgehog INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL CHECK(status IN ('N/A', 'Ready', 'Placed'))
);

CREATE TABLE IF NOT EXISTS item_evidence (
    item_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    ref TEXT NOT NULL,
    PRIMARY KEY (item_id, position)
);

-- Journal survives store resets
CREATE TABLE IF NOT EXISTS journal (
    id TEXT PRIMARY KEY,
    hw_id TEXT NOT NULL,
    order_id TEXT NOT NULL DEFAULT '',
    entity_id TEXT NOT NULL DEFAULT '',
    entry_type TEXT NOT NULL,
    summary TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_created ON journal(created_at);
`

	if _, err := db.Exec(migration); err != nil {
		return fmt.Errorf("failed to run migrations: %w", mapDriverError(err))
	}

	return nil
}
