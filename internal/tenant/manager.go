// Package tenant provisions one isolated SQLite store per device.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/ganot/feapi/internal/domain/journal"
	"github.com/ganot/feapi/internal/domain/load"
	"github.com/ganot/feapi/internal/sqlite"
	"github.com/google/uuid"
)

const maxDeviceIDLen = 128

type entry struct {
	// ready is closed once db or err is set.
	ready chan struct{}
	db    *sqlite.DB
	err   error

	// mu serializes mutations and resets of one device.
	mu sync.Mutex
}

// Manager owns the per-device stores. Stores are opened on first reference and
// kept until Close.
type Manager struct {
	dir       string
	namespace string
	logger    *slog.Logger
	openDB    func(ctx context.Context, deviceID string) (*sqlite.DB, error)

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// NewManager creates a Manager keeping device databases under dir. An empty
// dir keeps every store in memory for the life of the Manager.
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{
		dir:       dir,
		namespace: uuid.NewString(),
		logger:    logger,
		entries:   make(map[string]*entry),
	}
	m.openDB = m.open
	return m
}

// Resolve returns the store of deviceID, provisioning it if needed.
func (m *Manager) Resolve(ctx context.Context, deviceID string) (*sqlite.Store, error) {
	e, err := m.resolve(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return sqlite.NewStore(e.db), nil
}

// View runs fn against the device store outside the mutation lock.
func (m *Manager) View(ctx context.Context, deviceID string, fn func(load.Store) error) error {
	e, err := m.resolve(ctx, deviceID)
	if err != nil {
		return err
	}
	return fn(sqlite.NewStore(e.db))
}

// Update runs fn under the device lock inside one transaction. Any error from
// fn rolls the whole transaction back.
func (m *Manager) Update(ctx context.Context, deviceID string, fn func(load.Store) error) error {
	e, err := m.resolve(ctx, deviceID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return withTx(ctx, e.db, func(st *sqlite.Store) error {
		return fn(st)
	})
}

// Reset deletes every order, truck, pallet and item of the device. Resetting an
// empty store succeeds.
func (m *Manager) Reset(ctx context.Context, deviceID string) error {
	e, err := m.resolve(ctx, deviceID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err = withTx(ctx, e.db, func(st *sqlite.Store) error {
		if err := st.Truncate(ctx); err != nil {
			return err
		}
		return st.Journal().Log(ctx, journal.NewEntry(deviceID, "", journal.TypeStoreReset, deviceID, "Device store reset"))
	})
	if err != nil {
		return load.MapRepoError(err, load.ErrNotFound, "resetting store")
	}

	m.logger.Info("device store reset", "device_id", deviceID)
	return nil
}

// JournalFor returns the journal repository of the device store.
func (m *Manager) JournalFor(ctx context.Context, deviceID string) (journal.Repository, error) {
	e, err := m.resolve(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return sqlite.NewJournalRepository(e.db), nil
}

// Devices lists the devices with an open store, sorted.
func (m *Manager) Devices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	devices := make([]string, 0, len(m.entries))
	for id, e := range m.entries {
		select {
		case <-e.ready:
			if e.err == nil {
				devices = append(devices, id)
			}
		default:
		}
	}
	sort.Strings(devices)
	return devices
}

// Close closes every store. Later calls fail with load.ErrStoreUnavailable.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for id, e := range m.entries {
		select {
		case <-e.ready:
		default:
			// Still opening; the opener sees closed and closes it.
			continue
		}
		if e.db == nil {
			continue
		}
		if err := e.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store %s: %w", id, err))
		}
	}
	m.entries = make(map[string]*entry)
	m.closed = true
	return errors.Join(errs...)
}

// resolve returns the entry of deviceID. The first caller for a device opens
// its store outside m.mu; later callers for that device wait on ready.
func (m *Manager) resolve(ctx context.Context, deviceID string) (*entry, error) {
	if err := checkDeviceID(deviceID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: manager closed", load.ErrStoreUnavailable)
	}
	e, ok := m.entries[deviceID]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		m.entries[deviceID] = e
	}
	m.mu.Unlock()

	if ok {
		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if e.err != nil {
			return nil, e.err
		}
		return e, nil
	}

	db, err := m.openDB(ctx, deviceID)

	m.mu.Lock()
	switch {
	case err != nil:
		e.err = fmt.Errorf("%w: opening store for %s: %w", load.ErrStoreUnavailable, deviceID, err)
		delete(m.entries, deviceID)
	case m.closed:
		db.Close()
		e.err = fmt.Errorf("%w: manager closed", load.ErrStoreUnavailable)
	default:
		e.db = db
	}
	m.mu.Unlock()
	close(e.ready)

	if e.err != nil {
		return nil, e.err
	}
	m.logger.Debug("device store opened", "device_id", deviceID)
	return e, nil
}

// checkDeviceID accepts any printable identifier without surrounding spaces.
// The store name escapes it, so characters like '/', '@' or ':' are fine.
func checkDeviceID(deviceID string) error {
	if deviceID == "" || len(deviceID) > maxDeviceIDLen || strings.TrimSpace(deviceID) != deviceID {
		return fmt.Errorf("%w: device id %q", load.ErrInvalidInput, deviceID)
	}
	for _, r := range deviceID {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("%w: device id %q", load.ErrInvalidInput, deviceID)
		}
	}
	return nil
}

func (m *Manager) open(ctx context.Context, deviceID string) (*sqlite.DB, error) {
	name := "backend_" + url.QueryEscape(deviceID)
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", m.namespace, name)
	if m.dir != "" {
		if err := os.MkdirAll(m.dir, 0o755); err != nil {
			return nil, err
		}
		dsn = filepath.Join(m.dir, name+".db")
	}

	db, err := sqlite.New(dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func withTx(ctx context.Context, db *sqlite.DB, fn func(*sqlite.Store) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", load.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	if err := fn(sqlite.NewStore(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", load.ErrStoreUnavailable, err)
	}
	return nil
}
