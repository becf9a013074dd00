package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ganot/feapi/internal/domain/journal"
)

// JournalRepository implements journal.Repository for SQLite
type JournalRepository struct {
	db Querier
}

// NewJournalRepository creates a new JournalRepository
func NewJournalRepository(db Querier) *JournalRepository {
	return &JournalRepository{db: db}
}

// Log inserts a new journal entry
func (r *JournalRepository) Log(ctx context.Context, entry *journal.Entry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO journal (
			id, hw_id, order_id, entity_id, entry_type, summary, details, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.DeviceID,
		entry.OrderID,
		entry.EntityID,
		entry.Type,
		entry.Summary,
		entry.Details,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to log journal entry: %w", mapDriverError(err))
	}

	entry.CreatedAt = createdAt
	return nil
}

// List returns journal entries matching the given filters, newest first
func (r *JournalRepository) List(ctx context.Context, opts journal.ListOptions) ([]journal.Entry, error) {
	query := `
		SELECT id, hw_id, order_id, entity_id, entry_type, summary, details, created_at
		FROM journal
	`

	var args []any
	var conditions []string

	if opts.OrderID != "" {
		conditions = append(conditions, "order_id = ?")
		args = append(args, opts.OrderID)
	}
	if opts.Type != nil {
		conditions = append(conditions, "entry_type = ?")
		args = append(args, *opts.Type)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", mapDriverError(err))
	}
	defer rows.Close()

	entries := []journal.Entry{}
	for rows.Next() {
		var entry journal.Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.DeviceID,
			&entry.OrderID,
			&entry.EntityID,
			&entry.Type,
			&entry.Summary,
			&entry.Details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal rows: %w", mapDriverError(err))
	}

	return entries, nil
}
