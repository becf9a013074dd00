package journal

import "context"

// Repository provides persistence operations for one device's journal.
type Repository interface {
	Log(ctx context.Context, entry *Entry) error
	List(ctx context.Context, opts ListOptions) ([]Entry, error)
}

// Resolver returns the journal repository backing a device store.
type Resolver interface {
	JournalFor(ctx context.Context, deviceID string) (Repository, error)
}
