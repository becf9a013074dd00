package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an entity with the same identifier already exists
	ErrConflict = errors.New("conflict: entity already exists")

	// ErrStoreUnavailable is returned when the storage backend cannot be reached
	ErrStoreUnavailable = errors.New("store unavailable")
)
