package load

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every lookup miss below.
	ErrNotFound = errors.New("not found")

	ErrOrderNotFound  = fmt.Errorf("order %w", ErrNotFound)
	ErrTruckNotFound  = fmt.Errorf("truck %w", ErrNotFound)
	ErrPalletNotFound = fmt.Errorf("pallet %w", ErrNotFound)
	ErrItemNotFound   = fmt.Errorf("item %w", ErrNotFound)

	// ErrImportFailure indicates the plan could not be fetched or was malformed.
	ErrImportFailure = errors.New("import failed")
	// ErrStoreUnavailable indicates the device store could not be reached. Retryable.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrConsistencyViolation indicates a parent references a child that does not resolve.
	ErrConsistencyViolation = errors.New("consistency violation")
	// ErrInvalidInput indicates a malformed identifier or argument.
	ErrInvalidInput = errors.New("invalid input")
)

// ConsistencyError names the dangling reference found while walking an order.
type ConsistencyError struct {
	Parent   string
	ParentID string
	ChildID  string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s %s references missing %s", e.Parent, e.ParentID, e.ChildID)
}

func (e *ConsistencyError) Unwrap() error {
	return ErrConsistencyViolation
}
