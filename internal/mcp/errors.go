package mcp

import (
	"errors"
	"fmt"

	"github.com/ganot/feapi/internal/domain/journal"
	"github.com/ganot/feapi/internal/domain/load"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, load.ErrOrderNotFound):
		return &APIError{Code: "ORDER_NOT_FOUND", Message: err.Error(), RecoveryHint: "Call init_device or list_orders"}
	case errors.Is(err, load.ErrTruckNotFound):
		return &APIError{Code: "TRUCK_NOT_FOUND", Message: err.Error(), RecoveryHint: "Check the order's trucks with get_order"}
	case errors.Is(err, load.ErrPalletNotFound):
		return &APIError{Code: "PALLET_NOT_FOUND", Message: err.Error(), RecoveryHint: "List pallets with list_pallets"}
	case errors.Is(err, load.ErrItemNotFound):
		return &APIError{Code: "ITEM_NOT_FOUND", Message: err.Error(), RecoveryHint: "List pending items with list_pending_items"}
	case errors.Is(err, load.ErrNotFound):
		return &APIError{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, load.ErrInvalidInput), errors.Is(err, journal.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error(), RecoveryHint: "Check the tool arguments"}
	case errors.Is(err, load.ErrImportFailure):
		return &APIError{Code: "IMPORT_FAILED", Message: err.Error(), RecoveryHint: "Check the staged plan, or reset_device first"}
	case errors.Is(err, load.ErrConsistencyViolation):
		var ce *load.ConsistencyError
		if errors.As(err, &ce) {
			return &APIError{Code: "CONSISTENCY_VIOLATION", Message: err.Error(), Details: map[string]string{"parent": ce.Parent, "parent_id": ce.ParentID, "child_id": ce.ChildID}, RecoveryHint: "Reset the device and re-import"}
		}
		return &APIError{Code: "CONSISTENCY_VIOLATION", Message: err.Error(), RecoveryHint: "Reset the device and re-import"}
	case errors.Is(err, load.ErrStoreUnavailable):
		return &APIError{Code: "STORE_UNAVAILABLE", Message: err.Error(), RecoveryHint: "Retry later"}
	default:
		return nil
	}
}
