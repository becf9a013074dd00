package journal

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntryType represents the kind of fulfillment event.
type EntryType string

const (
	TypePlanImported       EntryType = "plan_imported"
	TypePlacementRequested EntryType = "placement_requested"
	TypeItemPlaced         EntryType = "item_placed"
	TypePalletFinished     EntryType = "pallet_finished"
	TypeTruckCompleted     EntryType = "truck_completed"
	TypeOrderCompleted     EntryType = "order_completed"
	TypeStoreReset         EntryType = "store_reset"
	TypeOrderDiscarded     EntryType = "order_discarded"
)

// Entry is one event in a device's fulfillment journal.
type Entry struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	OrderID   string    `json:"order_id,omitempty"`
	EntityID  string    `json:"entity_id,omitempty"`
	Type      EntryType `json:"type"`
	Summary   string    `json:"summary"`
	Details   string    `json:"details,omitempty"` // JSON string
	CreatedAt time.Time `json:"created_at"`
}

// NewEntry builds an entry with a fresh id and timestamp.
func NewEntry(deviceID, orderID string, entryType EntryType, entityID, summary string) *Entry {
	return &Entry{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		OrderID:   orderID,
		EntityID:  entityID,
		Type:      entryType,
		Summary:   summary,
		CreatedAt: time.Now().UTC(),
	}
}

// WithDetails encodes v as the entry details. Encoding failures leave details empty.
func (e *Entry) WithDetails(v any) *Entry {
	data, err := json.Marshal(v)
	if err == nil {
		e.Details = string(data)
	}
	return e
}
