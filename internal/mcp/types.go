package mcp

import (
	"github.com/ganot/feapi/internal/domain/fulfillment"
	"github.com/ganot/feapi/internal/domain/journal"
	"github.com/ganot/feapi/internal/domain/load"
)

// DeviceParams is embedded by every device-scoped tool. DeviceID is only
// read when the request carries no authenticated device.
type DeviceParams struct {
	DeviceID string `json:"device_id,omitempty"`
}

type OrderParams struct {
	DeviceParams
	OrderID string `json:"order_id,omitempty"`
}

type PendingItemsParams struct {
	DeviceParams
	OrderID string `json:"order_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type ItemParams struct {
	DeviceParams
	ItemID string `json:"item_id"`
}

type PalletParams struct {
	DeviceParams
	PalletID string `json:"pallet_id"`
}

type TruckParams struct {
	DeviceParams
	TruckID string `json:"truck_id"`
}

type JournalParams struct {
	DeviceParams
	OrderID string            `json:"order_id,omitempty"`
	Type    journal.EntryType `json:"type,omitempty"`
	Limit   int               `json:"limit,omitempty"`
	Offset  int               `json:"offset,omitempty"`
}

type OrderSummary struct {
	ID         string           `json:"id"`
	Status     load.Status      `json:"status"`
	Phase      int              `json:"phase"`
	Trucks     []string         `json:"trucks"`
	ItemsUniq  []load.ItemCount `json:"items_uniq"`
	TotalItems int              `json:"total_items"`
}

type InitDeviceResponse struct {
	DeviceID string         `json:"device_id"`
	Orders   []OrderSummary `json:"orders"`
}

type DiscardResponse struct {
	DeviceID  string `json:"device_id"`
	OrderID   string `json:"order_id"`
	Discarded bool   `json:"discarded"`
}

type NextPalletResponse struct {
	OrderID       string                 `json:"order_id"`
	Pallet        *fulfillment.PalletRef `json:"pallet,omitempty"`
	OrderComplete bool                   `json:"order_complete"`
	DeviceReset   bool                   `json:"device_reset,omitempty"`
}

type PendingItemsResponse struct {
	OrderID string                    `json:"order_id"`
	Items   []fulfillment.PendingItem `json:"items"`
}

type PalletsResponse struct {
	TruckID string        `json:"truck_id"`
	Pallets []load.Pallet `json:"pallets"`
}

type JournalResponse struct {
	Entries []journal.Entry `json:"entries"`
}

type DevicesResponse struct {
	Devices []string `json:"devices"`
}

type ResetResponse struct {
	DeviceID string `json:"device_id"`
	Reset    bool   `json:"reset"`
}

func summarizeOrder(o load.Order) OrderSummary {
	items := o.ItemsUniq
	if items == nil {
		items = []load.ItemCount{}
	}
	return OrderSummary{
		ID:         o.ID,
		Status:     o.Status,
		Phase:      o.Phase,
		Trucks:     o.TruckIDs,
		ItemsUniq:  items,
		TotalItems: o.TotalItems(),
	}
}
