package fulfillment

// PlacementEvidence is what a device needs to place an item.
type PlacementEvidence struct {
	ItemID string   `json:"item_id"`
	Images []string `json:"images"`
}

// Outcome reports the cascade triggered by a placement.
type Outcome struct {
	ItemID          string   `json:"item_id"`
	OrderID         string   `json:"order_id,omitempty"`
	Done            bool     `json:"done"`
	CompletedTrucks []string `json:"completed_trucks,omitempty"`
	FinishedPallets []string `json:"finished_pallets,omitempty"`
	Remaining       int      `json:"remaining"`
}

// PalletRef points a device at the next pallet to load.
type PalletRef struct {
	OrderID     string `json:"order_id"`
	TruckID     string `json:"truck_id"`
	GateID      string `json:"gate_id"`
	PalletID    string `json:"pallet_id"`
	PalletCount int    `json:"pallet_count"`
}

// Next is the result of NextPallet. Pallet is nil when OrderComplete is set.
type Next struct {
	Pallet        *PalletRef `json:"pallet,omitempty"`
	OrderComplete bool       `json:"order_complete"`
}

// PendingItem is one not-yet-placed item occurrence.
type PendingItem struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	PalletID string `json:"pallet_id"`
	TruckID  string `json:"truck_id"`
}
