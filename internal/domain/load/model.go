package load

import "time"

// Status is the lifecycle state shared by trucks and orders.
type Status string

const (
	StatusNotAvailable Status = "N/A"
	StatusReady        Status = "Ready"
	StatusInProgress   Status = "InProgress"
	StatusCompleted    Status = "Completed"
)

func (s Status) rank() int {
	switch s {
	case StatusReady:
		return 1
	case StatusInProgress:
		return 2
	case StatusCompleted:
		return 3
	default:
		return 0
	}
}

// Advances reports whether moving from s to next goes forward. Statuses never regress.
func (s Status) Advances(next Status) bool {
	return next.rank() > s.rank()
}

// ItemStatus is the placement state of an item type.
type ItemStatus string

const (
	ItemNotAvailable ItemStatus = "N/A"
	ItemReady        ItemStatus = "Ready"
	ItemPlaced       ItemStatus = "Placed"
)

// ItemCount is one entry of an order's items_uniq aggregate.
type ItemCount struct {
	ItemID string `json:"id"`
	Count  int    `json:"count"`
}

// Order is the single active load a device works on.
type Order struct {
	ID        string      `json:"id"`
	DeviceID  string      `json:"hw_id"`
	TruckIDs  []string    `json:"trucks"`
	Status    Status      `json:"status"`
	Phase     int         `json:"phase"`
	ItemsUniq []ItemCount `json:"items_uniq"`
	CreatedAt time.Time   `json:"created_at"`
}

// TotalItems returns the sum of the items_uniq counts.
func (o *Order) TotalItems() int {
	total := 0
	for _, c := range o.ItemsUniq {
		total += c.Count
	}
	return total
}

// Truck references its pallets by id, in plan order.
type Truck struct {
	ID        string   `json:"id"`
	Name      string   `json:"n"`
	Brand     string   `json:"brand"`
	PalletIDs []string `json:"pallets"`
	Status    Status   `json:"status"`
}

// Pallet holds item-type references. An id appears once per occurrence.
type Pallet struct {
	ID          string   `json:"id"`
	Name        string   `json:"n"`
	V           float64  `json:"v"`
	U           float64  `json:"u"`
	GrossWeight float64  `json:"gross_weight"`
	Width       float64  `json:"width"`
	Height      float64  `json:"height"`
	Depth       float64  `json:"depth"`
	ItemIDs     []string `json:"items"`
	TruckID     string   `json:"truck_id"`
	Finished    bool     `json:"finished"`
}

// Handling groups the handling flags the planner attaches to an item type.
type Handling struct {
	Fragile      bool `json:"fragile"`
	TopSideUp    bool `json:"top_side_up"`
	Heavy        bool `json:"heavy"`
	MustBeOnTop  bool `json:"must_be_on_top"`
	Flammable    bool `json:"flammable"`
	Dangerous    bool `json:"dangerous"`
	PackedAlone  bool `json:"packed_alone"`
	Stackable    bool `json:"stackable"`
	LoadCapacity bool `json:"load_capacity"`
	Unit         int  `json:"unit"`
	Hedgehog     bool `json:"hedgehog"`
}

// Item is deduplicated per device by item-type code; its status is shared by
// every occurrence across pallets.
type Item struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"descr"`
	Color       string     `json:"color,omitempty"`
	Width       float64    `json:"width"`
	Height      float64    `json:"height"`
	Depth       float64    `json:"depth"`
	X           float64    `json:"x"`
	Y           float64    `json:"y"`
	Z           float64    `json:"z"`
	R           float64    `json:"r"`
	GrossWeight float64    `json:"gross_weight"`
	Handling    Handling   `json:"handling"`
	Status      ItemStatus `json:"status"`
	Evidence    []string   `json:"evidence,omitempty"`
}
