package plan

import "github.com/ganot/feapi/internal/domain/load"

// Placeholder handling values the planner leaves out of its plans.
const placeholderUnit = 123

// Snapshot is a staged planner export holding one or more orders.
type Snapshot struct {
	Orders []Order `json:"orders" yaml:"orders" validate:"dive"`
}

// Order is one load plan: trucks, their pallets and the items on each pallet.
type Order struct {
	ID      string   `json:"ID" yaml:"ID" validate:"required"`
	Devices []string `json:"devices,omitempty" yaml:"devices,omitempty"`
	Trucks  []Truck  `json:"trucks" yaml:"trucks" validate:"min=1,dive"`
}

type Truck struct {
	ID      string   `json:"ID" yaml:"ID" validate:"required"`
	Brand   string   `json:"brand" yaml:"brand"`
	Pallets []Pallet `json:"box" yaml:"box" validate:"dive"`
}

type Pallet struct {
	ID          string  `json:"ID" yaml:"ID" validate:"required"`
	V           float64 `json:"v" yaml:"v"`
	U           float64 `json:"u" yaml:"u"`
	GrossWeight float64 `json:"gross_weight" yaml:"gross_weight" validate:"gte=0"`
	Width       float64 `json:"width" yaml:"width" validate:"gte=0"`
	Height      float64 `json:"height" yaml:"height" validate:"gte=0"`
	Depth       float64 `json:"depth" yaml:"depth" validate:"gte=0"`
	Items       []Item  `json:"items" yaml:"items" validate:"dive"`
}

// Item is one occurrence of an item type on a pallet. Handling flags are
// optional; missing ones take the planner placeholder values.
type Item struct {
	ItemID       string  `json:"itemid" yaml:"itemid" validate:"required"`
	Name         string  `json:"name" yaml:"name"`
	Descr        *string `json:"descr,omitempty" yaml:"descr,omitempty"`
	Color        string  `json:"color" yaml:"color"`
	Width        float64 `json:"width" yaml:"width" validate:"gte=0"`
	Height       float64 `json:"height" yaml:"height" validate:"gte=0"`
	Depth        float64 `json:"depth" yaml:"depth" validate:"gte=0"`
	X            float64 `json:"x" yaml:"x"`
	Y            float64 `json:"y" yaml:"y"`
	Z            float64 `json:"z" yaml:"z"`
	R            float64 `json:"r" yaml:"r"`
	GrossWeight  float64 `json:"gross_weight" yaml:"gross_weight" validate:"gte=0"`
	Fragile      *bool   `json:"Fragile,omitempty" yaml:"Fragile,omitempty"`
	TopSideUp    *bool   `json:"TopSideUp,omitempty" yaml:"TopSideUp,omitempty"`
	Heavy        *bool   `json:"Heavy,omitempty" yaml:"Heavy,omitempty"`
	MustBeOnTop  *bool   `json:"MustBeOnTop,omitempty" yaml:"MustBeOnTop,omitempty"`
	Flammable    *bool   `json:"Flammable,omitempty" yaml:"Flammable,omitempty"`
	Dangerous    *bool   `json:"Dangerous,omitempty" yaml:"Dangerous,omitempty"`
	PackedAlone  *bool   `json:"PackedAlone,omitempty" yaml:"PackedAlone,omitempty"`
	Stackable    *bool   `json:"Stackable,omitempty" yaml:"Stackable,omitempty"`
	LoadCapacity *bool   `json:"LoadCapacity,omitempty" yaml:"LoadCapacity,omitempty"`
	Unit         *int    `json:"Unit,omitempty" yaml:"Unit,omitempty"`
	Hedgehog     *bool   `json:"Hedgehog,omitempty" yaml:"Hedgehog,omitempty"`
}

// Occurrences returns the number of item entries across every pallet, with repetition.
func (o *Order) Occurrences() int {
	n := 0
	for _, t := range o.Trucks {
		for _, p := range t.Pallets {
			n += len(p.Items)
		}
	}
	return n
}

// ForDevice picks the order staged for deviceID: the first listing the device,
// else the first order not bound to any device.
func (s *Snapshot) ForDevice(deviceID string) (*Order, bool) {
	for i := range s.Orders {
		for _, d := range s.Orders[i].Devices {
			if d == deviceID {
				return &s.Orders[i], true
			}
		}
	}
	for i := range s.Orders {
		if len(s.Orders[i].Devices) == 0 {
			return &s.Orders[i], true
		}
	}
	return nil, false
}

func (t Truck) toTruck() *load.Truck {
	palletIDs := make([]string, 0, len(t.Pallets))
	for _, p := range t.Pallets {
		palletIDs = append(palletIDs, p.ID)
	}
	return &load.Truck{
		ID:        t.ID,
		Name:      "truck",
		Brand:     t.Brand,
		PalletIDs: palletIDs,
		Status:    load.StatusReady,
	}
}

func (p Pallet) toPallet(truckID string) *load.Pallet {
	itemIDs := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		itemIDs = append(itemIDs, it.ItemID)
	}
	return &load.Pallet{
		ID:          p.ID,
		Name:        "pallet",
		V:           p.V,
		U:           p.U,
		GrossWeight: p.GrossWeight,
		Width:       p.Width,
		Height:      p.Height,
		Depth:       p.Depth,
		ItemIDs:     itemIDs,
		TruckID:     truckID,
		Finished:    false,
	}
}

func (it Item) toItem() *load.Item {
	descr := ""
	if it.Descr != nil {
		descr = *it.Descr
	}
	unit := placeholderUnit
	if it.Unit != nil {
		unit = *it.Unit
	}
	return &load.Item{
		ID:          it.ItemID,
		Name:        it.Name,
		Description: descr,
		Color:       it.Color,
		Width:       it.Width,
		Height:      it.Height,
		Depth:       it.Depth,
		X:           it.X,
		Y:           it.Y,
		Z:           it.Z,
		R:           it.R,
		GrossWeight: it.GrossWeight,
		Handling: load.Handling{
			Fragile:      flag(it.Fragile),
			TopSideUp:    flag(it.TopSideUp),
			Heavy:        flag(it.Heavy),
			MustBeOnTop:  flag(it.MustBeOnTop),
			Flammable:    flag(it.Flammable),
			Dangerous:    flag(it.Dangerous),
			PackedAlone:  flag(it.PackedAlone),
			Stackable:    flag(it.Stackable),
			LoadCapacity: flag(it.LoadCapacity),
			Unit:         unit,
			Hedgehog:     flag(it.Hedgehog),
		},
		Status: load.ItemReady,
	}
}

func flag(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}
