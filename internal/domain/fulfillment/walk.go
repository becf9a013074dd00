package fulfillment

import (
	"context"
	"errors"

	"github.com/ganot/feapi/internal/domain/load"
	"github.com/ganot/feapi/internal/repository"
)

type truckNode struct {
	truck   *load.Truck
	pallets []*load.Pallet
}

// orderTree is an order with every truck, pallet and item it references loaded.
type orderTree struct {
	order  *load.Order
	trucks []truckNode
	items  map[string]*load.Item
}

// walkOrder loads the full hierarchy of order. A reference that does not
// resolve is reported as a *load.ConsistencyError.
func walkOrder(ctx context.Context, st load.Store, order *load.Order) (*orderTree, error) {
	tree := &orderTree{order: order, items: make(map[string]*load.Item)}

	for _, truckID := range order.TruckIDs {
		truck, err := st.Trucks().Get(ctx, truckID)
		if err != nil {
			return nil, dangling(err, "order", order.ID, truckID, "loading truck")
		}
		node := truckNode{truck: truck}

		for _, palletID := range truck.PalletIDs {
			pallet, err := st.Pallets().Get(ctx, palletID)
			if err != nil {
				return nil, dangling(err, "truck", truck.ID, palletID, "loading pallet")
			}
			for _, itemID := range pallet.ItemIDs {
				if _, ok := tree.items[itemID]; ok {
					continue
				}
				item, err := st.Items().Get(ctx, itemID)
				if err != nil {
					return nil, dangling(err, "pallet", pallet.ID, itemID, "loading item")
				}
				tree.items[itemID] = item
			}
			node.pallets = append(node.pallets, pallet)
		}
		tree.trucks = append(tree.trucks, node)
	}
	return tree, nil
}

func dangling(err error, parent, parentID, childID, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &load.ConsistencyError{Parent: parent, ParentID: parentID, ChildID: childID}
	}
	return load.MapRepoError(err, load.ErrNotFound, op)
}

func (t *orderTree) contains(itemID string) bool {
	_, ok := t.items[itemID]
	return ok
}

func (t *orderTree) placed(itemID string) bool {
	item, ok := t.items[itemID]
	return ok && item.Status == load.ItemPlaced
}

// treesContaining walks every order in the store and keeps those referencing itemID.
func treesContaining(ctx context.Context, st load.Store, itemID string) ([]*orderTree, error) {
	orders, err := st.Orders().List(ctx)
	if err != nil {
		return nil, load.MapRepoError(err, load.ErrOrderNotFound, "listing orders")
	}
	var trees []*orderTree
	for i := range orders {
		tree, err := walkOrder(ctx, st, &orders[i])
		if err != nil {
			return nil, err
		}
		if tree.contains(itemID) {
			trees = append(trees, tree)
		}
	}
	return trees, nil
}
