package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `feapi tracks truck loading for warehouse devices: Order → Trucks → Pallets → Items.

Core concepts:
- Device: a handheld identified by its hw_id. Each device has its own store and at most one active order.
- Item: an item type code. Its status is shared by every occurrence on every pallet, so one placement covers all of them.
- Completion cascades upward from items to pallets and trucks. The order completes once every truck is done.

Workflow:
1) init_device imports the staged plan once and returns the order with its item counts.
2) get_next_pallet names the pallet to load. When it reports order_complete the device store is torn down.
3) For each item: request_placement (returns evidence images), then mark_placed.
4) list_pending_items and get_journal show progress.
5) discard_order drops one order top-down; reimport_device pulls the plan again.

Transport notes:
- HTTP: the device comes from the bearer token (or X-Device-Id header when auth is off).
- Stdio: pass device_id on every device-scoped tool.

Docs:
- feapi://docs/index
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "feapi://docs/index",
		Name:        "docs_index",
		Title:       "feapi operator guide",
		Description: "Statuses, cascade rules and error codes for the loading tools.",
		Content: `# feapi operator guide

## Statuses

Orders and trucks move forward only: N/A → Ready → InProgress → Completed.
Items are Ready until placed, then Placed. Pallets carry a finished flag.

- request_placement moves the order to phase 2 and InProgress, and every truck holding the item to InProgress.
- mark_placed flips the item type to Placed, then:
  - finishes pallets whose items are all placed,
  - completes trucks with nothing left to place, and marks partly loaded trucks InProgress,
  - completes the order once nothing is left anywhere.
- finish_pallet finishes a pallet by hand. Finished pallets are skipped by get_next_pallet.

Importing a plan that adds a new pallet clears every pallet's finished flag.

## Error codes

- ORDER_NOT_FOUND, TRUCK_NOT_FOUND, PALLET_NOT_FOUND, ITEM_NOT_FOUND: the id is not in this device's store.
- INVALID_INPUT: a missing or malformed argument, including device_id in stdio mode.
- IMPORT_FAILED: the planner had no valid plan, or the device already runs a different order.
- CONSISTENCY_VIOLATION: a stored reference does not resolve. Reset the device and re-import.
- STORE_UNAVAILABLE: the device store could not be opened. Retry.

## Teardown

reset_device deletes orders, trucks, pallets and items but keeps the journal.
get_next_pallet does the same once the order is complete.
discard_order removes a single order top-down: the order, its trucks, their
pallets and their items. reimport_device pulls the plan again afterwards.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
