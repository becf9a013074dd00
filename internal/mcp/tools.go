package mcp

import (
	"context"
	"encoding/json"
	"errors"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolDefinition describes a callable tool.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
	ReadOnly    bool
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func intProp(description string) map[string]any {
	return map[string]any{"type": "integer", "minimum": 0, "description": description}
}

// objectSchema builds a tool input schema. Every device-scoped tool accepts device_id.
func objectSchema(props map[string]any, required ...string) map[string]any {
	all := map[string]any{
		"device_id": stringProp("Device (hw_id) to act on. Ignored when the connection is authenticated as a device"),
	}
	for k, v := range props {
		all[k] = v
	}
	schema := map[string]any{"type": "object", "properties": all}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// buildToolCatalog returns all available MCP tools
func buildToolCatalog() []ToolDefinition {
	return []ToolDefinition{
		// Lifecycle
		{
			Name:        "init_device",
			Description: "Import the device's staged loading plan if it has no order yet, and return its orders with item counts",
			InputSchema: objectSchema(nil),
		},
		{
			Name:        "reimport_device",
			Description: "Pull the device's plan from the planner again and insert any trucks, pallets or items it does not have yet",
			InputSchema: objectSchema(nil),
		},
		{
			Name:        "discard_order",
			Description: "Delete one order with its trucks, pallets and items (defaults to the device's active order)",
			InputSchema: objectSchema(map[string]any{
				"order_id": stringProp("Order to delete"),
			}),
		},
		{
			Name:        "reset_device",
			Description: "Delete every order, truck, pallet and item stored for the device. The journal is kept",
			InputSchema: objectSchema(nil),
		},
		{
			Name:        "list_devices",
			Description: "List devices with an open store on this server",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
			ReadOnly:    true,
		},

		// Loading
		{
			Name:        "get_next_pallet",
			Description: "Return the first unfinished pallet of the order. When every pallet is finished the order is complete and the device store is torn down",
			InputSchema: objectSchema(map[string]any{
				"order_id": stringProp("Order ID (omit to use the device's active order)"),
			}),
		},
		{
			Name:        "list_pending_items",
			Description: "List item occurrences not yet placed, in plan order",
			InputSchema: objectSchema(map[string]any{
				"order_id": stringProp("Order ID (omit to use the device's active order)"),
				"limit":    intProp("Maximum items to return (default 5)"),
			}),
			ReadOnly: true,
		},
		{
			Name:        "request_placement",
			Description: "Record that the device is about to place an item and return its placement evidence images",
			InputSchema: objectSchema(map[string]any{
				"item_id": stringProp("Item type code"),
			}, "item_id"),
		},
		{
			Name:        "mark_placed",
			Description: "Mark an item type placed and cascade pallet, truck and order completion",
			InputSchema: objectSchema(map[string]any{
				"item_id": stringProp("Item type code"),
			}, "item_id"),
		},
		{
			Name:        "finish_pallet",
			Description: "Mark a pallet finished regardless of its items",
			InputSchema: objectSchema(map[string]any{
				"pallet_id": stringProp("Pallet ID"),
			}, "pallet_id"),
		},

		// Lookups
		{
			Name:        "get_order",
			Description: "Get an order with its status, phase and items_uniq aggregate",
			InputSchema: objectSchema(map[string]any{
				"order_id": stringProp("Order ID (omit to use the device's active order)"),
			}),
			ReadOnly: true,
		},
		{
			Name:        "list_orders",
			Description: "List the device's orders",
			InputSchema: objectSchema(nil),
			ReadOnly:    true,
		},
		{
			Name:        "get_truck",
			Description: "Get a truck with its pallet ids and status",
			InputSchema: objectSchema(map[string]any{
				"truck_id": stringProp("Truck ID"),
			}, "truck_id"),
			ReadOnly: true,
		},
		{
			Name:        "list_pallets",
			Description: "List a truck's pallets in plan order",
			InputSchema: objectSchema(map[string]any{
				"truck_id": stringProp("Truck ID"),
			}, "truck_id"),
			ReadOnly: true,
		},
		{
			Name:        "get_pallet",
			Description: "Get a pallet with its dimensions, item occurrences and finished flag",
			InputSchema: objectSchema(map[string]any{
				"pallet_id": stringProp("Pallet code"),
			}, "pallet_id"),
			ReadOnly: true,
		},
		{
			Name:        "get_item",
			Description: "Get an item type with its handling flags, status and placement evidence",
			InputSchema: objectSchema(map[string]any{
				"item_id": stringProp("Item type code"),
			}, "item_id"),
			ReadOnly: true,
		},
		{
			Name:        "get_journal",
			Description: "List recent fulfillment events, newest first",
			InputSchema: objectSchema(map[string]any{
				"order_id": stringProp("Only entries for this order"),
				"type":     stringProp("Only entries of this type, e.g. item_placed"),
				"limit":    intProp("Maximum entries to return (default 50)"),
				"offset":   intProp("Entries to skip"),
			}),
			ReadOnly: true,
		},
	}
}

func registerTools(server *sdkmcp.Server, h *Handler) {
	for _, def := range buildToolCatalog() {
		name := def.Name
		server.AddTool(&sdkmcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
			Annotations: &sdkmcp.ToolAnnotations{ReadOnlyHint: def.ReadOnly},
		}, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
			var args json.RawMessage
			if req != nil && req.Params != nil {
				args = req.Params.Arguments
			}
			result, err := h.Handle(ctx, getDeviceID(ctx), name, args)
			if err != nil {
				return h.errorResult(name, err), nil
			}
			return jsonResult(result), nil
		})
	}
}

func jsonResult(v any) *sdkmcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return &sdkmcp.CallToolResult{
			IsError: true,
			Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: err.Error()}},
		}
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}
}

func (h *Handler) errorResult(tool string, err error) *sdkmcp.CallToolResult {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		h.logger.Error("tool failed", "tool", tool, "error", err)
		apiErr = &APIError{Code: "INTERNAL", Message: err.Error()}
	}
	res := jsonResult(apiErr)
	res.IsError = true
	return res
}
