package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ganot/feapi/internal/domain/journal"
	"github.com/ganot/feapi/internal/domain/load"
)

// Handler dispatches MCP tool calls to the domain services.
type Handler struct {
	svc    Services
	logger *slog.Logger
}

// NewHandler creates a new MCP handler.
func NewHandler(svc Services, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{svc: svc, logger: logger}
}

// Handle runs one tool. deviceID is the authenticated device, or empty when
// the caller names the device in its arguments.
func (h *Handler) Handle(ctx context.Context, deviceID, method string, params json.RawMessage) (any, error) {
	if method == "list_devices" {
		devices := h.svc.Tenants.Devices()
		if devices == nil {
			devices = []string{}
		}
		return DevicesResponse{Devices: devices}, nil
	}

	var dev DeviceParams
	if err := decodeParams(params, &dev); err != nil {
		return nil, err
	}
	if deviceID == "" {
		deviceID = strings.TrimSpace(dev.DeviceID)
	}
	if deviceID == "" {
		return nil, mapError(fmt.Errorf("device_id is required: %w", load.ErrInvalidInput))
	}

	switch method {
	case "init_device":
		orders, err := h.svc.Importer.Init(ctx, deviceID)
		if err != nil {
			return nil, mapError(err)
		}
		resp := InitDeviceResponse{DeviceID: deviceID, Orders: make([]OrderSummary, 0, len(orders))}
		for _, o := range orders {
			resp.Orders = append(resp.Orders, summarizeOrder(o))
		}
		return resp, nil
	case "reimport_device":
		order, err := h.svc.Importer.Reimport(ctx, deviceID)
		if err != nil {
			return nil, mapError(err)
		}
		return summarizeOrder(*order), nil
	case "discard_order":
		var req OrderParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		orderID, err := h.orderOrActive(ctx, deviceID, req.OrderID)
		if err != nil {
			return nil, mapError(err)
		}
		if err := h.svc.Importer.Discard(ctx, deviceID, orderID); err != nil {
			return nil, mapError(err)
		}
		return DiscardResponse{DeviceID: deviceID, OrderID: orderID, Discarded: true}, nil
	case "get_next_pallet":
		var req OrderParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		orderID, err := h.orderOrActive(ctx, deviceID, req.OrderID)
		if err != nil {
			return nil, mapError(err)
		}
		next, err := h.svc.Fulfillment.NextPallet(ctx, deviceID, orderID)
		if err != nil {
			return nil, mapError(err)
		}
		resp := NextPalletResponse{OrderID: orderID, Pallet: next.Pallet, OrderComplete: next.OrderComplete}
		if next.OrderComplete {
			if err := h.svc.Tenants.Reset(ctx, deviceID); err != nil {
				return nil, mapError(err)
			}
			h.logger.Info("device torn down", "device_id", deviceID, "order_id", orderID)
			resp.DeviceReset = true
		}
		return resp, nil
	case "list_pending_items":
		var req PendingItemsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		orderID, err := h.orderOrActive(ctx, deviceID, req.OrderID)
		if err != nil {
			return nil, mapError(err)
		}
		items, err := h.svc.Fulfillment.PendingItems(ctx, deviceID, orderID, req.Limit)
		if err != nil {
			return nil, mapError(err)
		}
		return PendingItemsResponse{OrderID: orderID, Items: items}, nil
	case "request_placement":
		var req ItemParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		ev, err := h.svc.Fulfillment.RecordPlacementRequest(ctx, deviceID, req.ItemID)
		if err != nil {
			return nil, mapError(err)
		}
		return ev, nil
	case "mark_placed":
		var req ItemParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		out, err := h.svc.Fulfillment.MarkPlaced(ctx, deviceID, req.ItemID)
		if err != nil {
			return nil, mapError(err)
		}
		return out, nil
	case "finish_pallet":
		var req PalletParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		pallet, err := h.svc.Fulfillment.FinishPallet(ctx, deviceID, req.PalletID)
		if err != nil {
			return nil, mapError(err)
		}
		return pallet, nil
	case "get_order":
		var req OrderParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		var (
			order *load.Order
			err   error
		)
		if req.OrderID == "" {
			order, err = h.svc.Queries.FindOrderByDevice(ctx, deviceID)
		} else {
			order, err = h.svc.Queries.FindOrder(ctx, deviceID, req.OrderID)
		}
		if err != nil {
			return nil, mapError(err)
		}
		return summarizeOrder(*order), nil
	case "list_orders":
		orders, err := h.svc.Queries.ListOrders(ctx, deviceID)
		if err != nil {
			return nil, mapError(err)
		}
		resp := make([]OrderSummary, 0, len(orders))
		for _, o := range orders {
			resp = append(resp, summarizeOrder(o))
		}
		return resp, nil
	case "get_truck":
		var req TruckParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		truck, err := h.svc.Queries.FindTruck(ctx, deviceID, req.TruckID)
		if err != nil {
			return nil, mapError(err)
		}
		return truck, nil
	case "list_pallets":
		var req TruckParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		pallets, err := h.svc.Queries.ListPalletsInTruck(ctx, deviceID, req.TruckID)
		if err != nil {
			return nil, mapError(err)
		}
		return PalletsResponse{TruckID: req.TruckID, Pallets: pallets}, nil
	case "get_pallet":
		var req PalletParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		pallet, err := h.svc.Queries.FindPallet(ctx, deviceID, req.PalletID)
		if err != nil {
			return nil, mapError(err)
		}
		return pallet, nil
	case "get_item":
		var req ItemParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		item, err := h.svc.Queries.FindItem(ctx, deviceID, req.ItemID)
		if err != nil {
			return nil, mapError(err)
		}
		return item, nil
	case "reset_device":
		if err := h.svc.Tenants.Reset(ctx, deviceID); err != nil {
			return nil, mapError(err)
		}
		h.logger.Info("device reset", "device_id", deviceID, "session_id", getSessionID(ctx))
		return ResetResponse{DeviceID: deviceID, Reset: true}, nil
	case "get_journal":
		var req JournalParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		opts := journal.ListOptions{OrderID: req.OrderID, Limit: req.Limit, Offset: req.Offset}
		if req.Type != "" {
			entryType := req.Type
			opts.Type = &entryType
		}
		entries, err := h.svc.Journal.Recent(ctx, deviceID, opts)
		if err != nil {
			return nil, mapError(err)
		}
		return JournalResponse{Entries: entries}, nil
	default:
		return nil, fmt.Errorf("unknown method: %s", method)
	}
}

// orderOrActive falls back to the device's active order.
func (h *Handler) orderOrActive(ctx context.Context, deviceID, orderID string) (string, error) {
	if orderID != "" {
		return orderID, nil
	}
	order, err := h.svc.Queries.FindOrderByDevice(ctx, deviceID)
	if err != nil {
		return "", err
	}
	return order.ID, nil
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return mapError(fmt.Errorf("decoding arguments: %v: %w", err, load.ErrInvalidInput))
	}
	return nil
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
