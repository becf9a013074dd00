package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ganot/feapi/internal/domain/fulfillment"
	"github.com/ganot/feapi/internal/domain/journal"
	"github.com/ganot/feapi/internal/domain/load"
)

// ImportService initialises devices from their staged plan.
type ImportService interface {
	Init(ctx context.Context, deviceID string) ([]load.Order, error)
	Reimport(ctx context.Context, deviceID string) (*load.Order, error)
	Discard(ctx context.Context, deviceID, orderID string) error
}

// FulfillmentService drives placements and pallet selection.
type FulfillmentService interface {
	RecordPlacementRequest(ctx context.Context, deviceID, itemID string) (*fulfillment.PlacementEvidence, error)
	MarkPlaced(ctx context.Context, deviceID, itemID string) (*fulfillment.Outcome, error)
	FinishPallet(ctx context.Context, deviceID, palletID string) (*load.Pallet, error)
	NextPallet(ctx context.Context, deviceID, orderID string) (*fulfillment.Next, error)
	PendingItems(ctx context.Context, deviceID, orderID string, limit int) ([]fulfillment.PendingItem, error)
}

// QueryService defines read operations needed by MCP.
type QueryService interface {
	FindOrder(ctx context.Context, deviceID, orderID string) (*load.Order, error)
	FindOrderByDevice(ctx context.Context, deviceID string) (*load.Order, error)
	FindTruck(ctx context.Context, deviceID, truckID string) (*load.Truck, error)
	FindPallet(ctx context.Context, deviceID, palletID string) (*load.Pallet, error)
	FindItem(ctx context.Context, deviceID, itemID string) (*load.Item, error)
	ListOrders(ctx context.Context, deviceID string) ([]load.Order, error)
	ListPalletsInTruck(ctx context.Context, deviceID, truckID string) ([]load.Pallet, error)
}

// TenantService manages the per-device stores.
type TenantService interface {
	Reset(ctx context.Context, deviceID string) error
	Devices() []string
}

// JournalService lists fulfillment events.
type JournalService interface {
	Recent(ctx context.Context, deviceID string, opts journal.ListOptions) ([]journal.Entry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Importer    ImportService
	Fulfillment FulfillmentService
	Queries     QueryService
	Tenants     TenantService
	Journal     JournalService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      DeviceResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "feapi",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       logger,
	})

	registerDocResources(server)

	// Stdio is local operator use; tools then name the device explicitly.
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	} else {
		server.AddReceivingMiddleware(headerMiddleware())
	}
	server.AddReceivingMiddleware(sessionMiddleware())
	server.AddReceivingMiddleware(trafficLoggingMiddleware(logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(logger, "outbound"))

	registerTools(server, NewHandler(cfg.Services, logger))

	return server
}
