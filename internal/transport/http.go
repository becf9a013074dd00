package transport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ganot/feapi/internal/domain/fulfillment"
	"github.com/ganot/feapi/internal/domain/journal"
	"github.com/ganot/feapi/internal/domain/load"
)

const orderCompleteMessage = "The order is complete!"

// Importer initialises a device from its staged plan.
type Importer interface {
	Init(ctx context.Context, deviceID string) ([]load.Order, error)
}

// Fulfillment drives placements and pallet selection.
type Fulfillment interface {
	RecordPlacementRequest(ctx context.Context, deviceID, itemID string) (*fulfillment.PlacementEvidence, error)
	MarkPlaced(ctx context.Context, deviceID, itemID string) (*fulfillment.Outcome, error)
	FinishPallet(ctx context.Context, deviceID, palletID string) (*load.Pallet, error)
	NextPallet(ctx context.Context, deviceID, orderID string) (*fulfillment.Next, error)
	PendingItems(ctx context.Context, deviceID, orderID string, limit int) ([]fulfillment.PendingItem, error)
}

// Queries answers status lookups.
type Queries interface {
	OrderStatus(ctx context.Context, deviceID, orderID string) (load.Status, error)
	TruckStatus(ctx context.Context, deviceID, truckID string) (load.Status, error)
}

// Tenants tears device stores down.
type Tenants interface {
	Reset(ctx context.Context, deviceID string) error
}

// Journal lists fulfillment events.
type Journal interface {
	Recent(ctx context.Context, deviceID string, opts journal.ListOptions) ([]journal.Entry, error)
}

// Services contains everything the device API calls into.
type Services struct {
	Importer    Importer
	Fulfillment Fulfillment
	Queries     Queries
	Tenants     Tenants
	Journal     Journal
}

// Config wires the HTTP server.
type Config struct {
	Services Services
	// Auth attaches the device identity. Defaults to HeaderMiddleware.
	Auth    func(http.Handler) http.Handler
	Metrics *Metrics
	// MCP is mounted on /mcp when set. It authenticates on its own.
	MCP    http.Handler
	Logger *slog.Logger
}

// Server serves the device API.
type Server struct {
	svc     Services
	metrics *Metrics
	logger  *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	auth := cfg.Auth
	if auth == nil {
		auth = HeaderMiddleware
	}
	srv := &Server{svc: cfg.Services, metrics: cfg.Metrics, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Get("/health", srv.handleHealth)
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
		r.Handle("/mcp/*", cfg.MCP)
	}

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Post("/init", srv.handleInit)
		r.Get("/order", srv.handleNextPallet)
		r.Get("/items", srv.handleItems)
		r.Get("/item/{item_id}/placement", srv.handlePlacement)
		r.Put("/item/{item_id}/placed", srv.handlePlaced)
		r.Put("/pallet/{pallet_id}/finished", srv.handlePalletFinished)
		r.Get("/order/{order_id}/status", srv.handleOrderStatus)
		r.Get("/truck/{truck_id}/status", srv.handleTruckStatus)
		r.Get("/journal", srv.handleJournal)
		r.Post("/quit", srv.handleQuit)
		r.Post("/abort", srv.handleAbort)
	})

	return r
}

type itemCount struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

type initOrder struct {
	ID        string      `json:"id"`
	ItemCount []itemCount `json:"itemCount"`
}

type initResponse struct {
	Phase  int         `json:"phase"`
	Orders []initOrder `json:"orders"`
}

type orderResponse struct {
	TruckID     string `json:"truckId"`
	GateID      string `json:"gateId"`
	PalletID    string `json:"palletId"`
	PalletCount int    `json:"palletCount"`
}

type itemResponse struct {
	ID     string   `json:"ID"`
	Name   string   `json:"name"`
	Images []string `json:"images"`
}

type itemsResponse struct {
	Items []itemResponse `json:"items"`
}

type placementImage struct {
	Image string `json:"image"`
}

type placementResponse struct {
	Images []placementImage `json:"images"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	deviceID, _ := DeviceFromContext(r.Context())
	orders, err := s.svc.Importer.Init(r.Context(), deviceID)
	s.metrics.observeImport(err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := initResponse{Phase: 1, Orders: make([]initOrder, 0, len(orders))}
	for _, o := range orders {
		counts := make([]itemCount, 0, len(o.ItemsUniq))
		for _, c := range o.ItemsUniq {
			counts = append(counts, itemCount{ID: c.ItemID, Count: c.Count})
		}
		resp.Orders = append(resp.Orders, initOrder{ID: o.ID, ItemCount: counts})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNextPallet(w http.ResponseWriter, r *http.Request) {
	deviceID, _ := DeviceFromContext(r.Context())
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		writeDetail(w, http.StatusBadRequest, "order_id is required")
		return
	}

	next, err := s.svc.Fulfillment.NextPallet(r.Context(), deviceID, orderID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if next.OrderComplete {
		if err := s.svc.Tenants.Reset(r.Context(), deviceID); err != nil {
			s.fail(w, r, err)
			return
		}
		s.logger.Info("device torn down", "device_id", deviceID, "order_id", orderID)
		writeJSON(w, http.StatusOK, Message{Message: orderCompleteMessage})
		return
	}

	writeJSON(w, http.StatusOK, orderResponse{
		TruckID:     next.Pallet.TruckID,
		GateID:      next.Pallet.GateID,
		PalletID:    "#" + next.Pallet.PalletID,
		PalletCount: next.Pallet.PalletCount,
	})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	deviceID, _ := DeviceFromContext(r.Context())
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		writeDetail(w, http.StatusBadRequest, "order_id is required")
		return
	}

	pending, err := s.svc.Fulfillment.PendingItems(r.Context(), deviceID, orderID, 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := itemsResponse{Items: make([]itemResponse, 0, len(pending))}
	for _, it := range pending {
		resp.Items = append(resp.Items, itemResponse{ID: it.ItemID, Name: it.Name, Images: []string{}})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePlacement(w http.ResponseWriter, r *http.Request) {
	deviceID, _ := DeviceFromContext(r.Context())
	ev, err := s.svc.Fulfillment.RecordPlacementRequest(r.Context(), deviceID, chi.URLParam(r, "item_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := placementResponse{Images: make([]placementImage, 0, len(ev.Images))}
	for _, ref := range ev.Images {
		resp.Images = append(resp.Images, placementImage{Image: ref})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePlaced(w http.ResponseWriter, r *http.Request) {
	deviceID, _ := DeviceFromContext(r.Context())
	out, err := s.svc.Fulfillment.MarkPlaced(r.Context(), deviceID, chi.URLParam(r, "item_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.observePlacement()
	if out.Done {
		writeJSON(w, http.StatusOK, Message{Message: "Done"})
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handlePalletFinished(w http.ResponseWriter, r *http.Request) {
	deviceID, _ := DeviceFromContext(r.Context())
	if _, err := s.svc.Fulfillment.FinishPallet(r.Context(), deviceID, chi.URLParam(r, "pallet_id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Message{Message: "Finished"})
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	deviceID, _ := DeviceFromContext(r.Context())
	status, err := s.svc.Queries.OrderStatus(r.Context(), deviceID, chi.URLParam(r, "order_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Message{Message: string(status)})
}

func (s *Server) handleTruckStatus(w http.ResponseWriter, r *http.Request) {
	deviceID, _ := DeviceFromContext(r.Context())
	status, err := s.svc.Queries.TruckStatus(r.Context(), deviceID, chi.URLParam(r, "truck_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Message{Message: string(status)})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	deviceID, _ := DeviceFromContext(r.Context())
	opts := journal.ListOptions{OrderID: r.URL.Query().Get("order_id")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeDetail(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = limit
	}

	entries, err := s.svc.Journal.Recent(r.Context(), deviceID, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	deviceID, _ := DeviceFromContext(r.Context())
	if err := s.svc.Tenants.Reset(r.Context(), deviceID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAbort(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Message{Message: "Abort"})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeDetail(w, status, err.Error())
}
