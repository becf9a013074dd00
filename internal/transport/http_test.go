package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ganot/feapi/internal/domain/fulfillment"
	"github.com/ganot/feapi/internal/domain/journal"
	"github.com/ganot/feapi/internal/domain/load"
	"github.com/ganot/feapi/internal/domain/plan"
	"github.com/ganot/feapi/internal/evidence"
	"github.com/ganot/feapi/internal/planner"
	"github.com/ganot/feapi/internal/tenant"
	"github.com/stretchr/testify/require"
)

const testSnapshot = `{"orders":[
  {"ID":"O-9","devices":["D9"],"trucks":[]},
  {"ID":"O-1","trucks":[{"ID":"T-1","brand":"Volvo","box":[
    {"ID":"P-1","items":[{"itemid":"X","name":"Crate"},{"itemid":"Y","name":"Barrel"}]},
    {"ID":"P-2","items":[{"itemid":"Z","name":"Drum"}]}
  ]}]}
]}`

type testAPI struct {
	server  *httptest.Server
	tenants *tenant.Manager
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(snapshot, []byte(testSnapshot), 0o600))
	images := filepath.Join(dir, "placement_imgs")
	require.NoError(t, os.MkdirAll(filepath.Join(images, "X"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(images, "X", "1.png"), []byte("png"), 0o600))

	m := tenant.NewManager("", nil)
	t.Cleanup(func() { _ = m.Close() })
	metrics := NewMetrics()

	router := NewServer(Config{
		Services: Services{
			Importer:    plan.NewImporter(m, planner.NewFileSource(snapshot), nil),
			Fulfillment: fulfillment.NewService(m, evidence.NewDirSource(images, "/image/placement_imgs"), NewCompletionNotifier(metrics, nil), nil),
			Queries:     load.NewService(m, nil),
			Tenants:     m,
			Journal:     journal.NewService(m, nil),
		},
		Metrics: metrics,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testAPI{server: srv, tenants: m}
}

func (a *testAPI) do(t *testing.T, method, path, deviceID string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, nil)
	require.NoError(t, err)
	if deviceID != "" {
		req.Header.Set(DeviceHeader, deviceID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHTTPServer_FulfillmentFlow(t *testing.T) {
	api := newTestAPI(t)

	code, body := api.do(t, http.MethodPost, "/init", "D1")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"phase":1,"orders":[{"id":"O-1","itemCount":[{"id":"X","count":1},{"id":"Y","count":1},{"id":"Z","count":1}]}]}`, body)

	code, body = api.do(t, http.MethodGet, "/order?order_id=O-1", "D1")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"truckId":"T-1","gateId":"T-1","palletId":"#P-1","palletCount":2}`, body)

	code, body = api.do(t, http.MethodGet, "/items?order_id=O-1", "D1")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"items":[{"ID":"X","name":"Crate","images":[]},{"ID":"Y","name":"Barrel","images":[]},{"ID":"Z","name":"Drum","images":[]}]}`, body)

	code, body = api.do(t, http.MethodGet, "/item/X/placement", "D1")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"images":[{"image":"/image/placement_imgs/X/1.png"}]}`, body)

	code, body = api.do(t, http.MethodGet, "/order/O-1/status", "D1")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"message":"InProgress"}`, body)

	for _, id := range []string{"X", "Y"} {
		code, body = api.do(t, http.MethodPut, "/item/"+id+"/placed", "D1")
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "null", strings.TrimSpace(body))
	}

	code, body = api.do(t, http.MethodGet, "/order?order_id=O-1", "D1")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"truckId":"T-1","gateId":"T-1","palletId":"#P-2","palletCount":2}`, body)

	code, body = api.do(t, http.MethodGet, "/truck/T-1/status", "D1")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"message":"InProgress"}`, body)

	code, body = api.do(t, http.MethodPut, "/item/Z/placed", "D1")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"message":"Done"}`, body)

	code, body = api.do(t, http.MethodGet, "/order/O-1/status", "D1")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"message":"Completed"}`, body)

	code, body = api.do(t, http.MethodGet, "/order?order_id=O-1", "D1")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"message":"The order is complete!"}`, body)

	code, _ = api.do(t, http.MethodGet, "/order/O-1/status", "D1")
	require.Equal(t, http.StatusNotFound, code)

	code, body = api.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "feapi_placements_total 3")
	require.Contains(t, body, "feapi_orders_completed_total 1")
	require.Contains(t, body, `feapi_plan_imports_total{result="ok"} 1`)
	require.Contains(t, body, `route="/item/{item_id}/placed"`)
}

func TestHTTPServer_RequiresDevice(t *testing.T) {
	api := newTestAPI(t)

	code, _ := api.do(t, http.MethodPost, "/init", "")
	require.Equal(t, http.StatusUnauthorized, code)

	code, body := api.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body)
}

func TestHTTPServer_Errors(t *testing.T) {
	api := newTestAPI(t)
	code, _ := api.do(t, http.MethodPost, "/init", "D1")
	require.Equal(t, http.StatusOK, code)

	code, _ = api.do(t, http.MethodGet, "/order", "D1")
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = api.do(t, http.MethodGet, "/items", "D1")
	require.Equal(t, http.StatusBadRequest, code)

	code, body := api.do(t, http.MethodPut, "/item/nope/placed", "D2")
	require.Equal(t, http.StatusNotFound, code)
	var detail map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &detail))
	require.Contains(t, detail["detail"], "not found")

	code, _ = api.do(t, http.MethodGet, "/order/O-1/status", "D2")
	require.Equal(t, http.StatusNotFound, code)
	code, body = api.do(t, http.MethodGet, "/order/O-1/status", "D1")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"message":"Ready"}`, body)

	code, _ = api.do(t, http.MethodGet, "/journal?limit=abc", "D1")
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(t, http.MethodPost, "/init", "bad device")
	require.Equal(t, http.StatusBadRequest, code)

	// D9 is bound to an order without trucks, which fails validation.
	code, _ = api.do(t, http.MethodPost, "/init", "D9")
	require.Equal(t, http.StatusBadGateway, code)
}

func TestHTTPServer_PalletFinishedAndJournal(t *testing.T) {
	api := newTestAPI(t)
	code, _ := api.do(t, http.MethodPost, "/init", "D1")
	require.Equal(t, http.StatusOK, code)

	code, body := api.do(t, http.MethodPut, "/pallet/P-1/finished", "D1")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"message":"Finished"}`, body)

	code, body = api.do(t, http.MethodGet, "/order?order_id=O-1", "D1")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"palletId":"#P-2"`)

	code, body = api.do(t, http.MethodGet, "/journal?limit=1", "D1")
	require.Equal(t, http.StatusOK, code)
	var resp struct {
		Entries []journal.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Len(t, resp.Entries, 1)
	require.Equal(t, journal.TypePalletFinished, resp.Entries[0].Type)
}

func TestHTTPServer_QuitAndAbort(t *testing.T) {
	api := newTestAPI(t)
	code, _ := api.do(t, http.MethodPost, "/init", "D1")
	require.Equal(t, http.StatusOK, code)

	code, body := api.do(t, http.MethodPost, "/abort", "D1")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"message":"Abort"}`, body)
	code, _ = api.do(t, http.MethodGet, "/order/O-1/status", "D1")
	require.Equal(t, http.StatusOK, code)

	code, _ = api.do(t, http.MethodPost, "/quit", "D1")
	require.Equal(t, http.StatusNoContent, code)
	code, _ = api.do(t, http.MethodGet, "/order/O-1/status", "D1")
	require.Equal(t, http.StatusNotFound, code)

	// A quit device starts over on the next init.
	code, _ = api.do(t, http.MethodPost, "/init", "D1")
	require.Equal(t, http.StatusOK, code)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusNotFound, StatusFor(load.ErrItemNotFound))
	require.Equal(t, http.StatusConflict, StatusFor(&load.ConsistencyError{Parent: "order", ParentID: "O-1", ChildID: "T-1"}))
	require.Equal(t, http.StatusServiceUnavailable, StatusFor(load.ErrStoreUnavailable))
	require.Equal(t, http.StatusBadGateway, StatusFor(load.ErrImportFailure))
	require.Equal(t, http.StatusBadRequest, StatusFor(load.ErrInvalidInput))
	require.Equal(t, http.StatusInternalServerError, StatusFor(io.ErrUnexpectedEOF))
}
