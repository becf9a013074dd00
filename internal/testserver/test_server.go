package testserver

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/ganot/feapi/internal/domain/fulfillment"
	"github.com/ganot/feapi/internal/domain/journal"
	"github.com/ganot/feapi/internal/domain/load"
	"github.com/ganot/feapi/internal/domain/plan"
	"github.com/ganot/feapi/internal/evidence"
	"github.com/ganot/feapi/internal/mcp"
	"github.com/ganot/feapi/internal/planner"
	"github.com/ganot/feapi/internal/tenant"
	"github.com/ganot/feapi/internal/transport"
)

// Secret signs the device tokens issued by Token.
const Secret = "test-secret"

// Snapshot is the planner snapshot served by default. D1 gets O-1: item X
// appears once on P-1 and twice on P-2, Y once on P-2.
const Snapshot = `{"orders":[
  {"ID":"O-1","devices":["D1"],"trucks":[{"ID":"T-1","brand":"Scania","box":[
    {"ID":"P-1","items":[{"itemid":"X","name":"Crate"}]},
    {"ID":"P-2","items":[{"itemid":"X","name":"Crate"},{"itemid":"X","name":"Crate"},{"itemid":"Y","name":"Barrel"}]}
  ]}]},
  {"ID":"O-2","devices":["D2"],"trucks":[{"ID":"T-9","box":[
    {"ID":"P-9","items":[{"itemid":"W","name":"Drum"}]}
  ]}]}
]}`

// TestServer runs the device API and MCP endpoint with JWT auth in front.
type TestServer struct {
	Server    *httptest.Server
	Tenants   *tenant.Manager
	Metrics   *transport.Metrics
	ImagesDir string
}

// New starts a server importing from Snapshot. Placement images live under ImagesDir.
func New(t *testing.T) *TestServer {
	t.Helper()
	return NewWithSnapshot(t, Snapshot)
}

// NewWithSnapshot starts a server importing from the given planner snapshot.
func NewWithSnapshot(t *testing.T, snapshot string) *TestServer {
	t.Helper()

	dir := t.TempDir()
	snapshotPath := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(snapshotPath, []byte(snapshot), 0o600))
	imagesDir := filepath.Join(dir, "placement_imgs")
	require.NoError(t, os.MkdirAll(imagesDir, 0o755))

	manager := tenant.NewManager(filepath.Join(dir, "stores"), nil)
	metrics := transport.NewMetrics()
	resolver := transport.NewJWTResolver(Secret, "")

	importer := plan.NewImporter(manager, planner.NewFileSource(snapshotPath), nil)
	fulfillmentSvc := fulfillment.NewService(manager, evidence.NewDirSource(imagesDir, "/image/placement_imgs"), transport.NewCompletionNotifier(metrics, nil), nil)
	querySvc := load.NewService(manager, nil)
	journalSvc := journal.NewService(manager, nil)

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Importer:    importer,
			Fulfillment: fulfillmentSvc,
			Queries:     querySvc,
			Tenants:     manager,
			Journal:     journalSvc,
		},
		Resolver:      resolver,
		AuthEnabled:   true,
		TransportMode: "http",
	})

	router := transport.NewServer(transport.Config{
		Services: transport.Services{
			Importer:    importer,
			Fulfillment: fulfillmentSvc,
			Queries:     querySvc,
			Tenants:     manager,
			Journal:     journalSvc,
		},
		Auth:    transport.AuthMiddleware(resolver),
		Metrics: metrics,
		MCP: sdkmcp.NewStreamableHTTPHandler(
			func(*http.Request) *sdkmcp.Server { return mcpServer },
			nil,
		),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		_ = manager.Close()
	})

	return &TestServer{
		Server:    server,
		Tenants:   manager,
		Metrics:   metrics,
		ImagesDir: imagesDir,
	}
}

// Token issues a bearer token for deviceID.
func Token(t *testing.T, deviceID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"preferred_username": deviceID,
		"exp":                time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(Secret))
	require.NoError(t, err)
	return signed
}

// AddImage drops a placement image for itemID.
func (ts *TestServer) AddImage(t *testing.T, itemID, name string) {
	t.Helper()
	dir := filepath.Join(ts.ImagesDir, itemID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("img"), 0o600))
}
