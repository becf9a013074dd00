package planner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ganot/feapi/internal/domain/plan"
	"github.com/stretchr/testify/require"
)

const snapshotJSON = `{
  "orders": [
    {
      "ID": "O-2",
      "devices": ["D2"],
      "trucks": [{"ID": "T-2", "brand": "MAN", "box": [{"ID": "P-9", "items": [{"itemid": "Z"}]}]}]
    },
    {
      "ID": "O-1",
      "trucks": [{
        "ID": "T-1",
        "brand": "Volvo",
        "box": [
          {"ID": "P-1", "v": 1, "u": 2, "gross_weight": 310.5, "width": 120, "height": 100, "depth": 80,
           "items": [{"itemid": "X", "name": "Crate", "Fragile": false, "Unit": 4}]},
          {"ID": "P-2", "items": [{"itemid": "X"}, {"itemid": "X"}]}
        ]
      }]
    }
  ]
}`

const snapshotYAML = `
orders:
  - ID: O-1
    trucks:
      - ID: T-1
        brand: Volvo
        box:
          - ID: P-1
            items:
              - itemid: X
                name: Crate
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileSource_JSON(t *testing.T) {
	src := NewFileSource(writeFile(t, "data.json", snapshotJSON))
	ctx := context.Background()

	order, err := src.Fetch(ctx, "D1")
	require.NoError(t, err)
	require.Equal(t, "O-1", order.ID)
	require.Len(t, order.Trucks, 1)
	require.Equal(t, "Volvo", order.Trucks[0].Brand)
	require.Len(t, order.Trucks[0].Pallets, 2)
	require.Equal(t, 310.5, order.Trucks[0].Pallets[0].GrossWeight)
	require.Equal(t, 3, order.Occurrences())

	x := order.Trucks[0].Pallets[0].Items[0]
	require.NotNil(t, x.Fragile)
	require.False(t, *x.Fragile)
	require.Nil(t, x.Heavy)
	require.Equal(t, 4, *x.Unit)

	bound, err := src.Fetch(ctx, "D2")
	require.NoError(t, err)
	require.Equal(t, "O-2", bound.ID)
}

func TestFileSource_YAML(t *testing.T) {
	src := NewFileSource(writeFile(t, "data.yaml", snapshotYAML))

	order, err := src.Fetch(context.Background(), "D1")
	require.NoError(t, err)
	require.Equal(t, "O-1", order.ID)
	require.Equal(t, "X", order.Trucks[0].Pallets[0].Items[0].ItemID)
	require.NoError(t, plan.Validate(order))
}

func TestFileSource_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing.json")).Fetch(ctx, "D1")
	require.Error(t, err)

	_, err = NewFileSource(writeFile(t, "bad.json", "{")).Fetch(ctx, "D1")
	require.Error(t, err)

	bound := `{"orders":[{"ID":"O-2","devices":["D2"],"trucks":[]}]}`
	_, err = NewFileSource(writeFile(t, "bound.json", bound)).Fetch(ctx, "D1")
	require.ErrorIs(t, err, ErrNoPlan)
}

func TestHTTPSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch r.URL.Path {
		case "/devices/D1/plan":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ID":"O-1","trucks":[{"ID":"T-1","box":[{"ID":"P-1","items":[{"itemid":"X"}]}]}]}`))
		case "/devices/broken/plan":
			_, _ = w.Write([]byte(`not json`))
		default:
			http.Error(w, "unknown device", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/", time.Second)
	ctx := context.Background()

	order, err := src.Fetch(ctx, "D1")
	require.NoError(t, err)
	require.Equal(t, "O-1", order.ID)
	require.Equal(t, "P-1", order.Trucks[0].Pallets[0].ID)

	_, err = src.Fetch(ctx, "D9")
	require.ErrorContains(t, err, "404")

	_, err = src.Fetch(ctx, "broken")
	require.ErrorContains(t, err, "decoding")
}

func TestHTTPSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPSource(url, time.Second).Fetch(context.Background(), "D1")
	require.ErrorContains(t, err, "calling planner")
}
