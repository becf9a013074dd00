package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ganot/feapi/internal/domain/plan"
	"gopkg.in/yaml.v3"
)

// ErrNoPlan is returned when a snapshot holds no order for the device.
var ErrNoPlan = errors.New("no plan staged for device")

// FileSource serves plans from a staged planner snapshot on disk.
// The file is re-read on every fetch so a new snapshot can be dropped in place.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource reading path. Files ending in .yaml or
// .yml are decoded as YAML, everything else as JSON.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch returns the order staged for deviceID.
func (s *FileSource) Fetch(_ context.Context, deviceID string) (*plan.Order, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap plan.Snapshot
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &snap)
	default:
		err = json.Unmarshal(data, &snap)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", s.path, err)
	}

	order, ok := snap.ForDevice(deviceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPlan, deviceID)
	}
	return order, nil
}
