// Package evidence resolves placement evidence (image references) for item types.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ganot/feapi/internal/domain/load"
)

// DirSource lists placement images from {dir}/{itemID}.
type DirSource struct {
	dir    string
	prefix string
}

// NewDirSource creates a DirSource. References are built as {urlPrefix}/{itemID}/{file}.
func NewDirSource(dir, urlPrefix string) *DirSource {
	return &DirSource{dir: dir, prefix: strings.TrimRight(urlPrefix, "/")}
}

// Images returns the sorted image references for itemID. A missing folder means none.
func (s *DirSource) Images(_ context.Context, itemID string) ([]string, error) {
	if err := checkItemID(itemID); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.dir, itemID))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing placement images for %s: %w", itemID, err)
	}

	refs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		refs = append(refs, path.Join(s.prefix, itemID, e.Name()))
	}
	sort.Strings(refs)
	return refs, nil
}

func checkItemID(itemID string) error {
	if itemID == "" || itemID == "." || itemID == ".." || strings.ContainsAny(itemID, `/\`) {
		return fmt.Errorf("%w: item id %q", load.ErrInvalidInput, itemID)
	}
	return nil
}
