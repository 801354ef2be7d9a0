package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/celerix-dev/emap-store/pkg/schema"
)

// ListDir lists path for the import picker: directories first, then files,
// each group sorted by name.
func ListDir(path string) ([]schema.DirEntry, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", schema.ErrInvalidInput)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrInvalidInput, err)
	}

	entries, err := os.ReadDir(abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", schema.ErrPathNotFound, path)
	}
	if err != nil {
		return nil, schema.StorageError("read dir "+path, err)
	}

	out := make([]schema.DirEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		out = append(out, schema.DirEntry{
			Name:    e.Name(),
			Path:    filepath.Join(abs, e.Name()),
			IsDir:   e.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDir != out[j].IsDir {
			return out[i].IsDir
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
