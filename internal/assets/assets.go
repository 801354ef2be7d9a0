// Package assets manages the shared directory of asset blobs. Blobs are
// named by asset id and shared by every workspace; catalog records live in
// each workspace file.
package assets

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/celerix-dev/emap-store/pkg/schema"
)

// Store handles blob I/O inside Dir. It keeps no lock: every write goes to
// a private temp file that is renamed into place.
type Store struct {
	Dir string
}

// New initializes a blob store, creating dir if needed.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, schema.StorageError("resolve asset dir", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, schema.StorageError("create asset dir", err)
	}
	return &Store{Dir: abs}, nil
}

// ValidateName returns name if it can be used as a blob file name.
func ValidateName(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: bad asset name %q", schema.ErrInvalidInput, name)
	}
	return name, nil
}

// Path returns the blob path for name.
func (s *Store) Path(name string) (string, error) {
	name, err := ValidateName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, name), nil
}

// Write creates or overwrites the blob called name.
func (s *Store) Write(name string, data []byte) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Read returns the content of the blob called name.
func (s *Store) Read(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", schema.ErrAssetNotFound, name)
	}
	if err != nil {
		return nil, schema.StorageError("read asset "+name, err)
	}
	return data, nil
}

// Import copies the file at src into the asset directory under its base
// name and returns that name. A file that already lives in the asset
// directory is not copied. An existing blob with the same name is
// overwritten.
func (s *Store) Import(src string) (string, error) {
	abs, err := filepath.Abs(src)
	if err != nil {
		return "", fmt.Errorf("%w: %v", schema.ErrInvalidInput, err)
	}
	name, err := ValidateName(filepath.Base(abs))
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", schema.ErrPathNotFound, src)
	}
	if err != nil {
		return "", schema.StorageError("stat "+src, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", schema.ErrInvalidInput, src)
	}

	if s.contains(abs) {
		return name, nil
	}

	in, err := os.Open(abs)
	if err != nil {
		return "", schema.StorageError("open "+src, err)
	}
	defer in.Close()

	err = writeAtomic(filepath.Join(s.Dir, name), func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// contains reports whether path sits directly inside the asset directory.
func (s *Store) contains(path string) bool {
	parent := filepath.Dir(path)
	if parent == s.Dir {
		return true
	}
	a, err := os.Stat(parent)
	if err != nil {
		return false
	}
	b, err := os.Stat(s.Dir)
	if err != nil {
		return false
	}
	return os.SameFile(a, b)
}

// writeAtomic writes to a temp file next to path and renames it into place,
// so readers see either the old blob or the new one.
func writeAtomic(path string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return schema.StorageError("create temp blob", err)
	}
	tmpPath := tmp.Name()

	if err := fill(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return schema.StorageError("write blob", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return schema.StorageError("close blob", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return schema.StorageError("rename blob", err)
	}
	return nil
}
