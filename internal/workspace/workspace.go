// Package workspace implements the per-workspace SQLite file holding the
// key-value table and the asset catalog.
package workspace

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/celerix-dev/emap-store/internal/sqlitedb"
	"github.com/celerix-dev/emap-store/pkg/schema"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is an open workspace file. It has no lock of its own; the active
// slot serializes every call.
type Store struct {
	id   string
	path string
	db   *sql.DB
}

// Path returns the file backing workspace id inside dir.
func Path(dir, id string) string {
	return filepath.Join(dir, id+".db")
}

// Open opens the workspace file for id, creating the file and its schema
// on first use.
func Open(dir, id string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, schema.StorageError("create workspace dir", err)
	}
	path := Path(dir, id)
	db, err := sqlitedb.Open(path, migrationsFS, "migrations")
	if err != nil {
		return nil, schema.StorageError("open workspace "+id, err)
	}
	return &Store{id: id, path: path, db: db}, nil
}

// Remove deletes the workspace file for id together with its WAL and SHM
// sidecars. Missing files are ignored.
func Remove(dir, id string) error {
	path := Path(dir, id)
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return schema.StorageError("remove workspace file", err)
		}
	}
	return nil
}

// ID returns the workspace id this store was opened for.
func (s *Store) ID() string { return s.id }

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", schema.ErrKeyNotFound, key)
	}
	if err != nil {
		return "", schema.StorageError("get "+key, err)
	}
	return value, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return schema.StorageError("put "+key, err)
	}
	return nil
}

// Assets lists the asset catalog ordered by id.
func (s *Store) Assets(ctx context.Context) ([]schema.AssetRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, mime_type FROM assets ORDER BY id")
	if err != nil {
		return nil, schema.StorageError("list assets", err)
	}
	defer rows.Close()

	assets := []schema.AssetRecord{}
	for rows.Next() {
		var rec schema.AssetRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.MimeType); err != nil {
			return nil, schema.StorageError("scan asset", err)
		}
		assets = append(assets, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, schema.StorageError("list assets", err)
	}
	return assets, nil
}

// PutAsset inserts rec or replaces the record with the same id.
func (s *Store) PutAsset(ctx context.Context, rec schema.AssetRecord) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO assets (id, name, mime_type) VALUES (?, ?, ?)",
		rec.ID, rec.Name, rec.MimeType,
	)
	if err != nil {
		return schema.StorageError("put asset "+rec.ID, err)
	}
	return nil
}

// DeleteAsset removes the catalog record for id. The blob is untouched.
func (s *Store) DeleteAsset(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id); err != nil {
		return schema.StorageError("delete asset "+id, err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
