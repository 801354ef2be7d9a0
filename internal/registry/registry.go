// Package registry is the durable catalog of workspaces and global settings.
package registry

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/celerix-dev/emap-store/internal/sqlitedb"
	"github.com/celerix-dev/emap-store/pkg/schema"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store holds the workspaces and settings tables of the registry file.
type Store struct {
	mu  sync.RWMutex
	db  *sql.DB
	now func() time.Time
}

// Open opens the registry database at path, creating it if needed.
func Open(path string) (*Store, error) {
	db, err := sqlitedb.Open(path, migrationsFS, "migrations")
	if err != nil {
		return nil, schema.StorageError("open registry", err)
	}
	return newStore(db), nil
}

func newStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// List returns every workspace, newest first.
func (s *Store) List(ctx context.Context) ([]schema.WorkspaceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM workspaces ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, schema.StorageError("list workspaces", err)
	}
	defer rows.Close()

	records := []schema.WorkspaceRecord{}
	for rows.Next() {
		var rec schema.WorkspaceRecord
		var created int64
		if err := rows.Scan(&rec.ID, &rec.Name, &created); err != nil {
			return nil, schema.StorageError("scan workspace", err)
		}
		rec.CreatedAt = time.Unix(0, created).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, schema.StorageError("list workspaces", err)
	}
	return records, nil
}

// Create allocates a new workspace record with a fresh UUIDv4.
func (s *Store) Create(ctx context.Context, name string) (schema.WorkspaceRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return schema.WorkspaceRecord{}, fmt.Errorf("%w: workspace name is empty", schema.ErrInvalidInput)
	}

	rec := schema.WorkspaceRecord{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO workspaces (id, name, created_at) VALUES (?, ?, ?)",
		rec.ID, rec.Name, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return schema.WorkspaceRecord{}, schema.StorageError("create workspace", err)
	}
	return rec, nil
}

// Get returns the record for id, or schema.ErrWorkspaceNotFound.
func (s *Store) Get(ctx context.Context, id string) (schema.WorkspaceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := schema.WorkspaceRecord{ID: id}
	var created int64
	err := s.db.QueryRowContext(ctx,
		"SELECT name, created_at FROM workspaces WHERE id = ?", id,
	).Scan(&rec.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.WorkspaceRecord{}, fmt.Errorf("%w: %s", schema.ErrWorkspaceNotFound, id)
	}
	if err != nil {
		return schema.WorkspaceRecord{}, schema.StorageError("get workspace", err)
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	return rec, nil
}

// Delete removes the record for id. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM workspaces WHERE id = ?", id); err != nil {
		return schema.StorageError("delete workspace", err)
	}
	return nil
}

// Setting returns the value stored under key and whether it exists.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, schema.StorageError("get setting", err)
	}
	return value, true, nil
}

// PutSetting stores value under key, replacing any previous value.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, s.now().UTC().UnixNano(),
	)
	if err != nil {
		return schema.StorageError("put setting", err)
	}
	return nil
}

// DeleteSetting removes key. Removing an absent key is not an error.
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return schema.StorageError("delete setting", err)
	}
	return nil
}

// Close shuts down the database.
func (s *Store) Close() error {
	return s.db.Close()
}
