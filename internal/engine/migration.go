package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/celerix-dev/emap-store/internal/assets"
	"github.com/celerix-dev/emap-store/internal/workspace"
	"github.com/celerix-dev/emap-store/pkg/schema"
)

// legacySnapshot is everything read out of a single-workspace database.
type legacySnapshot struct {
	kv            map[string]string
	assets        []schema.AssetRecord
	monitorConfig string
}

// MigrateLegacy imports a single-workspace database into a new workspace
// called name and makes it active. The legacy file keeps kv_store, assets
// and system_data tables side by side; its blobs live in legacyAssetDir.
//
// It does nothing and reports false when legacyPath does not exist or the
// registry already holds workspaces, so it is safe to run on every start.
func (m *Manager) MigrateLegacy(ctx context.Context, legacyPath, legacyAssetDir, name string) (schema.WorkspaceRecord, bool, error) {
	if legacyPath == "" {
		return schema.WorkspaceRecord{}, false, nil
	}
	if _, err := os.Stat(legacyPath); errors.Is(err, os.ErrNotExist) {
		return schema.WorkspaceRecord{}, false, nil
	} else if err != nil {
		return schema.WorkspaceRecord{}, false, schema.StorageError("stat legacy db", err)
	}

	existing, err := m.registry.List(ctx)
	if err != nil {
		return schema.WorkspaceRecord{}, false, err
	}
	if len(existing) > 0 {
		m.log.Debug("registry not empty, skipping legacy import", "path", legacyPath)
		return schema.WorkspaceRecord{}, false, nil
	}

	snap, err := readLegacy(ctx, legacyPath)
	if err != nil {
		return schema.WorkspaceRecord{}, false, err
	}

	rec, err := m.registry.Create(ctx, name)
	if err != nil {
		return schema.WorkspaceRecord{}, false, err
	}
	if err := m.copyLegacy(ctx, rec.ID, snap, legacyAssetDir); err != nil {
		if delErr := m.Delete(ctx, rec.ID); delErr != nil {
			m.log.Warn("could not roll back partial legacy import", "id", rec.ID, "error", delErr)
		}
		return schema.WorkspaceRecord{}, false, fmt.Errorf("import legacy data: %w", err)
	}

	if snap.monitorConfig != "" {
		if _, ok, err := m.registry.Setting(ctx, schema.SettingMonitorConfig); err == nil && !ok {
			if err := m.registry.PutSetting(ctx, schema.SettingMonitorConfig, snap.monitorConfig); err != nil {
				return rec, true, err
			}
		}
	}

	if err := m.Load(ctx, rec.ID); err != nil {
		return rec, true, err
	}
	m.log.Info("legacy database imported",
		"path", legacyPath,
		"id", rec.ID,
		"keys", len(snap.kv),
		"assets", len(snap.assets),
	)
	return rec, true, nil
}

func (m *Manager) copyLegacy(ctx context.Context, id string, snap legacySnapshot, legacyAssetDir string) error {
	ws, err := workspace.Open(m.workspaceDir, id)
	if err != nil {
		return err
	}
	defer ws.Close()

	for k, v := range snap.kv {
		if err := ws.Put(ctx, k, v); err != nil {
			return fmt.Errorf("failed to set key %s: %w", k, err)
		}
	}

	for _, asset := range snap.assets {
		if _, err := assets.ValidateName(asset.ID); err != nil {
			m.log.Warn("skipping legacy asset with unusable id", "id", asset.ID)
			continue
		}
		if legacyAssetDir != "" {
			src := filepath.Join(legacyAssetDir, asset.ID)
			if _, err := os.Stat(src); err == nil {
				if _, err := m.blobs.Import(src); err != nil {
					return fmt.Errorf("failed to import blob %s: %w", asset.ID, err)
				}
			} else {
				m.log.Warn("legacy asset has no blob", "id", asset.ID)
			}
		}
		if err := ws.PutAsset(ctx, asset); err != nil {
			return fmt.Errorf("failed to record asset %s: %w", asset.ID, err)
		}
	}
	return nil
}

func readLegacy(ctx context.Context, path string) (legacySnapshot, error) {
	snap := legacySnapshot{kv: make(map[string]string)}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return snap, schema.StorageError("open legacy db", err)
	}
	defer db.Close()

	tables, err := legacyTables(ctx, db)
	if err != nil {
		return snap, err
	}

	if tables["kv_store"] {
		rows, err := db.QueryContext(ctx, "SELECT key, value FROM kv_store")
		if err != nil {
			return snap, schema.StorageError("read legacy kv", err)
		}
		defer rows.Close()
		for rows.Next() {
			var key string
			var value sql.NullString
			if err := rows.Scan(&key, &value); err != nil {
				return snap, schema.StorageError("scan legacy kv", err)
			}
			snap.kv[key] = value.String
		}
		if err := rows.Err(); err != nil {
			return snap, schema.StorageError("read legacy kv", err)
		}
	}

	if tables["assets"] {
		rows, err := db.QueryContext(ctx, "SELECT id, name, mime_type FROM assets")
		if err != nil {
			return snap, schema.StorageError("read legacy assets", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			var name, mimeType sql.NullString
			if err := rows.Scan(&id, &name, &mimeType); err != nil {
				return snap, schema.StorageError("scan legacy asset", err)
			}
			asset := schema.AssetRecord{ID: id, Name: name.String, MimeType: mimeType.String}
			if asset.Name == "" {
				asset.Name = id
			}
			if asset.MimeType == "" {
				asset.MimeType = schema.DefaultMimeType
			}
			snap.assets = append(snap.assets, asset)
		}
		if err := rows.Err(); err != nil {
			return snap, schema.StorageError("read legacy assets", err)
		}
	}

	if tables["system_data"] {
		var value sql.NullString
		err := db.QueryRowContext(ctx,
			"SELECT value FROM system_data WHERE key = ?", schema.SettingMonitorConfig,
		).Scan(&value)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return snap, schema.StorageError("read legacy settings", err)
		}
		snap.monitorConfig = value.String
	}

	return snap, nil
}

func legacyTables(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return nil, schema.StorageError("read legacy schema", err)
	}
	defer rows.Close()

	tables := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, schema.StorageError("read legacy schema", err)
		}
		tables[name] = true
	}
	return tables, rows.Err()
}
