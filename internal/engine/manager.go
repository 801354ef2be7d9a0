// Package engine coordinates the registry, the active workspace slot and
// the asset blob store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/celerix-dev/emap-store/internal/assets"
	"github.com/celerix-dev/emap-store/internal/registry"
	"github.com/celerix-dev/emap-store/internal/workspace"
	"github.com/celerix-dev/emap-store/pkg/schema"
)

// Options configures Open.
type Options struct {
	// DataDir holds registry.db and the workspaces/ directory.
	DataDir string
	// AssetDir holds asset blobs. Defaults to DataDir/assets.
	AssetDir string
	Logger   *slog.Logger
}

// Manager implements the workspace lifecycle on top of the registry, the
// active slot and the blob store.
type Manager struct {
	// lifecycle serializes Create, Load and Delete end to end, so the
	// registry record, the slot and last-active always move together.
	lifecycle sync.Mutex

	registry     *registry.Store
	slot         *Slot
	blobs        *assets.Store
	workspaceDir string
	log          *slog.Logger
}

// Open creates the data directories, opens the registry and restores the
// last active workspace before returning.
func Open(ctx context.Context, opts Options) (*Manager, error) {
	if opts.DataDir == "" {
		return nil, fmt.Errorf("%w: data dir is empty", schema.ErrInvalidInput)
	}
	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return nil, schema.StorageError("create data dir", err)
	}
	assetDir := opts.AssetDir
	if assetDir == "" {
		assetDir = filepath.Join(opts.DataDir, "assets")
	}

	reg, err := registry.Open(filepath.Join(opts.DataDir, "registry.db"))
	if err != nil {
		return nil, err
	}
	blobs, err := assets.New(assetDir)
	if err != nil {
		reg.Close()
		return nil, err
	}

	m := New(reg, blobs, filepath.Join(opts.DataDir, "workspaces"), opts.Logger)
	m.Recover(ctx)
	return m, nil
}

// New assembles a Manager from already opened parts. It does not run
// recovery.
func New(reg *registry.Store, blobs *assets.Store, workspaceDir string, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		registry:     reg,
		slot:         NewSlot(workspaceDir),
		blobs:        blobs,
		workspaceDir: workspaceDir,
		log:          log,
	}
}

// Recover loads the workspace recorded as last active. Failures are logged
// and otherwise ignored: the process then runs with no active workspace.
func (m *Manager) Recover(ctx context.Context) {
	id, ok, err := m.registry.Setting(ctx, schema.SettingLastActiveWorkspace)
	if err != nil {
		m.log.Warn("could not read last active workspace", "error", err)
		return
	}
	if !ok || id == "" {
		m.log.Debug("no workspace to restore")
		return
	}
	if err := m.Load(ctx, id); err != nil {
		m.log.Warn("could not restore last active workspace", "id", id, "error", err)
		return
	}
	m.log.Info("restored last active workspace", "id", id)
}

// Close closes the active workspace and the registry.
func (m *Manager) Close() error {
	return errors.Join(m.slot.Clear(), m.registry.Close())
}

// --- Workspace lifecycle ---

// ListWorkspaces returns every registered workspace, newest first.
func (m *Manager) ListWorkspaces(ctx context.Context) ([]schema.WorkspaceRecord, error) {
	return m.registry.List(ctx)
}

// Create registers a workspace and makes it active. If the workspace file
// cannot be opened the record is still returned along with the error; a
// later Load creates the file.
func (m *Manager) Create(ctx context.Context, name string) (schema.WorkspaceRecord, error) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	rec, err := m.registry.Create(ctx, name)
	if err != nil {
		return schema.WorkspaceRecord{}, err
	}
	m.log.Info("workspace created", "id", rec.ID, "name", rec.Name)

	if err := m.activate(ctx, rec.ID); err != nil {
		return rec, err
	}
	return rec, nil
}

// Load makes id the active workspace and records it for the next start.
func (m *Manager) Load(ctx context.Context, id string) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", schema.ErrWorkspaceNotFound, id)
	}
	if _, err := m.registry.Get(ctx, id); err != nil {
		return err
	}
	return m.activate(ctx, id)
}

func (m *Manager) activate(ctx context.Context, id string) error {
	if err := m.slot.SwitchTo(id); err != nil {
		m.log.Error("workspace switch failed", "id", id, "error", err)
		return err
	}
	if err := m.registry.PutSetting(ctx, schema.SettingLastActiveWorkspace, id); err != nil {
		return err
	}
	m.log.Info("workspace loaded", "id", id)
	return nil
}

// Delete removes the workspace record and its file. Deleting the active
// workspace leaves the process with no active workspace. Unknown ids are
// not an error.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if err := m.registry.Delete(ctx, id); err != nil {
		return err
	}

	cleared, err := m.slot.ClearIf(id)
	if err != nil {
		return err
	}
	last, ok, err := m.registry.Setting(ctx, schema.SettingLastActiveWorkspace)
	if err != nil {
		return err
	}
	if ok && last == id {
		if err := m.registry.DeleteSetting(ctx, schema.SettingLastActiveWorkspace); err != nil {
			return err
		}
	}

	// Only ids that could have produced a file name are removed from disk.
	if _, err := uuid.Parse(id); err == nil {
		if err := workspace.Remove(m.workspaceDir, id); err != nil {
			return err
		}
	}
	m.log.Info("workspace deleted", "id", id, "was_active", cleared)
	return nil
}

// Active returns the active workspace. Its name is empty when the record
// has vanished from the registry.
func (m *Manager) Active(ctx context.Context) (schema.ActiveWorkspace, error) {
	id, ok := m.slot.Current()
	if !ok {
		return schema.ActiveWorkspace{}, schema.ErrNoActiveWorkspace
	}
	active := schema.ActiveWorkspace{ID: id}
	rec, err := m.registry.Get(ctx, id)
	switch {
	case err == nil:
		active.Name = rec.Name
	case !errors.Is(err, schema.ErrNotFound):
		return schema.ActiveWorkspace{}, err
	}
	return active, nil
}

// --- Key-value ---

// GetValue reads key from the active workspace.
func (m *Manager) GetValue(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", schema.ErrInvalidInput)
	}
	var value string
	err := m.slot.Do(func(ws *workspace.Store) error {
		var err error
		value, err = ws.Get(ctx, key)
		return err
	})
	return value, err
}

// PutValue writes key in the active workspace.
func (m *Manager) PutValue(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", schema.ErrInvalidInput)
	}
	return m.slot.Do(func(ws *workspace.Store) error {
		return ws.Put(ctx, key, value)
	})
}

// --- Assets ---

// ListAssets returns the asset catalog of the active workspace.
func (m *Manager) ListAssets(ctx context.Context) ([]schema.AssetRecord, error) {
	var list []schema.AssetRecord
	err := m.slot.Do(func(ws *workspace.Store) error {
		var err error
		list, err = ws.Assets(ctx)
		return err
	})
	return list, err
}

// PutAsset writes the blob for asset.ID and records it in the active
// workspace. The declared MIME type is stored as given. The blob is written
// outside the slot lock; only the record write holds it.
func (m *Manager) PutAsset(ctx context.Context, asset schema.AssetRecord, data []byte) error {
	if _, err := assets.ValidateName(asset.ID); err != nil {
		return err
	}
	if strings.TrimSpace(asset.Name) == "" {
		asset.Name = asset.ID
	}
	if strings.TrimSpace(asset.MimeType) == "" {
		asset.MimeType = schema.DefaultMimeType
	}
	if !m.slot.Occupied() {
		return schema.ErrNoActiveWorkspace
	}
	if err := m.blobs.Write(asset.ID, data); err != nil {
		return err
	}
	return m.slot.Do(func(ws *workspace.Store) error {
		return ws.PutAsset(ctx, asset)
	})
}

// GetAssetBytes returns the blob called id and a MIME type derived from
// its extension. Blobs are shared, so no active workspace is needed.
func (m *Manager) GetAssetBytes(ctx context.Context, id string) ([]byte, string, error) {
	data, err := m.blobs.Read(id)
	if err != nil {
		return nil, "", err
	}
	return data, assets.MimeTypeByName(id), nil
}

// DeleteAssetRecord removes the catalog record from the active workspace.
// The blob stays on disk.
func (m *Manager) DeleteAssetRecord(ctx context.Context, id string) error {
	return m.slot.Do(func(ws *workspace.Store) error {
		return ws.DeleteAsset(ctx, id)
	})
}

// ImportAsset brings the file at path into the asset directory and records
// it in the active workspace under its base name. The copy runs outside the
// slot lock; if the workspace is switched meanwhile the record lands in the
// new active workspace.
func (m *Manager) ImportAsset(ctx context.Context, path string) (string, error) {
	if !m.slot.Occupied() {
		return "", schema.ErrNoActiveWorkspace
	}
	name, err := m.blobs.Import(path)
	if err != nil {
		return "", err
	}
	blobPath, err := m.blobs.Path(name)
	if err != nil {
		return "", err
	}
	rec := schema.AssetRecord{
		ID:       name,
		Name:     name,
		MimeType: assets.SniffMimeType(blobPath),
	}
	err = m.slot.Do(func(ws *workspace.Store) error {
		return ws.PutAsset(ctx, rec)
	})
	if err != nil {
		return "", err
	}
	m.log.Debug("asset imported", "source", path, "name", name)
	return name, nil
}

// ListDirectory lists path for the import picker.
func (m *Manager) ListDirectory(ctx context.Context, path string) ([]schema.DirEntry, error) {
	return assets.ListDir(path)
}

// --- Settings ---

// Setting returns a global setting.
func (m *Manager) Setting(ctx context.Context, key string) (string, bool, error) {
	return m.registry.Setting(ctx, key)
}

// PutSetting stores a global setting.
func (m *Manager) PutSetting(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: empty setting key", schema.ErrInvalidInput)
	}
	return m.registry.PutSetting(ctx, key, value)
}
