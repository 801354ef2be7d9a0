package sdk

import (
	"context"

	"github.com/celerix-dev/emap-store/pkg/schema"
)

// --- Functional Interfaces (Interface Segregation) ---

// WorkspaceLister enumerates registered workspaces.
type WorkspaceLister interface {
	ListWorkspaces(ctx context.Context) ([]schema.WorkspaceRecord, error)
}

// WorkspaceLifecycle creates, loads and deletes workspaces.
// Load succeeds exactly when the workspace became active.
type WorkspaceLifecycle interface {
	Create(ctx context.Context, name string) (schema.WorkspaceRecord, error)
	Load(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Active(ctx context.Context) (schema.ActiveWorkspace, error)
}

// KVReader reads keys of the active workspace.
type KVReader interface {
	GetValue(ctx context.Context, key string) (string, error)
}

// KVWriter writes keys of the active workspace.
type KVWriter interface {
	PutValue(ctx context.Context, key, value string) error
}

// AssetCatalog manages asset blobs and the active workspace's catalog.
type AssetCatalog interface {
	ListAssets(ctx context.Context) ([]schema.AssetRecord, error)
	PutAsset(ctx context.Context, asset schema.AssetRecord, data []byte) error
	GetAssetBytes(ctx context.Context, id string) ([]byte, string, error)
	DeleteAssetRecord(ctx context.Context, id string) error
	ImportAsset(ctx context.Context, path string) (string, error)
}

// SettingsStore reads and writes global settings.
type SettingsStore interface {
	Setting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string) error
}

// FileBrowser lists local directories for asset import.
type FileBrowser interface {
	ListDirectory(ctx context.Context, path string) ([]schema.DirEntry, error)
}

// --- Composite Interfaces ---

// WorkspaceService is the full contract offered to transports. Both the
// embedded engine and the remote Client implement it.
type WorkspaceService interface {
	WorkspaceLister
	WorkspaceLifecycle
	KVReader
	KVWriter
	AssetCatalog
	SettingsStore
	FileBrowser
}
