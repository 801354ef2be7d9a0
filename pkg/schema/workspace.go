// Package schema defines the data structures shared by the Emap store, its SDK and its transports.
package schema

import "time"

// Well-known keys in the registry settings table.
const (
	SettingLastActiveWorkspace = "last_active_workspace_id"
	SettingMonitorConfig       = "monitor_config"
)

// DefaultMimeType is used whenever no better content type is known.
const DefaultMimeType = "application/octet-stream"

// WorkspaceRecord is the registry entry for one project workspace.
type WorkspaceRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ActiveWorkspace identifies the workspace currently open in the slot.
type ActiveWorkspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AssetRecord is the catalog entry for an asset blob. ID is also the blob's file name.
type AssetRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
}

// MonitorConfig is stored as JSON under SettingMonitorConfig.
type MonitorConfig struct {
	ControlPanelMonitorID uint32 `json:"control_panel_monitor_id"`
}

// DirEntry describes one entry of a directory listing.
type DirEntry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	IsDir   bool      `json:"is_dir"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}
