package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/celerix-dev/emap-store/internal/engine"
	"github.com/celerix-dev/emap-store/pkg/schema"
	"github.com/gin-gonic/gin"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *engine.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := engine.Open(context.Background(), engine.Options{DataDir: t.TempDir(), Logger: log})
	if err != nil {
		t.Fatalf("engine.Open: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	return NewRouter(&Handler{Service: m, Log: log}), m
}

func doRequest(r http.Handler, method, path string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body %q: %v", w.Body.String(), err)
	}
	return body.Code
}

func TestCreateAndListWorkspaces(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := doRequest(r, "GET", "/api/workspaces", nil, nil)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty list = %d %q", w.Code, w.Body.String())
	}

	body, _ := json.Marshal(map[string]string{"name": "Studio"})
	w = doRequest(r, "POST", "/api/workspaces", bytes.NewReader(body), map[string]string{"Content-Type": "application/json"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var rec schema.WorkspaceRecord
	json.Unmarshal(w.Body.Bytes(), &rec)
	if rec.ID == "" || rec.Name != "Studio" {
		t.Errorf("created = %+v", rec)
	}

	w = doRequest(r, "GET", "/api/workspaces", nil, nil)
	var list []schema.WorkspaceRecord
	json.Unmarshal(w.Body.Bytes(), &list)
	if len(list) != 1 || list[0].ID != rec.ID {
		t.Errorf("list = %+v", list)
	}

	w = doRequest(r, "GET", "/api/workspaces/active", nil, nil)
	var active schema.ActiveWorkspace
	json.Unmarshal(w.Body.Bytes(), &active)
	if w.Code != http.StatusOK || active.ID != rec.ID || active.Name != "Studio" {
		t.Errorf("active = %d %+v", w.Code, active)
	}
}

func TestCreateWorkspace_InvalidName(t *testing.T) {
	r, _ := setupTestRouter(t)

	for _, body := range []string{`{}`, `{"name":"   "}`, `not json`} {
		w := doRequest(r, "POST", "/api/workspaces", strings.NewReader(body), map[string]string{"Content-Type": "application/json"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", body, w.Code)
		}
		if code := decodeError(t, w); code != "invalid_input" {
			t.Errorf("%s: code %q", body, code)
		}
	}
}

func TestLoadAndDeleteWorkspace(t *testing.T) {
	r, m := setupTestRouter(t)
	ctx := context.Background()
	a, _ := m.Create(ctx, "A")
	b, _ := m.Create(ctx, "B")

	w := doRequest(r, "POST", "/api/workspaces/"+a.ID+"/load", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("load: %d %s", w.Code, w.Body.String())
	}
	if active, _ := m.Active(ctx); active.ID != a.ID {
		t.Errorf("active = %s, want %s", active.ID, a.ID)
	}

	w = doRequest(r, "POST", "/api/workspaces/not-a-uuid/load", nil, nil)
	if w.Code != http.StatusNotFound || decodeError(t, w) != "workspace_not_found" {
		t.Errorf("bad load = %d %s", w.Code, w.Body.String())
	}

	w = doRequest(r, "DELETE", "/api/workspaces/"+a.ID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	w = doRequest(r, "GET", "/api/workspaces/active", nil, nil)
	if w.Code != http.StatusNotFound || decodeError(t, w) != "no_active_workspace" {
		t.Errorf("active after delete = %d %s", w.Code, w.Body.String())
	}

	w = doRequest(r, "DELETE", "/api/workspaces/"+a.ID, nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("second delete = %d, want 200", w.Code)
	}

	list, _ := m.ListWorkspaces(ctx)
	if len(list) != 1 || list[0].ID != b.ID {
		t.Errorf("remaining = %+v", list)
	}
}

func TestKeyValue(t *testing.T) {
	r, m := setupTestRouter(t)

	w := doRequest(r, "POST", "/api/kv/layout", strings.NewReader(`{"cols":3}`), nil)
	if w.Code != http.StatusConflict || decodeError(t, w) != "no_active_workspace" {
		t.Errorf("write without workspace = %d %s", w.Code, w.Body.String())
	}
	w = doRequest(r, "GET", "/api/kv/layout", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("read without workspace = %d", w.Code)
	}

	m.Create(context.Background(), "ws")

	w = doRequest(r, "POST", "/api/kv/layout", strings.NewReader(`{"cols":3}`), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("put: %d %s", w.Code, w.Body.String())
	}
	w = doRequest(r, "GET", "/api/kv/layout", nil, nil)
	if w.Code != http.StatusOK || w.Body.String() != `{"cols":3}` {
		t.Errorf("get = %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	w = doRequest(r, "GET", "/api/kv/missing", nil, nil)
	if w.Code != http.StatusNotFound || decodeError(t, w) != "key_not_found" {
		t.Errorf("missing key = %d %s", w.Code, w.Body.String())
	}
}

func TestAssets(t *testing.T) {
	r, m := setupTestRouter(t)

	w := doRequest(r, "GET", "/api/assets", nil, nil)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("assets without workspace = %d %q", w.Code, w.Body.String())
	}

	m.Create(context.Background(), "ws")

	w = doRequest(r, "POST", "/api/asset/logo.png", strings.NewReader("png-bytes"), map[string]string{
		"Content-Type": "image/x-custom",
		"X-Asset-Name": "Logo",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save: %d %s", w.Code, w.Body.String())
	}

	w = doRequest(r, "GET", "/api/assets", nil, nil)
	var list []schema.AssetRecord
	json.Unmarshal(w.Body.Bytes(), &list)
	if len(list) != 1 || list[0] != (schema.AssetRecord{ID: "logo.png", Name: "Logo", MimeType: "image/x-custom"}) {
		t.Errorf("list = %+v", list)
	}

	w = doRequest(r, "GET", "/api/asset/logo.png", nil, nil)
	if w.Code != http.StatusOK || w.Body.String() != "png-bytes" {
		t.Errorf("get = %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}

	w = doRequest(r, "DELETE", "/api/asset/logo.png", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	w = doRequest(r, "GET", "/api/asset/logo.png", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("blob should survive record delete, got %d", w.Code)
	}

	w = doRequest(r, "GET", "/api/asset/nope.bin", nil, nil)
	if w.Code != http.StatusNotFound || decodeError(t, w) != "asset_not_found" {
		t.Errorf("missing asset = %d %s", w.Code, w.Body.String())
	}
}

func TestSaveAsset_TooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := engine.Open(context.Background(), engine.Options{DataDir: t.TempDir(), Logger: log})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	m.Create(context.Background(), "ws")

	r := NewRouter(&Handler{Service: m, Log: log, MaxUploadBytes: 4})
	w := doRequest(r, "POST", "/api/asset/big.bin", strings.NewReader("0123456789"), nil)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestImportAsset(t *testing.T) {
	r, m := setupTestRouter(t)
	m.Create(context.Background(), "ws")

	src := filepath.Join(t.TempDir(), "notes.txt")
	os.WriteFile(src, []byte("hello"), 0644)

	body, _ := json.Marshal(map[string]string{"path": src})
	w := doRequest(r, "POST", "/api/assets/import", bytes.NewReader(body), map[string]string{"Content-Type": "application/json"})
	if w.Code != http.StatusOK {
		t.Fatalf("import: %d %s", w.Code, w.Body.String())
	}
	var out map[string]string
	json.Unmarshal(w.Body.Bytes(), &out)
	if out["name"] != "notes.txt" {
		t.Errorf("name = %q", out["name"])
	}

	body, _ = json.Marshal(map[string]string{"path": filepath.Join(t.TempDir(), "missing.txt")})
	w = doRequest(r, "POST", "/api/assets/import", bytes.NewReader(body), map[string]string{"Content-Type": "application/json"})
	if w.Code != http.StatusNotFound || decodeError(t, w) != "path_not_found" {
		t.Errorf("missing import = %d %s", w.Code, w.Body.String())
	}
}

func TestListDirectory(t *testing.T) {
	r, _ := setupTestRouter(t)
	dir := t.TempDir()
	os.Mkdir(filepath.Join(dir, "sub"), 0755)
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644)

	w := doRequest(r, "GET", "/api/fs?path="+dir, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("fs: %d %s", w.Code, w.Body.String())
	}
	var entries []schema.DirEntry
	json.Unmarshal(w.Body.Bytes(), &entries)
	if len(entries) != 2 || entries[0].Name != "sub" || !entries[0].IsDir || entries[1].Name != "a.txt" {
		t.Errorf("entries = %+v", entries)
	}

	w = doRequest(r, "GET", "/api/fs", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty path = %d, want 400", w.Code)
	}
}

func TestSettingsAndMonitorConfig(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := doRequest(r, "GET", "/api/settings/theme", nil, nil)
	if w.Code != http.StatusNotFound || decodeError(t, w) != "not_found" {
		t.Errorf("missing setting = %d %s", w.Code, w.Body.String())
	}
	w = doRequest(r, "PUT", "/api/settings/theme", strings.NewReader("dark"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("put setting: %d", w.Code)
	}
	w = doRequest(r, "GET", "/api/settings/theme", nil, nil)
	var setting map[string]string
	json.Unmarshal(w.Body.Bytes(), &setting)
	if setting["value"] != "dark" {
		t.Errorf("setting = %+v", setting)
	}

	w = doRequest(r, "GET", "/api/config/monitor", nil, nil)
	var cfg schema.MonitorConfig
	json.Unmarshal(w.Body.Bytes(), &cfg)
	if w.Code != http.StatusOK || cfg.ControlPanelMonitorID != 0 {
		t.Errorf("default monitor config = %d %+v", w.Code, cfg)
	}

	w = doRequest(r, "POST", "/api/config/monitor", strings.NewReader(`{"control_panel_monitor_id":2}`), map[string]string{"Content-Type": "application/json"})
	if w.Code != http.StatusOK {
		t.Fatalf("save monitor config: %d", w.Code)
	}
	w = doRequest(r, "GET", "/api/config/monitor", nil, nil)
	json.Unmarshal(w.Body.Bytes(), &cfg)
	if cfg.ControlPanelMonitorID != 2 {
		t.Errorf("monitor config = %+v", cfg)
	}
}

func TestKeyValue_SlashInKey(t *testing.T) {
	r, m := setupTestRouter(t)
	m.Create(context.Background(), "ws")

	w := doRequest(r, "POST", "/api/kv/scene%2F1", strings.NewReader(`{"id":1}`), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("put: %d %s", w.Code, w.Body.String())
	}
	w = doRequest(r, "GET", "/api/kv/scene%2F1", nil, nil)
	if w.Code != http.StatusOK || w.Body.String() != `{"id":1}` {
		t.Errorf("get = %d %q", w.Code, w.Body.String())
	}
	if v, err := m.GetValue(context.Background(), "scene/1"); err != nil || v != `{"id":1}` {
		t.Errorf("stored under %q: %q, %v", "scene/1", v, err)
	}
}

func TestCORSAndNoRoute(t *testing.T) {
	r, _ := setupTestRouter(t)

	for _, origin := range []string{"http://localhost:5173", "http://127.0.0.1:8080", "http://[::1]:3000"} {
		w := doRequest(r, "OPTIONS", "/api/workspaces", nil, map[string]string{"Origin": origin})
		if w.Code != http.StatusNoContent {
			t.Errorf("%s preflight = %d", origin, w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != origin {
			t.Errorf("%s allow origin = %q", origin, got)
		}
	}

	w := doRequest(r, "GET", "/api/workspaces", nil, nil)
	if w.Code != http.StatusOK || w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("no origin = %d %q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}

	w = doRequest(r, "GET", "/api/nope", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("no route = %d", w.Code)
	}
}

func TestCORS_ForeignOriginRefused(t *testing.T) {
	r, m := setupTestRouter(t)
	evil := map[string]string{"Origin": "http://evil.example"}

	w := doRequest(r, "OPTIONS", "/api/workspaces", nil, evil)
	if w.Code != http.StatusForbidden {
		t.Errorf("preflight = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow origin = %q", got)
	}

	w = doRequest(r, "GET", "/api/fs?path=/", nil, evil)
	if w.Code != http.StatusForbidden || decodeError(t, w) != "invalid_input" {
		t.Errorf("fs = %d %s", w.Code, w.Body.String())
	}

	body, _ := json.Marshal(map[string]string{"name": "Pwned"})
	w = doRequest(r, "POST", "/api/workspaces", bytes.NewReader(body), evil)
	if w.Code != http.StatusForbidden {
		t.Errorf("create = %d", w.Code)
	}
	if list, _ := m.ListWorkspaces(context.Background()); len(list) != 0 {
		t.Errorf("foreign origin created %+v", list)
	}
}

func TestCORS_ConfiguredOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{Log: slog.New(slog.NewTextHandler(io.Discard, nil)), AllowOrigins: []string{"https://editor.example/"}}
	r := NewRouter(h)

	w := doRequest(r, "OPTIONS", "/api/workspaces", nil, map[string]string{"Origin": "https://editor.example"})
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "https://editor.example" {
		t.Errorf("listed origin = %d %q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}
	// An explicit list replaces the loopback default.
	w = doRequest(r, "OPTIONS", "/api/workspaces", nil, map[string]string{"Origin": "http://localhost:5173"})
	if w.Code != http.StatusForbidden {
		t.Errorf("loopback with explicit list = %d", w.Code)
	}

	r = NewRouter(&Handler{Log: h.Log, AllowOrigins: []string{"*"}})
	w = doRequest(r, "OPTIONS", "/api/workspaces", nil, map[string]string{"Origin": "http://anything.example"})
	if w.Code != http.StatusNoContent {
		t.Errorf("wildcard = %d", w.Code)
	}
}
