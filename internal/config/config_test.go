package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "emap.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EMAP_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "./data" || cfg.HTTPAddr != "127.0.0.1:7002" || cfg.ControlAddr != "" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.MaxUploadBytes != 1<<30 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if len(cfg.AllowOrigins) != 0 {
		t.Errorf("AllowOrigins = %q", cfg.AllowOrigins)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
data_dir = "/var/lib/emap"
control_addr = "127.0.0.1:7001"
legacy_db = "/old/emap.db"

[log]
level = "debug"
format = "json"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/var/lib/emap" || cfg.ControlAddr != "127.0.0.1:7001" || cfg.LegacyDB != "/old/emap.db" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.HTTPAddr != "127.0.0.1:7002" {
		t.Errorf("unset key lost its default: %q", cfg.HTTPAddr)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `data_dir = "/from/file"`)
	t.Setenv("EMAP_DATA_DIR", "/from/env")
	t.Setenv("EMAP_MAX_UPLOAD_BYTES", "2048")
	t.Setenv("EMAP_LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/from/env" || cfg.MaxUploadBytes != 2048 || cfg.Log.Format != "json" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_AllowOrigins(t *testing.T) {
	t.Setenv("EMAP_ALLOW_ORIGINS", "")
	path := writeConfig(t, `allow_origins = ["https://editor.example", "http://10.0.0.5:8080"]`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.AllowOrigins) != 2 || cfg.AllowOrigins[0] != "https://editor.example" {
		t.Errorf("file origins = %q", cfg.AllowOrigins)
	}

	t.Setenv("EMAP_ALLOW_ORIGINS", " https://a.example, ,https://b.example ")
	cfg, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(cfg.AllowOrigins, "|") != "https://a.example|https://b.example" {
		t.Errorf("env origins = %q", cfg.AllowOrigins)
	}
}

func TestLoad_ConfigFromEnv(t *testing.T) {
	t.Setenv("EMAP_CONFIG", writeConfig(t, `http_addr = ":9000"`))
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, `data_dir = [`)); err == nil {
		t.Error("expected error for malformed file")
	}

	t.Setenv("EMAP_CONFIG", "")
	t.Setenv("EMAP_MAX_UPLOAD_BYTES", "lots")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "EMAP_MAX_UPLOAD_BYTES") {
		t.Errorf("bad upload limit: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.DataDir = ""
	cfg.MaxUploadBytes = 0
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"data_dir", "max_upload_bytes", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
