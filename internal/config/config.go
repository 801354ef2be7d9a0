// Package config loads daemon settings from an optional TOML file and
// EMAP_* environment variables. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DataDir        string `toml:"data_dir"`         // EMAP_DATA_DIR (default "./data")
	AssetDir       string `toml:"asset_dir"`        // EMAP_ASSET_DIR (default <data_dir>/assets)
	HTTPAddr       string `toml:"http_addr"`        // EMAP_HTTP_ADDR (default "127.0.0.1:7002")
	ControlAddr    string `toml:"control_addr"`     // EMAP_CONTROL_ADDR (empty = control port disabled)
	MaxUploadBytes int64  `toml:"max_upload_bytes"` // EMAP_MAX_UPLOAD_BYTES (default 1 GiB)

	// Browser origins allowed to call the HTTP API. Empty allows loopback
	// origins only; "*" allows any.
	AllowOrigins []string `toml:"allow_origins"` // EMAP_ALLOW_ORIGINS (comma separated)

	// Single-workspace database imported on first start.
	LegacyDB       string `toml:"legacy_db"`        // EMAP_LEGACY_DB
	LegacyAssetDir string `toml:"legacy_asset_dir"` // EMAP_LEGACY_ASSET_DIR (default <dir of legacy_db>/assets)

	Log LogConfig `toml:"log"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // EMAP_LOG_LEVEL (debug, info, warn, error)
	Format string `toml:"format"` // EMAP_LOG_FORMAT (text, json)
}

func Default() *Config {
	return &Config{
		DataDir:        "./data",
		HTTPAddr:       "127.0.0.1:7002",
		MaxUploadBytes: 1 << 30,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path (or $EMAP_CONFIG when path is empty), then applies
// environment overrides. With no file configured only defaults and the
// environment are used.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("EMAP_CONFIG")
	}

	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setFromEnv(&c.DataDir, "EMAP_DATA_DIR")
	setFromEnv(&c.AssetDir, "EMAP_ASSET_DIR")
	setFromEnv(&c.HTTPAddr, "EMAP_HTTP_ADDR")
	setFromEnv(&c.ControlAddr, "EMAP_CONTROL_ADDR")
	setFromEnv(&c.LegacyDB, "EMAP_LEGACY_DB")
	setFromEnv(&c.LegacyAssetDir, "EMAP_LEGACY_ASSET_DIR")
	setFromEnv(&c.Log.Level, "EMAP_LOG_LEVEL")
	setFromEnv(&c.Log.Format, "EMAP_LOG_FORMAT")

	if v := os.Getenv("EMAP_ALLOW_ORIGINS"); v != "" {
		c.AllowOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowOrigins = append(c.AllowOrigins, o)
			}
		}
	}
	if v := os.Getenv("EMAP_MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("EMAP_MAX_UPLOAD_BYTES: %w", err)
		}
		c.MaxUploadBytes = n
	}
	return nil
}

// Validate rejects settings the daemon cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
