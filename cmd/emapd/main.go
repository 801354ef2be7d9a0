package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/celerix-dev/emap-store/internal/api"
	"github.com/celerix-dev/emap-store/internal/config"
	"github.com/celerix-dev/emap-store/internal/engine"
	"github.com/celerix-dev/emap-store/internal/logging"
	"github.com/celerix-dev/emap-store/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:          "emapd",
		Short:        "Emap workspace daemon",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			slog.SetDefault(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a TOML config file (default $EMAP_CONFIG)")
	return cmd
}

// run serves until ctx is cancelled or a listener fails, then shuts down
// the listeners before closing the store.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("starting emap daemon", "data_dir", cfg.DataDir)

	m, err := engine.Open(ctx, engine.Options{
		DataDir:  cfg.DataDir,
		AssetDir: cfg.AssetDir,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Error("closing store", "error", err)
		}
	}()

	if cfg.LegacyDB != "" {
		legacyAssets := cfg.LegacyAssetDir
		if legacyAssets == "" {
			legacyAssets = filepath.Join(filepath.Dir(cfg.LegacyDB), "assets")
		}
		if _, _, err := m.MigrateLegacy(ctx, cfg.LegacyDB, legacyAssets, "Imported workspace"); err != nil {
			log.Error("legacy import failed", "path", cfg.LegacyDB, "error", err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	h := &api.Handler{Service: m, Log: log, MaxUploadBytes: cfg.MaxUploadBytes, AllowOrigins: cfg.AllowOrigins}
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("HTTP API listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var control *server.Router
	if cfg.ControlAddr != "" {
		control = server.NewRouter(m, log)
		go func() {
			if err := control.Listen(cfg.ControlAddr); err != nil {
				errCh <- fmt.Errorf("control port: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case runErr = <-errCh:
		log.Error("listener failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown", "error", err)
	}
	if control != nil {
		control.Stop()
	}
	log.Info("store closed, exiting")
	return runErr
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
