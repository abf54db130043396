package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/storagekit/storagekit/internal/api"
	"github.com/storagekit/storagekit/internal/config"
	"github.com/storagekit/storagekit/internal/db"
	"github.com/storagekit/storagekit/internal/logging"
	"github.com/storagekit/storagekit/internal/metrics"
	"github.com/storagekit/storagekit/internal/s3"
	"github.com/storagekit/storagekit/internal/storage"
	"github.com/storagekit/storagekit/internal/tracing"
	"github.com/storagekit/storagekit/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownGrace = 15 * time.Second

var (
	configPath string
	port       string
)

var rootCmd = &cobra.Command{
	Use:   version.Name,
	Short: "StorageKit - REST gateway for S3-compatible object storage",
	Long: `StorageKit exposes bucket and object operations of an S3-compatible
backend (MinIO, AWS S3, ...) as a small JSON API guarded by an API key.

Configuration is read from environment variables and, optionally, from a
YAML/TOML/JSON file given with --config or STORAGEKIT_CONFIG.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", version.Name, version.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml, toml or json)")
	rootCmd.Flags().StringVarP(&port, "port", "p", "", "HTTP port (overrides PORT)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port != "" {
		cfg.HttpPort = port
	}
	logger := logging.New(cfg.Env)
	defer logging.Sync(logger)
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		return err
	}

	store, err := s3.New(cfg.S3)
	if err != nil {
		logger.Error("failed to init s3 client", "driver", cfg.S3.Driver, "error", err)
		return err
	}
	audit, err := db.Open(cfg, logger)
	if err != nil {
		logger.Error("failed to init db", "error", err)
		return err
	}

	m := metrics.New()
	svc := storage.New(store, storage.Options{
		PublicURL: cfg.PublicURL,
		Region:    cfg.S3.Region,
		FileURLs:  cfg.FileURLs,
		URLExpiry: time.Duration(cfg.URLExpirySec) * time.Second,
		Observer:  m,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.HttpPort,
		Handler:           api.Router(cfg, logger, api.Deps{Storage: svc, Audit: audit, Metrics: m}),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       0, // long uploads and downloads
		WriteTimeout:      0,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "driver", cfg.S3.Driver, "endpoint", cfg.S3.Endpoint, "audit", audit != nil, "version", version.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if err := shutdownTracing(sctx); err != nil {
		logger.Error("tracing shutdown failed", "error", err)
	}
	if audit != nil {
		if err := audit.Close(); err != nil {
			logger.Error("db close failed", "error", err)
		}
	}
	logger.Info("server stopped")
	return nil
}
