package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gameshelf/gameshelf/internal/logger"
	"github.com/gameshelf/gameshelf/pkg/api"
	"github.com/gameshelf/gameshelf/pkg/config"
	"github.com/gameshelf/gameshelf/pkg/format"
	"github.com/gameshelf/gameshelf/pkg/gameinfo"
	"github.com/gameshelf/gameshelf/pkg/library"
	"github.com/gameshelf/gameshelf/pkg/metrics"
	gsprometheus "github.com/gameshelf/gameshelf/pkg/metrics/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gameshelf server",
	Long: `Start the gameshelf server with the specified configuration.

The server scans the configured library roots for game images, loads their
metadata and artwork in the background, and serves the results over the
REST API until interrupted.

Examples:
  # Start with default config location
  gameshelf serve

  # Start with custom config file
  gameshelf serve --config /etc/gameshelf/config.yaml

  # Start with environment variable overrides
  GAMESHELF_LOGGING_LEVEL=DEBUG gameshelf serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	// Initialize metrics FIRST so the cache picks up an enabled collector
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		metricsServer = startMetricsServer(cfg.Metrics.Port)
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	cache := gameinfo.New(gameinfo.Options{
		Workers: cfg.Cache.Workers,
		Opener:  format.NewOpener(),
		Codec:   format.NewCodec(),
		Metrics: gsprometheus.NewGameInfoMetrics(),
	})
	cache.Init()
	defer cache.Shutdown()
	logger.Info("Game info cache started", "workers", cfg.Cache.Workers)

	lib := library.New(cfg.Library.Roots, cache)
	if err := lib.Scan(ctx); err != nil {
		return fmt.Errorf("library scan failed: %w", err)
	}
	logger.Info("Library scan complete", "games", lib.Len(), "roots", len(cfg.Library.Roots))

	if cfg.Library.Watch {
		watcher, err := library.NewWatcher(lib)
		if err != nil {
			return fmt.Errorf("failed to create library watcher: %w", err)
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("failed to start library watcher: %w", err)
		}
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Error("Library watcher close error", "error", err)
			}
		}()
	}

	apiServer := api.NewServer(cfg.API, cache, lib)
	logger.Info("API server enabled", "addr", apiServer.Addr())

	// Start server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- apiServer.Start(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		stopMetricsServer(shutdownCtx, metricsServer)
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		stopMetricsServer(context.Background(), metricsServer)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// startMetricsServer serves the Prometheus exposition endpoint on its own
// port, separate from the API.
func startMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return srv
}

func stopMetricsServer(ctx context.Context, srv *http.Server) {
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown error", "error", err)
	}
}
