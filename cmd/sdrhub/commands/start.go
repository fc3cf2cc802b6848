package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/marmos91/sdrhub/internal/logger"
	"github.com/marmos91/sdrhub/pkg/api"
	"github.com/marmos91/sdrhub/pkg/config"
	"github.com/marmos91/sdrhub/pkg/metrics"
	metricsprom "github.com/marmos91/sdrhub/pkg/metrics/prometheus"
	"github.com/marmos91/sdrhub/pkg/registry"
	"github.com/marmos91/sdrhub/pkg/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sdrhub server",
	Long: `Start the sdrhub server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/sdrhub/config.yaml. Without a config
file the built-in defaults apply.

Examples:
  # Start with default config location
  sdrhub start

  # Start with custom config file
  sdrhub start --config /etc/sdrhub/config.yaml

  # Start with environment variable overrides
  SDRHUB_LOGGING_LEVEL=DEBUG sdrhub start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("sdrhub starting", "version", Version)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() { _ = st.Close() }()
	logger.Info("Store initialized", "type", cfg.Database.Type)

	reg := registry.New(0)

	var hubMetrics metrics.HubMetrics
	var promRegistry *prometheus.Registry
	if cfg.Server.Metrics.Enabled {
		promRegistry = prometheus.NewRegistry()
		promRegistry.MustRegister(collectors.NewGoCollector())
		promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		hubMetrics = metricsprom.NewHubMetrics(promRegistry)
		logger.Info("Metrics enabled", "endpoint", "/metrics")
	} else {
		logger.Info("Metrics collection disabled")
	}

	router := api.NewRouter(api.Deps{
		Registry:     reg,
		Store:        st,
		Metrics:      hubMetrics,
		NodeDefaults: cfg.NodeDefaults,
		PromRegistry: promRegistry,
	})
	server := api.NewServer(cfg.Server.BindAddr, cfg.Server.ShutdownTimeout, router)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Hub is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// getConfigSource returns a description of where the config was loaded
// from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
