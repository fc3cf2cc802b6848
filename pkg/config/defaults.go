package config

import (
	"time"

	"github.com/marmos91/sdrhub/pkg/protocol"
	"github.com/marmos91/sdrhub/pkg/store"
)

// GetDefaultConfig returns the configuration used when no file exists.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Server: ServerConfig{
			BindAddr:        "127.0.0.1:3000",
			ShutdownTimeout: 30 * time.Second,
			Metrics: MetricsConfig{
				Enabled: true,
			},
		},
		Database: store.Config{
			Type: store.DatabaseTypeSQLite,
		},
		NodeDefaults: DefaultNodeConfig(),
	}
	cfg.Database.ApplyDefaults()
	return cfg
}

// DefaultNodeConfig is the tuning handed to a node that connects for the
// first time: an FFT sweep at the bottom of the HackRF range.
func DefaultNodeConfig() protocol.NodeConfig {
	return protocol.NodeConfig{
		StreamKinds: []protocol.StreamKind{protocol.StreamKindFFT},
		Freq:        1_000_000,
		Amp:         1,
		Lna:         0,
		Vga:         0,
		SampleRate:  4_000_000,
	}
}

// ApplyDefaults fills in zero-valued fields with defaults. Partial config
// files only need to specify the settings they change.
func ApplyDefaults(cfg *Config) {
	def := GetDefaultConfig()

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = def.Logging.Output
	}

	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = def.Server.BindAddr
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}

	cfg.Database.ApplyDefaults()

	if len(cfg.NodeDefaults.StreamKinds) == 0 && cfg.NodeDefaults.Freq == 0 {
		cfg.NodeDefaults = def.NodeDefaults
	}
}
