package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/sdrhub/pkg/protocol"
	"github.com/marmos91/sdrhub/pkg/store"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:3000", cfg.Server.BindAddr)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, store.DatabaseTypeSQLite, cfg.Database.Type)
	assert.NotEmpty(t, cfg.Database.SQLite.Path)
	assert.Equal(t, []protocol.StreamKind{protocol.StreamKindFFT}, cfg.NodeDefaults.StreamKinds)
	assert.Equal(t, uint64(1_000_000), cfg.NodeDefaults.Freq)
	assert.Equal(t, uint64(4_000_000), cfg.NodeDefaults.SampleRate)

	require.NoError(t, Validate(cfg))
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoadPartialFileAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  bind_addr: "0.0.0.0:8080"
logging:
  level: DEBUG
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.BindAddr)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	// Unspecified fields fall back to defaults.
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, DefaultNodeConfig(), cfg.NodeDefaults)
}

func TestLoadRejectsInvalidNodeDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
node_defaults:
  stream_kinds: [fft]
  freq: 500
  amp: 0
  lna: 0
  vga: 0
  sample_rate: 4000000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node_defaults")
}

func TestSaveAndReloadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Server.BindAddr = "0.0.0.0:9000"
	cfg.NodeDefaults.Freq = 2_480_000_000
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", loaded.Server.BindAddr)
	assert.Equal(t, uint64(2_480_000_000), loaded.NodeDefaults.Freq)
}

func TestValidateRejectsBadLogging(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"
	require.Error(t, Validate(cfg))
}
