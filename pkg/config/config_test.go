package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNameServerConfigDefaultsWhenNoFile(t *testing.T) {
	cfg, err := LoadNameServerConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, 128, cfg.ResolutionCacheSize)
	assert.Equal(t, 15*time.Second, cfg.HeartbeatTimeout)
}

func TestLoadNameServerConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
client_listen_addr: "0.0.0.0:7000"
ss_listen_addr: "0.0.0.0:7001"
data_dir: "` + filepath.ToSlash(dir) + `"
heartbeat_interval: "2s"
heartbeat_timeout: "6s"
resolution_cache_size: 64
access_table_capacity: 512
file_map_capacity: 512
table_max_load_factor: 0.6
shutdown_timeout: "5s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadNameServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7000", cfg.ClientListenAddr)
	assert.Equal(t, 2*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 64, cfg.ResolutionCacheSize)
}

func TestLoadStorageServerConfigDefaults(t *testing.T) {
	cfg, err := LoadStorageServerConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ReplicationMaxRetries)
	assert.Equal(t, 64, cfg.SentenceLockMapInitialSize)
}

func TestLoadClientConfigDefaults(t *testing.T) {
	cfg, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := defaultNameServerConfig()
	cfg.Logging.Level = "VERBOSE"
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsMissingDataDir(t *testing.T) {
	cfg := defaultStorageServerConfig()
	cfg.DataDir = ""
	assert.Error(t, Validate(cfg))
}
