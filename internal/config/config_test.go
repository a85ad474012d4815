package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "adb", cfg.Device.ADBPath)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Server.MaxParallel)
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
device:
  portal_url: http://127.0.0.1:9008
  adb_path: /opt/sdk/adb
server:
  address: ":9090"
  max_parallel: 16
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9008", cfg.Device.PortalURL)
	assert.Equal(t, "/opt/sdk/adb", cfg.Device.ADBPath)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 16, cfg.Server.MaxParallel)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// 文件未覆盖的字段保持默认
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device:\n  portal_url: http://from-file\n"), 0o644))

	t.Setenv("DF_PORTAL_URL", "http://from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env", cfg.Device.PortalURL)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Address = "no-port"
	cfg.Server.ReadTimeout = 0
	cfg.Logging.Level = "loud"
	cfg.License.URL = "http://license"

	err := cfg.Validate()
	require.Error(t, err)

	errs, ok := err.(ValidationErrors)
	require.True(t, ok)
	assert.Len(t, errs, 4)
	assert.Contains(t, err.Error(), "server.address")
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "license.key")
}
