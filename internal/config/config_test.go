package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 4406, cfg.ListenPort)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "./leveldb.xml", cfg.EngineConfigPath)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.ShutdownGrace)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "listen_port: 5555\nlogging:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5555, cfg.ListenPort)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "./data", cfg.DataDir, "unset field must still get its default")
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
}

func TestLoadParsesDurationStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "shutdown_grace: 10s\nworkers: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.ShutdownGrace)
	assert.Equal(t, 2, cfg.Workers)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_port: 5555\n"), 0o644))

	t.Setenv("KVSERVER_LISTEN_PORT", "6000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.ListenPort)
}
