package service

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andy-yx-chen/leveldb-win/internal/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ListenPort:       freePort(t),
		DataDir:          filepath.Join(t.TempDir(), "data"),
		EngineConfigPath: filepath.Join(t.TempDir(), "missing-leveldb.xml"),
		Workers:          2,
		ShutdownGrace:    time.Second,
		Logging:          config.LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
	}
}

func TestStartThenStopIsGraceful(t *testing.T) {
	svc := New(testConfig(t))
	require.NoError(t, svc.Start(context.Background()))
	svc.Stop()
}

func TestStartIsIdempotentAndReplacesAcceptor(t *testing.T) {
	cfg := testConfig(t)
	svc := New(cfg)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	// A second Start on the same port must succeed: it tears down the
	// previous acceptor first rather than erroring on "address in use".
	require.NoError(t, svc.Start(context.Background()))
}

func TestStopTwiceIsNoOp(t *testing.T) {
	svc := New(testConfig(t))
	require.NoError(t, svc.Start(context.Background()))
	svc.Stop()
	assert.NotPanics(t, svc.Stop)
}

func TestStartFailsOnPortInUse(t *testing.T) {
	cfg := testConfig(t)
	blocker, err := net.Listen("tcp4", fmt.Sprintf(":%d", cfg.ListenPort))
	require.NoError(t, err)
	defer blocker.Close()

	svc := New(cfg)
	err = svc.Start(context.Background())
	assert.Error(t, err)
}
