package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andy-yx-chen/leveldb-win/internal/config"
	"github.com/andy-yx-chen/leveldb-win/internal/logger"
	"github.com/andy-yx-chen/leveldb-win/pkg/service"
)

var startPidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the key-value service in the foreground",
	Long: `Start binds the configured TCP port, bootstraps the database
registry from the configured data directory, and serves client connections
until interrupted (SIGINT/SIGTERM), a "stop" command, or a fatal error
occurs.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startPidFile, "pid-file", "", "Path to PID file used by \"kvserver stop\" (default: $XDG_STATE_HOME/kvserver/kvserver.pid)")
}

func runStart(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err := initLogger(cfg); err != nil {
		return err
	}

	logger.Info("configuration loaded",
		"listen_port", cfg.ListenPort,
		"data_dir", cfg.DataDir,
		"workers", cfg.Workers,
	)

	pidPath := startPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}
	if err := writePidFile(pidPath); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	defer func() { _ = os.Remove(pidPath) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := service.New(cfg)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("service is running, press Ctrl+C to stop")
	<-sigCh

	signal.Stop(sigCh)
	logger.Info("shutdown signal received")
	svc.Stop()
	return nil
}

func initLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// writePidFile records this process's PID at path so a later "kvserver
// stop" can find it, creating path's parent directory if needed.
func writePidFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, fmt.Appendf(nil, "%d", os.Getpid()), 0o644)
}
