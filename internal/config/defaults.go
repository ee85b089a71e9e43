package config

import (
	"runtime"
	"time"

	"github.com/andy-yx-chen/leveldb-win/internal/server"
)

func defaultConfig() *Config {
	return &Config{
		ListenPort:       server.DefaultPort,
		DataDir:          "./data",
		EngineConfigPath: "./leveldb.xml",
		Workers:          runtime.NumCPU(),
		ShutdownGrace:    5 * time.Second,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Metrics: MetricsConfig{Enabled: false},
	}
}

// applyZeroValueDefaults fills in defaults for any field Viper left at its
// Go zero value after unmarshaling a partial config file — the same
// "explicit values are preserved, zero values get defaults" strategy the
// teacher's ApplyDefaults uses.
func applyZeroValueDefaults(cfg *Config) {
	if cfg.ListenPort == 0 {
		cfg.ListenPort = server.DefaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.EngineConfigPath == "" {
		cfg.EngineConfigPath = "./leveldb.xml"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}
