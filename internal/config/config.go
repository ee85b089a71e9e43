// Package config loads the service's own startup configuration — listen
// port, data directory, worker pool size, logging — as distinct from the
// per-engine leveldb.xml tuning file handled by internal/store. Precedence
// (highest to lowest): environment variables (KVSERVER_*), the config
// file, then defaults. Environment variables only override keys that the
// config file sets; without a config file they are not read.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// LoggingConfig controls the service's structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig controls whether Prometheus metrics are collected at all.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Config is the service's own configuration, populated once at startup and
// passed to service.Service.Start.
type Config struct {
	// ListenPort is the TCP v4 port the acceptor binds (§6: default 4406).
	ListenPort int `mapstructure:"listen_port"`

	// DataDir is the directory whose immediate subdirectories the registry
	// bootstraps as databases (§4.2).
	DataDir string `mapstructure:"data_dir"`

	// EngineConfigPath is the leveldb.xml engine-tuning file (§6), loaded
	// separately by store.LoadEngineOptions.
	EngineConfigPath string `mapstructure:"engine_config"`

	// Workers bounds concurrent blocking engine calls across all sessions
	// (§9.5: "make configurable"). Zero means runtime.NumCPU() at Load time.
	Workers int `mapstructure:"workers"`

	// ShutdownGrace bounds how long Stop waits for in-flight connections to
	// finish their current frame before returning.
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`

	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

const envPrefix = "KVSERVER"

// Load reads configuration from defaults, configPath (if non-empty and
// present), and env vars, in that order of increasing precedence; an env var
// takes effect only for a key the config file sets. A missing config file is
// not an error: defaults apply unchanged, matching the
// non-fatal-missing-config posture this service's config loading is
// modeled on.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if !found {
		return cfg, nil
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyZeroValueDefaults(cfg)

	return cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}
