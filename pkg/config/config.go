// Package config provides configuration loading and validation for the
// rollup server and CLI.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidPort       = errors.New("invalid server port")
	ErrInvalidRangeWidth = errors.New("window range width must be positive")
	ErrInvalidAggregator = errors.New("unknown aggregator")
	ErrInvalidBatchSize  = errors.New("tick max batch size must be positive")
)

// Default configuration values.
const (
	defaultPort           = 8080
	defaultHost           = "0.0.0.0"
	defaultRangeBefore    = 1000
	defaultRangeAfter     = 0
	defaultAggregator     = "sum"
	defaultMaxBatchSize   = 10000
	defaultSpillThreshold = 100000
	maxPort               = 65535
)

// Config holds all configuration for the rollup server and CLI.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Window     WindowConfig     `mapstructure:"window"`
	Tick       TickConfig       `mapstructure:"tick"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
}

// ServerConfig holds the `rollup serve` HTTP server's configuration:
// where the Prometheus exporter's /metrics handler listens.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Port         int           `mapstructure:"port"`
	Enabled      bool          `mapstructure:"enabled"`
}

// WindowConfig holds a default relative window and aggregator. LoadConfig
// fills and validates it; no `rollup` command applies these values to a
// dataflow-graph document.
type WindowConfig struct {
	DefaultRangeBefore uint64 `mapstructure:"default_range_before"`
	DefaultRangeAfter  uint64 `mapstructure:"default_range_after"`
	DefaultAggregator  string `mapstructure:"default_aggregator"`
}

// TickConfig holds per-tick scheduling limits.
type TickConfig struct {
	MaxBatchSize int           `mapstructure:"max_batch_size"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// CheckpointConfig holds the lz4 spill-file settings for batches dropped
// by a trace's watermark-driven truncation.
type CheckpointConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Directory      string `mapstructure:"directory"`
	SpillThreshold int    `mapstructure:"spill_threshold"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/rollup")
	}

	viperCfg.SetEnvPrefix("ROLLUP")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Server defaults.
	viperCfg.SetDefault("server.enabled", false)
	viperCfg.SetDefault("server.port", defaultPort)
	viperCfg.SetDefault("server.host", defaultHost)
	viperCfg.SetDefault("server.read_timeout", "30s")
	viperCfg.SetDefault("server.write_timeout", "30s")
	viperCfg.SetDefault("server.idle_timeout", "60s")

	// Window defaults.
	viperCfg.SetDefault("window.default_range_before", defaultRangeBefore)
	viperCfg.SetDefault("window.default_range_after", defaultRangeAfter)
	viperCfg.SetDefault("window.default_aggregator", defaultAggregator)

	// Tick defaults.
	viperCfg.SetDefault("tick.max_batch_size", defaultMaxBatchSize)
	viperCfg.SetDefault("tick.timeout", "30s")

	// Logging defaults.
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")
	viperCfg.SetDefault("logging.output", "stdout")

	// Checkpoint defaults.
	viperCfg.SetDefault("checkpoint.enabled", false)
	viperCfg.SetDefault("checkpoint.directory", "/tmp/rollup-checkpoint")
	viperCfg.SetDefault("checkpoint.spill_threshold", defaultSpillThreshold)
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.Port)
	}

	if config.Window.DefaultRangeBefore == 0 && config.Window.DefaultRangeAfter == 0 {
		return fmt.Errorf("%w: before=%d after=%d", ErrInvalidRangeWidth, config.Window.DefaultRangeBefore, config.Window.DefaultRangeAfter)
	}

	switch config.Window.DefaultAggregator {
	case "sum", "count":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAggregator, config.Window.DefaultAggregator)
	}

	if config.Tick.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, config.Tick.MaxBatchSize)
	}

	return nil
}
