package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete dittobench configuration.
//
// This structure captures all configurable aspects of a benchmark run:
//   - Logging configuration
//   - Metrics endpoint
//   - Process group (in-process ranks or ranks coordinated over TCP)
//   - Backend selection and backend-specific options
//   - Transfer geometry of the run
//   - Result ledger
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTOBENCH_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Backend Configuration Pattern:
// Each backend defines its own options type. The Backend section carries
// one untyped map per backend and only the map matching the selected type
// is decoded, by the factory that builds the driver.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Group selects how ranks find each other
	Group GroupConfig `mapstructure:"group" yaml:"group"`

	// Backend specifies the backend type and its options
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`

	// Run describes the transfers of one pass
	Run RunConfig `mapstructure:"run" yaml:"run"`

	// Results configures the result ledger
	Results ResultsConfig `mapstructure:"results" yaml:"results"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Host to bind. Empty binds every interface.
	Host string `mapstructure:"host" yaml:"host"`

	// Port of rank 0. Rank r serves on Port+r.
	Port int `mapstructure:"port" validate:"gte=0,lte=65535" yaml:"port"`
}

// GroupConfig selects the process group implementation.
type GroupConfig struct {
	// Type is "local" (all ranks are goroutines of this process) or "tcp"
	// (one process per rank, coordinated by rank 0).
	Type string `mapstructure:"type" validate:"required,oneof=local tcp" yaml:"type"`

	// Size is the number of ranks
	Size int `mapstructure:"size" validate:"required,gt=0" yaml:"size"`

	// Rank of this process. Only used when Type = "tcp"
	Rank int `mapstructure:"rank" validate:"gte=0" yaml:"rank"`

	// Coordinator is rank 0's host:port. Only used when Type = "tcp"
	Coordinator string `mapstructure:"coordinator" yaml:"coordinator"`

	// DialTimeout bounds how long ranks wait for each other at startup
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"gte=0" yaml:"dial_timeout"`

	// DialRate is the number of connection attempts per second
	DialRate uint `mapstructure:"dial_rate" yaml:"dial_rate"`
}

// BackendConfig specifies the backend driver.
type BackendConfig struct {
	// Type specifies which driver to use
	// Valid values: hdfs
	Type string `mapstructure:"type" validate:"required,oneof=hdfs" yaml:"type"`

	// HDFS contains HDFS driver options (see pkg/driver/hdfs.Options)
	// Only used when Type = "hdfs"
	HDFS map[string]any `mapstructure:"hdfs" yaml:"hdfs"`
}

// RunConfig describes one benchmark pass.
type RunConfig struct {
	// ID is the run id results are stored under. Separate processes of one
	// run must share it. Empty generates one.
	ID string `mapstructure:"id" validate:"omitempty,uuid" yaml:"id"`

	// TestFile is the path of the shared file, or the prefix of the
	// per-rank files
	TestFile string `mapstructure:"test_file" validate:"required" yaml:"test_file"`

	// FilePerProc gives every rank its own file
	FilePerProc bool `mapstructure:"file_per_proc" yaml:"file_per_proc"`

	// TransferSize is the size of one transfer in bytes
	TransferSize int64 `mapstructure:"transfer_size" validate:"gt=0" yaml:"transfer_size"`

	// BlockSize is the contiguous bytes a rank moves per segment
	BlockSize int64 `mapstructure:"block_size" validate:"gt=0" yaml:"block_size"`

	// Segments is the number of blocks per rank
	Segments int `mapstructure:"segments" validate:"gt=0" yaml:"segments"`

	// Fsync flushes the file before closing it in the write phase
	Fsync bool `mapstructure:"fsync" yaml:"fsync"`

	// FsyncPerWrite flushes after every write transfer
	FsyncPerWrite bool `mapstructure:"fsync_per_write" yaml:"fsync_per_write"`

	// SingleXferAttempt aborts the group on the first short transfer
	SingleXferAttempt bool `mapstructure:"single_xfer_attempt" yaml:"single_xfer_attempt"`

	// Check verifies data in the read phase (requires FilePerProc)
	Check bool `mapstructure:"check" yaml:"check"`

	// KeepFile leaves the test file in place after the pass
	KeepFile bool `mapstructure:"keep_file" yaml:"keep_file"`

	// MaxBytesPerSecond caps each rank's throughput. 0 is unlimited
	MaxBytesPerSecond int64 `mapstructure:"max_bytes_per_second" validate:"gte=0" yaml:"max_bytes_per_second"`
}

// ResultsConfig configures the BadgerDB result ledger.
type ResultsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the database directory
	Path string `mapstructure:"path" yaml:"path"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTOBENCH_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the DITTOBENCH_ prefix and underscores
	// Example: DITTOBENCH_RUN_TRANSFER_SIZE=1048576
	v.SetEnvPrefix("DITTOBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees env values for keys viper knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/dittobench/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

var envKeys = []string{
	"logging.level", "logging.format", "logging.output",
	"metrics.enabled", "metrics.host", "metrics.port",
	"group.type", "group.size", "group.rank", "group.coordinator", "group.dial_timeout", "group.dial_rate",
	"backend.type",
	"run.id", "run.test_file", "run.file_per_proc", "run.transfer_size", "run.block_size", "run.segments",
	"run.fsync", "run.fsync_per_write", "run.single_xfer_attempt", "run.check", "run.keep_file",
	"run.max_bytes_per_second",
	"results.enabled", "results.path",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittobench")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittobench")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
