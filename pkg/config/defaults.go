package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittobench/pkg/remote"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend option defaults are applied when the options are decoded
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyGroupDefaults(&cfg.Group)
	applyBackendDefaults(&cfg.Backend)
	applyRunDefaults(&cfg.Run)
	applyResultsDefaults(&cfg.Results)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyGroupDefaults(cfg *GroupConfig) {
	if cfg.Type == "" {
		cfg.Type = "local"
	}
	if cfg.Size == 0 {
		cfg.Size = 1
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 60 * time.Second
	}
	if cfg.DialRate == 0 {
		cfg.DialRate = 5
	}
}

// applyBackendDefaults selects HDFS and fills the option map so generated
// config files list every option.
func applyBackendDefaults(cfg *BackendConfig) {
	if cfg.Type == "" {
		cfg.Type = "hdfs"
	}

	if cfg.HDFS == nil {
		cfg.HDFS = make(map[string]any)
	}
	if _, ok := cfg.HDFS["name_node"]; !ok {
		cfg.HDFS["name_node"] = remote.DefaultNameNode
	}
	for _, key := range []string{"name_node_port", "replicas", "block_size"} {
		if _, ok := cfg.HDFS[key]; !ok {
			cfg.HDFS[key] = 0
		}
	}
	if _, ok := cfg.HDFS["odirect"]; !ok {
		cfg.HDFS["odirect"] = false
	}
}

func applyRunDefaults(cfg *RunConfig) {
	if cfg.TestFile == "" {
		cfg.TestFile = "/tmp/dittobench/testFile"
	}
	if cfg.TransferSize == 0 {
		cfg.TransferSize = 256 << 10 // 256 KiB
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = 1 << 20 // 1 MiB
	}
	if cfg.Segments == 0 {
		cfg.Segments = 1
	}
	// Fsync, Check and KeepFile default to false
}

func applyResultsDefaults(cfg *ResultsConfig) {
	if cfg.Path == "" {
		cfg.Path = "/tmp/dittobench-results"
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Results: ResultsConfig{Enabled: true},
	}
	ApplyDefaults(cfg)
	return cfg
}
