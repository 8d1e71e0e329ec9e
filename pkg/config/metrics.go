package config

import (
	"github.com/marmos91/dittobench/pkg/driver"
	"github.com/marmos91/dittobench/pkg/metrics"
	promMetrics "github.com/marmos91/dittobench/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// DriverMetrics is shared by every driver of this process (never nil)
	DriverMetrics driver.Metrics

	// RunMetrics is shared by every runner of this process (never nil)
	RunMetrics metrics.RunMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server on Port plus the process rank
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			DriverMetrics: driver.NoopMetrics{},
			RunMetrics:    metrics.NewNoopRunMetrics(),
		}
	}

	metrics.InitRegistry()

	offset := 0
	if cfg.Group.Type == "tcp" {
		offset = cfg.Group.Rank
	}

	server := metrics.NewServer(metrics.ServerConfig{
		Host:   cfg.Metrics.Host,
		Port:   cfg.Metrics.Port,
		Offset: offset,
	})

	return &MetricsResult{
		Server:        server,
		DriverMetrics: promMetrics.NewDriverMetrics(),
		RunMetrics:    promMetrics.NewRunMetrics(),
	}
}
