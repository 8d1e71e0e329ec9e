// Package metrics exposes benchmark and driver metrics over Prometheus.
//
// Nothing is collected until InitRegistry is called; the constructors in
// pkg/metrics/prometheus fall back to no-op implementations before that.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Namespace prefixes every metric dittobench registers.
const Namespace = "dittobench"

var (
	registry *prometheus.Registry
	initOnce sync.Once
)

// InitRegistry creates the process-wide registry with the Go runtime and
// process collectors attached. Later calls are no-ops.
func InitRegistry() {
	initOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: Namespace}),
		)
		registry = reg
	})
}

// GetRegistry returns the registry, or nil while metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

func IsEnabled() bool {
	return registry != nil
}
