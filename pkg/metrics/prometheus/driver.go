package prometheus

import (
	"time"

	"github.com/marmos91/dittobench/pkg/driver"
	"github.com/marmos91/dittobench/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// driverMetrics is the Prometheus implementation of driver.Metrics.
//
// It collects:
//   - Operation counts (open, xfer_write, xfer_read, close, fsync, ...)
//   - Operation latency
//   - Bytes moved by completed transfers
//   - Short transfers that were retried or aborted
type driverMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
	partialTransfers  *prometheus.CounterVec
}

// NewDriverMetrics creates a Prometheus-backed driver.Metrics.
//
// Returns driver.NoopMetrics if metrics are not enabled (InitRegistry not
// called).
func NewDriverMetrics() driver.Metrics {
	if !metrics.IsEnabled() {
		return driver.NoopMetrics{}
	}

	reg := metrics.GetRegistry()

	return &driverMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittobench_driver_operations_total",
				Help: "Total number of driver operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittobench_driver_operation_duration_seconds",
				Help: "Duration of driver operations in seconds",
				Buckets: []float64{
					0.0001, // 100us
					0.001,  // 1ms
					0.01,   // 10ms
					0.1,    // 100ms
					1.0,    // 1s
					10.0,   // 10s
					60.0,   // 1m
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittobench_driver_bytes_transferred_total",
				Help: "Total bytes moved by completed transfers",
			},
			[]string{"access"},
		),
		partialTransfers: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittobench_driver_partial_transfers_total",
				Help: "Total number of short transfers reported by the remote filesystem",
			},
			[]string{"access"},
		),
	}
}

func (m *driverMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *driverMetrics) RecordBytes(access driver.Access, bytes int64) {
	m.bytesTransferred.WithLabelValues(access.String()).Add(float64(bytes))
}

func (m *driverMetrics) RecordPartial(access driver.Access) {
	m.partialTransfers.WithLabelValues(access.String()).Inc()
}
