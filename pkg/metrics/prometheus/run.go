package prometheus

import (
	"time"

	"github.com/marmos91/dittobench/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// runMetrics is the Prometheus implementation of metrics.RunMetrics.
type runMetrics struct {
	phasesTotal   *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	phaseBytes    *prometheus.CounterVec
	bandwidth     *prometheus.GaugeVec
	barrierWait   prometheus.Histogram
}

// NewRunMetrics creates a Prometheus-backed RunMetrics.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewRunMetrics() metrics.RunMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopRunMetrics()
	}

	reg := metrics.GetRegistry()

	return &runMetrics{
		phasesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittobench_run_phases_total",
				Help: "Total number of benchmark phases by phase and status",
			},
			[]string{"phase", "status"},
		),
		phaseDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dittobench_run_phase_duration_seconds",
				Help:    "Wall time of benchmark phases in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"phase"},
		),
		phaseBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittobench_run_bytes_total",
				Help: "Total bytes moved by completed phases",
			},
			[]string{"phase"},
		),
		bandwidth: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittobench_run_bandwidth_bytes_per_second",
				Help: "Bandwidth of the last completed phase",
			},
			[]string{"phase"},
		),
		barrierWait: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dittobench_run_barrier_wait_seconds",
				Help:    "Time spent waiting for other ranks",
				Buckets: prometheus.ExponentialBuckets(0.0001, 10, 7),
			},
		),
	}
}

func (m *runMetrics) RecordPhase(phase string, bytes int64, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.phasesTotal.WithLabelValues(phase, status).Inc()
	m.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())

	if err != nil {
		return
	}
	m.phaseBytes.WithLabelValues(phase).Add(float64(bytes))
	if duration > 0 {
		m.bandwidth.WithLabelValues(phase).Set(float64(bytes) / duration.Seconds())
	}
}

func (m *runMetrics) RecordBarrierWait(duration time.Duration) {
	m.barrierWait.Observe(duration.Seconds())
}
