package driver

import "time"

// Metrics provides observability for driver operations.
//
// This is optional. Backends fall back to NoopMetrics when none is given.
type Metrics interface {
	// ObserveOperation records a driver call with its duration and outcome
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records bytes moved by a completed transfer
	RecordBytes(access Access, bytes int64)

	// RecordPartial records a short transfer that will be retried or aborted
	RecordPartial(access Access)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) ObserveOperation(operation string, duration time.Duration, err error) {}
func (NoopMetrics) RecordBytes(access Access, bytes int64)                              {}
func (NoopMetrics) RecordPartial(access Access)                                         {}
