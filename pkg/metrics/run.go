package metrics

import "time"

// RunMetrics provides observability for benchmark phases.
//
// This interface is optional - the runner falls back to a no-op
// implementation when none is given.
type RunMetrics interface {
	// RecordPhase records a completed write or read phase of one rank.
	//
	// Parameters:
	//   - phase: "write" or "read"
	//   - bytes: Bytes the rank moved in the phase
	//   - duration: Wall time of the phase, open to close
	//   - err: Error if the phase failed, nil if successful
	RecordPhase(phase string, bytes int64, duration time.Duration, err error)

	// RecordBarrierWait records time spent waiting for other ranks.
	RecordBarrierWait(duration time.Duration)
}

type noopRunMetrics struct{}

// NewNoopRunMetrics returns a RunMetrics that records nothing.
func NewNoopRunMetrics() RunMetrics {
	return noopRunMetrics{}
}

func (noopRunMetrics) RecordPhase(string, int64, time.Duration, error) {}
func (noopRunMetrics) RecordBarrierWait(time.Duration)                 {}
