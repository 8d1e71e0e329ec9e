package results

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is the outcome of one phase of a run, aggregated over every rank.
type Record struct {
	ID    uuid.UUID `json:"id"`
	RunID uuid.UUID `json:"run_id"`

	Backend string `json:"backend"`
	Phase   string `json:"phase"`
	Ranks   int    `json:"ranks"`

	TestFile     string `json:"test_file"`
	FilePerProc  bool   `json:"file_per_proc"`
	TransferSize int64  `json:"transfer_size"`
	BlockSize    int64  `json:"block_size"`
	Segments     int    `json:"segments"`

	// Bytes is the total moved by all ranks.
	Bytes int64 `json:"bytes"`

	// Seconds is the wall time between the barriers bracketing the phase.
	Seconds float64 `json:"seconds"`

	Started time.Time `json:"started"`

	// Error is set when the phase failed.
	Error string `json:"error,omitempty"`
}

// MiBPerSecond returns the aggregate bandwidth of the phase.
func (r *Record) MiBPerSecond() float64 {
	if r.Seconds <= 0 {
		return 0
	}
	return float64(r.Bytes) / (1 << 20) / r.Seconds
}

func (r *Record) String() string {
	return fmt.Sprintf("%s %s: %d bytes in %.3fs (%.2f MiB/s, %d ranks)",
		r.RunID, r.Phase, r.Bytes, r.Seconds, r.MiBPerSecond(), r.Ranks)
}

// Records are stored as JSON so the ledger stays readable with badger's
// own tooling and fields can be added without a migration.

func encodeRecord(r *Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &r, nil
}
