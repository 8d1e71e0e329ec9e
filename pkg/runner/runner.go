// Package runner drives a driver.Driver through one benchmark pass.
//
// A pass is a write phase followed by a read phase. In each phase every
// rank opens its file, moves Segments*BlockSize bytes in TransferSize
// pieces, closes the file and waits at a barrier. The time between the
// barriers that bracket a phase is the phase time, so rank 0 can report
// aggregate bandwidth without exchanging timings with the other ranks.
//
// Layout:
//   - file per process: rank r uses <TestFile>.<r, 8 digits>, segment s of
//     it starts at s*BlockSize
//   - shared file: block (s, r) starts at (s*Size + r)*BlockSize
//
// Offsets are passed to Xfer as hints only. Backends without seek write
// sequentially from the position their open left them at.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittobench/internal/logger"
	"github.com/marmos91/dittobench/internal/ratelimiter"
	"github.com/marmos91/dittobench/pkg/driver"
	"github.com/marmos91/dittobench/pkg/group"
	"github.com/marmos91/dittobench/pkg/metrics"
	"github.com/marmos91/dittobench/pkg/remote/local"
	"github.com/marmos91/dittobench/pkg/results"
)

// ErrVerify is returned when data read back differs from what was written.
var ErrVerify = errors.New("data verification failed")

// Config describes one pass.
type Config struct {
	// RunID identifies the pass in the results ledger. Ranks in separate
	// processes must be given the same id. Nil generates one.
	RunID uuid.UUID

	TestFile     string
	FilePerProc  bool
	TransferSize int64
	BlockSize    int64
	Segments     int

	// Fsync flushes the file before it is closed in the write phase.
	Fsync bool

	// Check verifies the read phase against the written pattern. Shared
	// files are only verified when every rank reads at its own offset,
	// which sequential backends cannot do, so Check requires FilePerProc.
	Check bool

	// KeepFile skips deleting the test file after the pass.
	KeepFile bool

	// DirectIO allocates the transfer buffer aligned for O_DIRECT.
	DirectIO bool

	// MaxBytesPerSecond caps each rank's transfer rate. Zero is unlimited.
	MaxBytesPerSecond int64
}

// Validate checks the transfer geometry.
func (c *Config) Validate() error {
	switch {
	case c.TestFile == "":
		return errors.New("runner: test file is required")
	case c.TransferSize <= 0:
		return fmt.Errorf("runner: transfer size must be positive, got %d", c.TransferSize)
	case c.BlockSize < c.TransferSize || c.BlockSize%c.TransferSize != 0:
		return fmt.Errorf("runner: block size %d is not a multiple of transfer size %d", c.BlockSize, c.TransferSize)
	case c.Segments <= 0:
		return fmt.Errorf("runner: segments must be positive, got %d", c.Segments)
	case c.MaxBytesPerSecond < 0:
		return fmt.Errorf("runner: max bytes per second must not be negative, got %d", c.MaxBytesPerSecond)
	case c.Check && !c.FilePerProc:
		return errors.New("runner: check requires a file per process")
	}
	return nil
}

// Recorder stores phase results. *results.Store implements it.
type Recorder interface {
	Put(ctx context.Context, r *results.Record) error
}

// Runner executes passes for one rank.
type Runner struct {
	drv      driver.Driver
	group    group.Group
	cfg      Config
	limiter  *ratelimiter.RateLimiter
	metrics  metrics.RunMetrics
	recorder Recorder
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics sets the phase metrics sink.
func WithMetrics(m metrics.RunMetrics) Option {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithRecorder stores rank 0's phase results in rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// New creates a Runner for the rank g represents.
func New(drv driver.Driver, g group.Group, cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RunID == uuid.Nil {
		cfg.RunID = uuid.New()
	}

	r := &Runner{
		drv:     drv,
		group:   g,
		cfg:     cfg,
		limiter: ratelimiter.New(uint(cfg.MaxBytesPerSecond), 0),
		metrics: metrics.NewNoopRunMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RunID returns the id results are stored under.
func (r *Runner) RunID() uuid.UUID {
	return r.cfg.RunID
}

// Run executes the write phase, the read phase and the cleanup. The
// returned records are the aggregate view; they are complete on rank 0
// only, where Bytes covers every rank.
func (r *Runner) Run(ctx context.Context) ([]*results.Record, error) {
	var records []*results.Record

	for _, access := range []driver.Access{driver.Write, driver.Read} {
		rec, err := r.phase(ctx, access)
		if rec != nil {
			records = append(records, rec)
			r.store(ctx, rec)
		}
		if err != nil {
			return records, err
		}
	}

	if !r.cfg.KeepFile {
		if err := r.cleanup(ctx); err != nil {
			return records, err
		}
	}
	return records, nil
}

// phase runs one access pass and returns its record. A failed phase
// still returns a record carrying the error.
func (r *Runner) phase(ctx context.Context, access driver.Access) (*results.Record, error) {
	rank := r.group.Rank()
	path := r.path()

	if err := r.barrier(ctx); err != nil {
		return nil, err
	}

	rec := r.newRecord(access)
	start := time.Now()
	rec.Started = start.UTC()

	moved, err := r.transfer(ctx, access, path)
	r.metrics.RecordPhase(access.String(), moved, time.Since(start), err)
	if err != nil {
		rec.Error = err.Error()
		rec.Seconds = time.Since(start).Seconds()
		return rec, fmt.Errorf("%s phase on rank %d: %w", access, rank, err)
	}

	if err := r.barrier(ctx); err != nil {
		return nil, err
	}
	rec.Seconds = time.Since(start).Seconds()

	if access == driver.Write && rank == 0 {
		r.checkSize(ctx, path)
	}

	logger.Debug("[RANK %03d]: %s phase moved %d bytes in %.3fs", rank, access, moved, rec.Seconds)
	return rec, nil
}

// transfer opens path, moves the rank's share of the data and closes it.
func (r *Runner) transfer(ctx context.Context, access driver.Access, path string) (int64, error) {
	var (
		f   driver.File
		err error
	)
	if access == driver.Write {
		f, err = r.drv.Create(ctx, path, driver.FlagCreate|driver.FlagWriteOnly)
	} else {
		f, err = r.drv.Open(ctx, path, driver.FlagReadOnly)
	}
	if err != nil {
		return 0, err
	}

	moved, err := r.segments(ctx, access, f)
	if err != nil {
		if cerr := r.drv.Close(ctx, f); cerr != nil {
			logger.Warn("[RANK %03d]: close of %q after failure: %v", r.group.Rank(), path, cerr)
		}
		return moved, err
	}

	if access == driver.Write && r.cfg.Fsync {
		if err := r.drv.Fsync(ctx, f); err != nil {
			return moved, err
		}
	}
	return moved, r.drv.Close(ctx, f)
}

func (r *Runner) segments(ctx context.Context, access driver.Access, f driver.File) (int64, error) {
	var buf []byte
	if r.cfg.DirectIO {
		buf = local.AlignedBuffer(int(r.cfg.TransferSize))
	} else {
		buf = make([]byte, r.cfg.TransferSize)
	}
	var moved int64

	for seg := 0; seg < r.cfg.Segments; seg++ {
		for off := int64(0); off < r.cfg.BlockSize; off += r.cfg.TransferSize {
			offset := r.offset(seg, off)

			if access == driver.Write {
				fillPattern(buf, r.group.Rank(), offset)
			}
			if err := r.limiter.WaitN(ctx, len(buf)); err != nil {
				return moved, err
			}

			n, err := r.drv.Xfer(ctx, access, f, buf, offset)
			moved += n
			if err != nil {
				return moved, err
			}

			if access == driver.Read && r.cfg.Check {
				if bad := verifyPattern(buf, r.group.Rank(), offset); bad >= 0 {
					return moved, fmt.Errorf("%w: %s at offset %d", ErrVerify, f.Path(), offset+int64(bad))
				}
			}
		}
	}
	return moved, nil
}

// cleanup deletes the test file. On a shared file only rank 0 deletes,
// after every rank has finished reading.
func (r *Runner) cleanup(ctx context.Context) error {
	if r.cfg.FilePerProc {
		return r.drv.Delete(ctx, r.path())
	}
	if err := r.barrier(ctx); err != nil {
		return err
	}
	if r.group.Rank() != 0 {
		return nil
	}
	return r.drv.Delete(ctx, r.path())
}

func (r *Runner) checkSize(ctx context.Context, path string) {
	expected := int64(r.cfg.Segments) * r.cfg.BlockSize
	if !r.cfg.FilePerProc {
		expected *= int64(r.group.Size())
	}

	size, err := r.drv.GetFileSize(ctx, path)
	if err != nil {
		logger.Warn("[RANK %03d]: size check of %q failed: %v", r.group.Rank(), path, err)
		return
	}
	if size != expected {
		logger.Warn("[RANK %03d]: inconsistent file size of %q: expected %d, got %d", r.group.Rank(), path, expected, size)
	}
}

func (r *Runner) barrier(ctx context.Context) error {
	start := time.Now()
	err := r.group.Barrier(ctx)
	r.metrics.RecordBarrierWait(time.Since(start))
	return err
}

func (r *Runner) store(ctx context.Context, rec *results.Record) {
	if r.recorder == nil || r.group.Rank() != 0 {
		return
	}
	if err := r.recorder.Put(ctx, rec); err != nil {
		logger.Warn("results: storing %s record failed: %v", rec.Phase, err)
	}
}

func (r *Runner) newRecord(access driver.Access) *results.Record {
	size := r.group.Size()
	return &results.Record{
		RunID:        r.cfg.RunID,
		Backend:      r.drv.Name(),
		Phase:        access.String(),
		Ranks:        size,
		TestFile:     r.cfg.TestFile,
		FilePerProc:  r.cfg.FilePerProc,
		TransferSize: r.cfg.TransferSize,
		BlockSize:    r.cfg.BlockSize,
		Segments:     r.cfg.Segments,
		Bytes:        int64(size) * int64(r.cfg.Segments) * r.cfg.BlockSize,
	}
}

func (r *Runner) path() string {
	if r.cfg.FilePerProc {
		return fmt.Sprintf("%s.%08d", r.cfg.TestFile, r.group.Rank())
	}
	return r.cfg.TestFile
}

func (r *Runner) offset(seg int, off int64) int64 {
	if r.cfg.FilePerProc {
		return int64(seg)*r.cfg.BlockSize + off
	}
	return (int64(seg)*int64(r.group.Size())+int64(r.group.Rank()))*r.cfg.BlockSize + off
}
