package hdfs

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/marmos91/dittobench/internal/logger"
	"github.com/marmos91/dittobench/pkg/driver"
	"github.com/marmos91/dittobench/pkg/remote"
)

// openPlan is the remote open flag plus the shared-file truncation
// protocol for one rank:
//
//	truncator (rank 0):  open with O_TRUNC  -> barrier
//	others:              barrier -> open without O_TRUNC
//
// The barrier guarantees the truncating open completes before any other
// rank's open returns. With one file per rank there is no barrier and
// every rank truncates its own file.
type openPlan struct {
	flag          int
	barrierBefore bool
	barrierAfter  bool
}

func (p openPlan) truncates() bool {
	return p.flag&os.O_TRUNC != 0
}

// planOpen translates generic flags for this rank.
func (d *Driver) planOpen(flags driver.Flags, create bool) openPlan {
	var plan openPlan

	if create {
		plan.flag |= os.O_CREATE
	}

	if flags.Has(driver.FlagWriteOnly) {
		plan.flag |= os.O_WRONLY

		switch {
		case d.hints.FilePerProc:
			plan.flag |= os.O_TRUNC
		case d.group.Rank() == 0:
			plan.flag |= os.O_TRUNC
			plan.barrierAfter = true
		default:
			plan.barrierBefore = true
		}
	} else {
		plan.flag |= os.O_RDONLY
	}

	if d.opts.DirectIO {
		if remote.ODirect == 0 {
			logger.Warn("[RANK %03d]: direct I/O is not available on this platform, ignoring hdfs.odirect", d.group.Rank())
		}
		plan.flag |= remote.ODirect
	}

	return plan
}

// createOrOpen opens path on the remote filesystem, connecting first if
// needed.
func (d *Driver) createOrOpen(ctx context.Context, path string, flags driver.Flags, create bool) (_ *File, err error) {
	defer d.observe("open", time.Now(), &err)

	logger.Debug("-> CreateOrOpen %s flags=%s create=%t", path, flags, create)

	if err := d.ensureConnected(ctx); err != nil {
		return nil, err
	}

	if flags.Has(driver.FlagReadWrite) {
		return nil, fmt.Errorf("%w: read-write access to %s", driver.ErrUnsupportedMode, path)
	}
	if flags.Has(driver.FlagExclusive) {
		logger.Warn("[RANK %03d]: exclusive access is not implemented, opening %s anyway", d.group.Rank(), path)
	}
	if flags.Has(driver.FlagAppend) {
		logger.Warn("[RANK %03d]: append mode is not implemented, opening %s anyway", d.group.Rank(), path)
	}

	plan := d.planOpen(flags, create)

	if plan.barrierBefore {
		logger.Debug("[RANK %03d]: waiting for truncation of %s", d.group.Rank(), path)
		if err := d.group.Barrier(ctx); err != nil {
			return nil, fmt.Errorf("barrier before opening %s: %w", path, err)
		}
	}

	logger.Debug("-> OpenFile %s flag=%#x buffer=%d replicas=%d block_size=%d truncate=%t",
		path, plan.flag, d.hints.TransferSize, d.opts.Replicas, d.opts.BlockSize, plan.truncates())

	rf, err := d.opts.fs.OpenFile(ctx, path, plan.flag, d.hints.TransferSize, int(d.opts.Replicas), d.opts.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrOpen, path, err)
	}
	logger.Debug("<- OpenFile %s", path)

	if plan.barrierAfter {
		if err := d.group.Barrier(ctx); err != nil {
			rf.Close()
			return nil, fmt.Errorf("barrier after truncating %s: %w", path, err)
		}
	}

	logger.Debug("<- CreateOrOpen %s", path)
	return &File{path: path, fs: d.opts.fs, remote: rf}, nil
}

// Create opens path with creation semantics.
func (d *Driver) Create(ctx context.Context, path string, flags driver.Flags) (driver.File, error) {
	return d.createOrOpen(ctx, path, flags, true)
}

// Open opens path. FlagCreate in flags still requests creation.
func (d *Driver) Open(ctx context.Context, path string, flags driver.Flags) (driver.File, error) {
	return d.createOrOpen(ctx, path, flags, flags.Has(driver.FlagCreate))
}
