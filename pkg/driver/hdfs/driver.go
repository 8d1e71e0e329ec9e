// Package hdfs implements driver.Driver on a distributed filesystem client.
//
// The driver is a thin adapter. It connects lazily, translates generic open
// flags, retries short transfers and serializes truncation of a shared
// file across ranks with one barrier pair. Everything else is delegated to
// the remote.FileSystem the connector returns, which is HDFS for
// "default", bare hosts and hdfs:// name nodes.
package hdfs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/dittobench/internal/logger"
	"github.com/marmos91/dittobench/pkg/driver"
	"github.com/marmos91/dittobench/pkg/group"
	"github.com/marmos91/dittobench/pkg/remote"
	"github.com/marmos91/dittobench/pkg/remote/dial"
)

// Name is the backend name.
const Name = "HDFS"

// Config contains everything a Driver needs. Hints are fixed for the
// lifetime of the driver.
type Config struct {
	// Options is the backend configuration. Nil uses NewOptions(nil).
	Options *Options

	Hints driver.XferHints

	// Group provides the rank, the truncation barrier and the collective
	// abort. Required.
	Group group.Group

	// Connector dials the remote filesystem. Nil uses dial.Connect.
	Connector remote.Connector

	// Metrics is optional.
	Metrics driver.Metrics
}

// Driver implements driver.Driver.
//
// A Driver belongs to one rank and is not safe for concurrent use.
type Driver struct {
	opts    *Options
	hints   driver.XferHints
	group   group.Group
	connect remote.Connector
	metrics driver.Metrics
}

var _ driver.Driver = (*Driver)(nil)

// New creates a Driver. It does not connect.
func New(cfg Config) (*Driver, error) {
	if cfg.Group == nil {
		return nil, errors.New("hdfs: group is required")
	}

	opts := cfg.Options
	if opts == nil {
		opts = NewOptions(nil)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	connector := cfg.Connector
	if connector == nil {
		connector = dial.Connect
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = driver.NoopMetrics{}
	}

	return &Driver{
		opts:    opts,
		hints:   cfg.Hints,
		group:   cfg.Group,
		connect: connector,
		metrics: metrics,
	}, nil
}

// Name returns "HDFS".
func (d *Driver) Name() string {
	return Name
}

// Options returns the option table bound to the driver's Options.
func (d *Driver) Options() []driver.Option {
	return d.opts.Table()
}

// Hints returns the transfer hints the driver was built with.
func (d *Driver) Hints() driver.XferHints {
	return d.hints
}

// ensureConnected connects unless a connection already exists. Failures are
// not retried.
func (d *Driver) ensureConnected(ctx context.Context) error {
	if d.opts.fs != nil {
		return nil
	}

	desc := d.opts.descriptor()
	if _, err := remote.ParseLocation(desc.NameNode, desc.Port); err != nil {
		return fmt.Errorf("%w: building descriptor: %w", driver.ErrConnect, err)
	}

	logger.Debug("-> Connect %s", desc)
	start := time.Now()
	fs, err := d.connect(ctx, desc)
	d.metrics.ObserveOperation("connect", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", driver.ErrConnect, desc, err)
	}
	logger.Debug("<- Connect")

	d.opts.fs = fs
	return nil
}

// disconnect drops the connection. It is idempotent.
func (d *Driver) disconnect() {
	if d.opts.fs == nil {
		return
	}

	logger.Debug("-> Disconnect")
	if err := d.opts.fs.Close(); err != nil {
		logger.Warn("[RANK %03d]: disconnect failed: %v", d.group.Rank(), err)
	}
	d.opts.fs = nil
	logger.Debug("<- Disconnect")
}

// Shutdown releases the connection. Open files must be closed first.
func (d *Driver) Shutdown(ctx context.Context) error {
	d.disconnect()
	return nil
}

func (d *Driver) observe(op string, start time.Time, err *error) {
	d.metrics.ObserveOperation(op, time.Since(start), *err)
}
