// Package driver defines the abstract I/O interface a benchmark run uses to
// talk to a storage backend.
//
// A Driver is looked up once per run and then called polymorphically by the
// runner: open or create a file, transfer buffers to or from it, optionally
// flush, close, query its size and delete it. Backends translate these calls
// into their own client API (see pkg/driver/hdfs).
//
// Error model:
// Every error returned by a Driver method is fatal for the run. Conditions a
// backend considers recoverable (a failed flush, a failed delete, a short
// transfer that will be retried) are logged as warnings and never returned.
package driver

import (
	"context"
	"strings"
)

// Access selects the direction of a transfer.
type Access int

const (
	// Write sends the buffer to the backend.
	Write Access = iota

	// Read fills the buffer from the backend.
	Read

	// Check re-reads data for verification. Backends treat it like Read.
	Check
)

func (a Access) String() string {
	switch a {
	case Write:
		return "write"
	case Read:
		return "read"
	case Check:
		return "check"
	default:
		return "unknown"
	}
}

// Flags is the generic open-mode bitmask passed to Create and Open.
type Flags uint32

const (
	FlagCreate Flags = 1 << iota
	FlagReadOnly
	FlagWriteOnly
	FlagReadWrite
	FlagExclusive
	FlagAppend
)

// Has reports whether every bit of other is set in f.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}

	names := []struct {
		flag Flags
		name string
	}{
		{FlagCreate, "create"},
		{FlagReadOnly, "rdonly"},
		{FlagWriteOnly, "wronly"},
		{FlagReadWrite, "rdwr"},
		{FlagExclusive, "excl"},
		{FlagAppend, "append"},
	}

	var parts []string
	for _, n := range names {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// XferHints are run-wide parameters a backend needs to shape its I/O.
//
// Hints are fixed when a driver is constructed and never change afterwards.
type XferHints struct {
	// FilePerProc is true when every rank works on its own file (N-N) and
	// false when all ranks share one file (N-1).
	FilePerProc bool `mapstructure:"file_per_proc"`

	// TransferSize is the size of a single transfer in bytes. Backends may
	// use it as their client buffer size.
	TransferSize int64 `mapstructure:"transfer_size"`

	// FsyncPerWrite requests a flush after every successful write call.
	FsyncPerWrite bool `mapstructure:"fsync_per_write"`

	// SingleXferAttempt aborts the whole group on the first short transfer
	// instead of retrying.
	SingleXferAttempt bool `mapstructure:"single_xfer_attempt"`
}

// File is an open file handle returned by Create or Open.
//
// Handles are owned by the caller between open and Close and must only be
// passed back to the Driver that produced them.
type File interface {
	// Path returns the path the handle was opened with.
	Path() string
}

// Driver is the abstract I/O interface implemented by every backend.
type Driver interface {
	// Name returns the backend name used in configuration and logs.
	Name() string

	// Create creates (or opens for creation) the file at path.
	Create(ctx context.Context, path string, flags Flags) (File, error)

	// Open opens an existing file at path. FlagCreate in flags still
	// requests creation semantics.
	Open(ctx context.Context, path string, flags Flags) (File, error)

	// Xfer moves len(buf) bytes between buf and the file.
	//
	// On success the returned count always equals len(buf); a backend
	// never returns a shorter count without an error. The offset is
	// advisory and used for diagnostics only.
	Xfer(ctx context.Context, access Access, f File, buf []byte, offset int64) (int64, error)

	// Close releases the handle.
	Close(ctx context.Context, f File) error

	// Delete removes the file at path.
	Delete(ctx context.Context, path string) error

	// GetFileSize returns the current size of the file at path.
	GetFileSize(ctx context.Context, path string) (int64, error)

	// Fsync pushes buffered data of f to the backend.
	Fsync(ctx context.Context, f File) error

	// Options returns the backend's option table.
	Options() []Option

	// Shutdown releases any connection held by the driver.
	Shutdown(ctx context.Context) error
}
