package remote

import "errors"

// ============================================================================
// Standard Remote Filesystem Errors
// ============================================================================

// Implementations wrap these with path context so drivers can classify
// failures with errors.Is:
//
//	if !exists {
//	    return nil, fmt.Errorf("open %s: %w", path, remote.ErrNotFound)
//	}

var (
	// ErrNotFound indicates the path does not exist.
	ErrNotFound = errors.New("path not found")

	// ErrExists indicates the path already exists where it must not.
	ErrExists = errors.New("path already exists")

	// ErrIsDirectory indicates a file operation on a directory.
	ErrIsDirectory = errors.New("path is a directory")

	// ErrNotSupported indicates a flag combination the filesystem cannot honour.
	ErrNotSupported = errors.New("operation not supported")

	// ErrClosed indicates use of a closed file or filesystem.
	ErrClosed = errors.New("use of closed handle")

	// ErrInvalidPath indicates a path that escapes the filesystem root or
	// cannot be mapped to the backing store.
	ErrInvalidPath = errors.New("invalid path")
)
