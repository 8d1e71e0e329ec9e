package driver

import "errors"

// ============================================================================
// Standard Driver Errors
// ============================================================================

// These errors classify the fatal conditions a backend can report. Backends
// wrap them with context (path, rank, byte counts) so callers can match the
// class with errors.Is and still print a useful message:
//
//	if _, err := drv.Xfer(ctx, driver.Read, f, buf, off); err != nil {
//	    if errors.Is(err, driver.ErrPrematureEOF) {
//	        // file is shorter than the run expects
//	    }
//	    return err
//	}

var (
	// ErrConnect indicates the backend connection could not be established.
	ErrConnect = errors.New("unable to connect to backend")

	// ErrNotConnected indicates an operation needed a connection that does
	// not exist.
	ErrNotConnected = errors.New("not connected to backend")

	// ErrUnsupportedMode indicates an open mode the backend cannot provide,
	// such as read-write access on an append-only filesystem.
	ErrUnsupportedMode = errors.New("unsupported open mode")

	// ErrOpen indicates the backend refused to open or create a file.
	ErrOpen = errors.New("open failed")

	// ErrWrite indicates a write call failed.
	ErrWrite = errors.New("write failed")

	// ErrRead indicates a read call failed.
	ErrRead = errors.New("read failed")

	// ErrPrematureEOF indicates a read returned no data before the
	// requested length was transferred.
	ErrPrematureEOF = errors.New("hit EOF prematurely")

	// ErrTooManyRetries indicates a transfer kept returning short counts
	// past the retry ceiling.
	ErrTooManyRetries = errors.New("too many retries")

	// ErrClose indicates the backend failed to close a file.
	ErrClose = errors.New("close failed")

	// ErrStat indicates the backend could not report file information.
	ErrStat = errors.New("stat failed")

	// ErrAborted indicates the run was aborted collectively.
	ErrAborted = errors.New("run aborted")

	// ErrBadHandle indicates a File that was not produced by this driver.
	ErrBadHandle = errors.New("file handle does not belong to this driver")

	// ErrUnknownOption indicates an option name missing from the table.
	ErrUnknownOption = errors.New("unknown option")
)
