package hdfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/dittobench/internal/logger"
	"github.com/marmos91/dittobench/pkg/driver"
)

// MaxRetry is the number of transfer iterations after which a short
// transfer is fatal.
const MaxRetry = 10000

// Xfer moves all of buf to or from f. It returns len(buf) or an error,
// never a short count. The remote cursor carries the position; offset is
// only reported in diagnostics.
func (d *Driver) Xfer(ctx context.Context, access driver.Access, f driver.File, buf []byte, offset int64) (_ int64, err error) {
	defer d.observe("xfer_"+access.String(), time.Now(), &err)

	hf, err := asFile(f)
	if err != nil {
		return 0, err
	}

	length := int64(len(buf))
	remaining := length
	pos := int64(0)
	retries := 0

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		var n int
		var opName string

		if access == driver.Write {
			opName = "write"
			logger.Debug("-> Write %s %d bytes at offset %d", hf.path, remaining, offset+pos)
			n, err = hf.remote.Write(buf[pos:])
			if err != nil {
				return 0, fmt.Errorf("%w: %s at offset %d: %w", driver.ErrWrite, hf.path, offset+pos, err)
			}
			if d.hints.FsyncPerWrite {
				d.Fsync(ctx, hf)
			}
		} else {
			opName = "read"
			logger.Debug("-> Read %s %d bytes at offset %d", hf.path, remaining, offset+pos)
			n, err = hf.remote.Read(buf[pos:])
			if n == 0 && (err == nil || errors.Is(err, io.EOF)) {
				return 0, fmt.Errorf("%w: %s at offset %d", driver.ErrPrematureEOF, hf.path, offset+pos)
			}
			if err != nil && !errors.Is(err, io.EOF) {
				return 0, fmt.Errorf("%w: %s at offset %d: %w", driver.ErrRead, hf.path, offset+pos, err)
			}
		}

		if int64(n) < remaining {
			logger.Warn("[RANK %03d]: partial %s, %d of %d bytes at offset %d of %s",
				d.group.Rank(), opName, n, remaining, offset+pos+int64(n), hf.path)
			d.metrics.RecordPartial(access)

			if d.hints.SingleXferAttempt {
				if abortErr := d.group.Abort(ctx, -1); abortErr != nil {
					return 0, fmt.Errorf("%w: partial %s of %s: %w", driver.ErrAborted, opName, hf.path, abortErr)
				}
				return 0, fmt.Errorf("%w: partial %s of %s", driver.ErrAborted, opName, hf.path)
			}
			if retries > MaxRetry {
				return 0, fmt.Errorf("%w: %s of %s after %d attempts", driver.ErrTooManyRetries, opName, hf.path, retries)
			}
		}

		remaining -= int64(n)
		pos += int64(n)
		retries++
	}

	d.metrics.RecordBytes(access, length)
	return length, nil
}
