package hdfs

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/dittobench/internal/logger"
	"github.com/marmos91/dittobench/pkg/driver"
	"github.com/marmos91/dittobench/pkg/remote"
)

// File is an open file of the HDFS driver. It carries the connection it
// was opened on.
type File struct {
	path   string
	fs     remote.FileSystem
	remote remote.File
}

// Path returns the path the file was opened with.
func (f *File) Path() string {
	return f.path
}

func asFile(f driver.File) (*File, error) {
	hf, ok := f.(*File)
	if !ok || hf == nil || hf.remote == nil {
		return nil, fmt.Errorf("%w: %T", driver.ErrBadHandle, f)
	}
	return hf, nil
}

// Fsync flushes f (hflush): written data reaches every replica and is
// visible to new readers. It does not force data to disk. Failures are
// logged, not returned.
func (d *Driver) Fsync(ctx context.Context, f driver.File) (err error) {
	defer d.observe("fsync", time.Now(), &err)

	hf, err := asFile(f)
	if err != nil {
		return err
	}

	logger.Debug("-> Flush %s", hf.path)
	if ferr := hf.remote.Flush(); ferr != nil {
		logger.Warn("[RANK %03d]: flush of %q failed: %v", d.group.Rank(), hf.path, ferr)
	}
	logger.Debug("<- Flush %s", hf.path)
	return nil
}

// Close closes f. A failed close is fatal since written data may be lost.
func (d *Driver) Close(ctx context.Context, f driver.File) (err error) {
	defer d.observe("close", time.Now(), &err)

	hf, err := asFile(f)
	if err != nil {
		return err
	}

	logger.Debug("-> Close %s", hf.path)
	if err := hf.remote.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", driver.ErrClose, hf.path, err)
	}
	hf.remote = nil
	logger.Debug("<- Close %s", hf.path)
	return nil
}

// Delete removes path, non-recursively. A failed delete is logged, not
// returned.
func (d *Driver) Delete(ctx context.Context, path string) (err error) {
	defer d.observe("delete", time.Now(), &err)

	if err := d.ensureConnected(ctx); err != nil {
		return fmt.Errorf("%w: delete %s: %w", driver.ErrNotConnected, path, err)
	}

	logger.Debug("-> Delete %s", path)
	if derr := d.opts.fs.Delete(ctx, path, false); derr != nil {
		logger.Warn("[RANK %03d]: delete of file %q failed: %v", d.group.Rank(), path, derr)
	}
	logger.Debug("<- Delete %s", path)
	return nil
}

// GetFileSize returns the size of path as the filesystem reports it now.
func (d *Driver) GetFileSize(ctx context.Context, path string) (_ int64, err error) {
	defer d.observe("stat", time.Now(), &err)

	if err := d.ensureConnected(ctx); err != nil {
		return 0, err
	}

	logger.Debug("-> Stat %s", path)
	info, err := d.opts.fs.Stat(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", driver.ErrStat, path, err)
	}
	logger.Debug("<- Stat %s size=%d", path, info.Size)
	return info.Size, nil
}
