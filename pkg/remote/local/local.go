package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/dittobench/internal/logger"
	"github.com/marmos91/dittobench/pkg/remote"
	"github.com/ncw/directio"
)

// FileSystem implements remote.FileSystem on a directory of the local
// (or locally mounted) filesystem.
//
// Remote paths are resolved below the root directory; a path that would
// escape the root is rejected. When the caller passes remote.ODirect the
// file is opened through github.com/ncw/directio, which requires transfer
// buffers aligned to directio.AlignSize (see AlignedBuffer).
//
// Thread Safety:
// Safe for concurrent use. Individual files must be used by one goroutine
// at a time, like *os.File.
type FileSystem struct {
	root string
}

// New creates a FileSystem rooted at root, creating the directory if needed.
//
// Parameters:
//   - ctx: Context for cancellation (checked before touching the disk)
//   - root: Directory all remote paths are resolved below
//
// Returns:
//   - *FileSystem: Initialized filesystem
//   - error: Directory creation or context errors
func New(ctx context.Context, root string) (*FileSystem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("local: resolve root %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("local: create root %s: %w", abs, err)
	}

	return &FileSystem{root: abs}, nil
}

// Connect creates a FileSystem from a file:// descriptor.
func Connect(ctx context.Context, desc remote.Descriptor) (remote.FileSystem, error) {
	loc, err := remote.ParseLocation(desc.NameNode, desc.Port)
	if err != nil {
		return nil, err
	}
	if loc.Scheme != remote.SchemeFile {
		return nil, fmt.Errorf("local: unsupported name node %q", desc.NameNode)
	}
	if loc.Path == "" {
		loc.Path = "/"
	}

	return New(ctx, loc.Path)
}

// AlignedBuffer returns a buffer of size bytes suitable for direct I/O.
func AlignedBuffer(size int) []byte {
	return directio.AlignedBlock(size)
}

// resolve maps a remote path to a path below the root.
func (l *FileSystem) resolve(p string) (string, error) {
	full := filepath.Join(l.root, filepath.FromSlash(filepath.Clean("/"+p)))
	if full != l.root && !strings.HasPrefix(full, l.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", p, remote.ErrInvalidPath)
	}
	return full, nil
}

// mapError converts os errors into remote sentinels while keeping the cause.
func mapError(op, p string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s %s: %w (%v)", op, p, remote.ErrNotFound, err)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%s %s: %w (%v)", op, p, remote.ErrExists, err)
	default:
		return fmt.Errorf("%s %s: %w", op, p, err)
	}
}

// ============================================================================
// remote.FileSystem Interface Implementation
// ============================================================================

// OpenFile opens p with POSIX flags. Replication and block size hints do
// not apply to a local filesystem and are ignored.
func (l *FileSystem) OpenFile(ctx context.Context, p string, flag int, bufferSize int64, replicas int, blockSize int64) (remote.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := l.resolve(p)
	if err != nil {
		return nil, err
	}

	if flag&os.O_CREATE != 0 {
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return nil, mapError("open", p, err)
		}
	}

	var f *os.File
	if remote.ODirect != 0 && flag&remote.ODirect != 0 {
		logger.Debug("local: opening %s with direct I/O", full)
		f, err = directio.OpenFile(full, flag&^remote.ODirect, 0644)
	} else {
		f, err = os.OpenFile(full, flag, 0644)
	}
	if err != nil {
		return nil, mapError("open", p, err)
	}

	info, err := f.Stat()
	if err == nil && info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: %w", p, remote.ErrIsDirectory)
	}

	return &file{File: f}, nil
}

// Delete removes p; recursive deletes remove whole directory trees.
func (l *FileSystem) Delete(ctx context.Context, p string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full, err := l.resolve(p)
	if err != nil {
		return err
	}

	if _, err := os.Lstat(full); err != nil {
		return mapError("delete", p, err)
	}

	if recursive {
		err = os.RemoveAll(full)
	} else {
		err = os.Remove(full)
	}
	if err != nil {
		return mapError("delete", p, err)
	}
	return nil
}

// Stat returns information about p.
func (l *FileSystem) Stat(ctx context.Context, p string) (*remote.PathInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := l.resolve(p)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		return nil, mapError("stat", p, err)
	}

	return &remote.PathInfo{
		Name:        info.Name(),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		IsDir:       info.IsDir(),
		Replication: 1,
	}, nil
}

// Close is a no-op; local filesystems hold no connection.
func (l *FileSystem) Close() error {
	return nil
}

// file adapts *os.File to remote.File.
type file struct {
	*os.File
}

// Flush commits written data to stable storage.
func (f *file) Flush() error {
	return f.Sync()
}
