// Package hdfs implements remote.FileSystem on Hadoop HDFS using the native
// Go client (github.com/colinmarc/hdfs/v2). No JVM or libhdfs is involved.
//
// HDFS files are write-once: a writer opened without O_TRUNC on an existing
// file appends to it, and only one writer may hold the lease at a time.
package hdfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"path"
	"syscall"
	"time"

	"github.com/colinmarc/hdfs/v2"
	"github.com/colinmarc/hdfs/v2/hadoopconf"
	"github.com/marmos91/dittobench/internal/logger"
	"github.com/marmos91/dittobench/pkg/remote"
)

// DialTimeout bounds each name node and data node connection attempt.
const DialTimeout = 30 * time.Second

// FileSystem implements remote.FileSystem on an HDFS cluster.
type FileSystem struct {
	client *hdfs.Client
	desc   remote.Descriptor
}

// Connect dials the name node named by desc.
//
// DefaultNameNode reads the Hadoop configuration from HADOOP_CONF_DIR or
// HADOOP_HOME; anything else is a host, host:port or hdfs:// URI. The Go
// client holds no process-wide cache, so every call yields a private
// connection and ForceNewInstance needs no special handling.
func Connect(ctx context.Context, desc remote.Descriptor) (remote.FileSystem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loc, err := remote.ParseLocation(desc.NameNode, desc.Port)
	if err != nil {
		return nil, err
	}
	if loc.Scheme != remote.SchemeHDFS {
		return nil, fmt.Errorf("hdfs: unsupported name node %q", desc.NameNode)
	}

	opts, err := clientOptions(loc, desc)
	if err != nil {
		return nil, err
	}

	logger.Debug("hdfs: connect %s addresses=%v user=%s", desc, opts.Addresses, opts.User)
	client, err := hdfs.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("hdfs: connect to %v: %w", opts.Addresses, err)
	}

	return &FileSystem{client: client, desc: desc}, nil
}

func clientOptions(loc remote.Location, desc remote.Descriptor) (hdfs.ClientOptions, error) {
	var opts hdfs.ClientOptions

	if loc.Host == "" {
		conf, err := hadoopconf.LoadFromEnvironment()
		if err != nil {
			return opts, fmt.Errorf("hdfs: load hadoop configuration: %w", err)
		}
		opts = hdfs.ClientOptionsFromConf(conf)
		if len(opts.Addresses) == 0 {
			return opts, fmt.Errorf("hdfs: no name node in hadoop configuration (set HADOOP_CONF_DIR or name a host)")
		}
	} else {
		addr := loc.Address()
		if loc.Port == 0 {
			addr = net.JoinHostPort(loc.Host, "8020")
		}
		opts.Addresses = []string{addr}
	}

	opts.User = desc.User
	if opts.User == "" {
		u, err := user.Current()
		if err != nil {
			return opts, fmt.Errorf("hdfs: no user given and current user unknown: %w", err)
		}
		opts.User = u.Username
	}

	dialer := &net.Dialer{Timeout: DialTimeout}
	opts.NamenodeDialFunc = dialer.DialContext
	opts.DatanodeDialFunc = dialer.DialContext

	return opts, nil
}

// mapError translates client errors into remote sentinels.
func mapError(op, p string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%s %s: %w", op, p, remote.ErrNotFound)
	case errors.Is(err, os.ErrExist):
		return fmt.Errorf("%s %s: %w", op, p, remote.ErrExists)
	case errors.Is(err, syscall.ENOTEMPTY), errors.Is(err, syscall.EISDIR):
		return fmt.Errorf("%s %s: %v: %w", op, p, err, remote.ErrIsDirectory)
	default:
		return fmt.Errorf("%s %s: %w", op, p, err)
	}
}

// ============================================================================
// remote.FileSystem Interface Implementation
// ============================================================================

// OpenFile opens p. Zero replicas or block size take the cluster defaults.
// The buffer size hint has no equivalent in the Go client and is ignored.
func (s *FileSystem) OpenFile(ctx context.Context, p string, flag int, bufferSize int64, replicas int, blockSize int64) (remote.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p = path.Clean("/" + p)

	if !remote.IsWrite(flag) {
		logger.Debug("hdfs: open %s for reading", p)
		r, err := s.client.Open(p)
		if err != nil {
			return nil, mapError("open", p, err)
		}
		if r.Stat().IsDir() {
			r.Close()
			return nil, fmt.Errorf("open %s: %w", p, remote.ErrIsDirectory)
		}
		return &readFile{r: r}, nil
	}

	if flag&os.O_RDWR != 0 {
		return nil, fmt.Errorf("open %s: read-write access: %w", p, remote.ErrNotSupported)
	}

	_, statErr := s.client.Stat(p)
	exists := statErr == nil
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return nil, mapError("open", p, statErr)
	}

	switch {
	case exists && flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0:
		return nil, fmt.Errorf("open %s: %w", p, remote.ErrExists)

	case exists && flag&os.O_TRUNC == 0:
		logger.Debug("hdfs: open %s for append", p)
		w, err := s.client.Append(p)
		if err != nil {
			return nil, mapError("append", p, err)
		}
		return &writeFile{w: w}, nil

	case !exists && flag&os.O_CREATE == 0 && flag&os.O_TRUNC == 0:
		return nil, fmt.Errorf("open %s: %w", p, remote.ErrNotFound)
	}

	if exists {
		logger.Debug("hdfs: truncate %s", p)
		if err := s.client.Remove(p); err != nil {
			return nil, mapError("truncate", p, err)
		}
	}

	if replicas == 0 || blockSize == 0 {
		defaults, err := s.client.ServerDefaults()
		if err != nil {
			return nil, fmt.Errorf("open %s: fetch server defaults: %w", p, err)
		}
		if replicas == 0 {
			replicas = defaults.Replication
		}
		if blockSize == 0 {
			blockSize = defaults.BlockSize
		}
	}

	logger.Debug("hdfs: create %s replicas=%d block_size=%d", p, replicas, blockSize)
	w, err := s.client.CreateFile(p, replicas, blockSize, 0644)
	if err != nil {
		return nil, mapError("create", p, err)
	}
	return &writeFile{w: w}, nil
}

// Delete removes p.
func (s *FileSystem) Delete(ctx context.Context, p string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p = path.Clean("/" + p)

	logger.Debug("hdfs: delete %s recursive=%t", p, recursive)
	if recursive {
		// RemoveAll succeeds on missing paths; keep the not-found contract.
		if _, err := s.client.Stat(p); err != nil {
			return mapError("delete", p, err)
		}
		return mapError("delete", p, s.client.RemoveAll(p))
	}
	return mapError("delete", p, s.client.Remove(p))
}

// blockStatus is satisfied by the protocol status the client returns from
// FileInfo.Sys.
type blockStatus interface {
	GetBlockReplication() uint32
	GetBlocksize() uint64
}

// Stat returns information about p.
func (s *FileSystem) Stat(ctx context.Context, p string) (*remote.PathInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p = path.Clean("/" + p)

	logger.Debug("hdfs: stat %s", p)
	fi, err := s.client.Stat(p)
	if err != nil {
		return nil, mapError("stat", p, err)
	}

	info := &remote.PathInfo{
		Name:    fi.Name(),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		IsDir:   fi.IsDir(),
	}
	if bs, ok := fi.Sys().(blockStatus); ok {
		info.Replication = int(bs.GetBlockReplication())
		info.BlockSize = int64(bs.GetBlocksize())
	}
	return info, nil
}

// Close disconnects from the name node.
func (s *FileSystem) Close() error {
	logger.Debug("hdfs: disconnect %s", s.desc)
	return s.client.Close()
}

// ============================================================================
// Files
// ============================================================================

type readFile struct {
	r *hdfs.FileReader
}

func (f *readFile) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("read %s: %w", f.r.Name(), err)
	}
	return n, err
}

func (f *readFile) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("write %s: opened for reading: %w", f.r.Name(), remote.ErrNotSupported)
}

func (f *readFile) Flush() error { return nil }

func (f *readFile) Close() error { return f.r.Close() }

type writeFile struct {
	w *hdfs.FileWriter
}

func (f *writeFile) Read(p []byte) (int, error) {
	return 0, fmt.Errorf("read: opened for writing: %w", remote.ErrNotSupported)
}

func (f *writeFile) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

// Flush is hflush: data reaches every data node in the pipeline and
// becomes visible to new readers.
func (f *writeFile) Flush() error {
	return f.w.Flush()
}

func (f *writeFile) Close() error {
	return f.w.Close()
}
