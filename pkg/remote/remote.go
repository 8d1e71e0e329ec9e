// Package remote defines the filesystem client surface backend drivers are
// written against.
//
// The surface mirrors a classic distributed-filesystem client library:
// connect with a descriptor, open files with POSIX-style flags, move bytes
// through a per-file cursor, flush, close, delete and stat. Implementations
// live in subpackages:
//   - hdfs:   Hadoop HDFS through the native Go client
//   - local:  a directory on a POSIX filesystem
//   - memory: process-local, for tests and dry runs
//   - s3:     an S3 bucket, addressed like Hadoop's s3a connector
//
// Open flag semantics shared by all implementations:
//   - os.O_RDONLY: open for reading; missing file is ErrNotFound
//   - os.O_WRONLY|os.O_TRUNC: create or replace the file
//   - os.O_WRONLY without O_TRUNC: open without discarding existing data;
//     a missing file is created only when os.O_CREATE is set
package remote

import (
	"context"
	"fmt"
	"time"
)

// DefaultNameNode selects the name node from the client's own configuration
// (for HDFS: the Hadoop configuration found in the environment).
const DefaultNameNode = "default"

// Descriptor describes the connection a driver wants.
type Descriptor struct {
	// NameNode is either DefaultNameNode, a bare host, or a URI whose
	// scheme selects the implementation (hdfs://, file://, mem://, s3a://).
	NameNode string

	// Port overrides the port of NameNode when non-zero.
	Port int

	// User is the identity the client acts as. Empty lets the client pick.
	User string

	// ForceNewInstance asks for a private connection instead of a cached,
	// shared one.
	ForceNewInstance bool
}

func (d Descriptor) String() string {
	return fmt.Sprintf("namenode=%s port=%d user=%q", d.NameNode, d.Port, d.User)
}

// PathInfo describes a remote path.
type PathInfo struct {
	Name        string
	Size        int64
	ModTime     time.Time
	IsDir       bool
	Replication int
	BlockSize   int64
}

// File is an open remote file with its own cursor.
type File interface {
	// Read reads up to len(p) bytes at the cursor. At end of file it
	// returns 0, io.EOF.
	Read(p []byte) (int, error)

	// Write writes p at the cursor. It may write fewer bytes than len(p)
	// without an error.
	Write(p []byte) (int, error)

	// Flush makes written data visible to new readers.
	Flush() error

	// Close releases the file. Writers commit their data on Close.
	Close() error
}

// FileSystem is a connected remote filesystem.
type FileSystem interface {
	// OpenFile opens path. bufferSize, replicas and blockSize are hints;
	// zero selects the filesystem default.
	OpenFile(ctx context.Context, path string, flag int, bufferSize int64, replicas int, blockSize int64) (File, error)

	// Delete removes path. Non-recursive deletes of non-empty directories fail.
	Delete(ctx context.Context, path string, recursive bool) error

	// Stat returns information about path.
	Stat(ctx context.Context, path string) (*PathInfo, error)

	// Close disconnects from the filesystem.
	Close() error
}

// Connector establishes a FileSystem connection from a descriptor.
type Connector func(ctx context.Context, desc Descriptor) (FileSystem, error)
