package hdfs

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/marmos91/dittobench/pkg/remote"
)

// countingConnector hands out fs and counts how often it was called.
type countingConnector struct {
	fs    remote.FileSystem
	err   error
	calls atomic.Int32
	last  remote.Descriptor
	mu    sync.Mutex
}

func (c *countingConnector) Connect(ctx context.Context, desc remote.Descriptor) (remote.FileSystem, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.last = desc
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.fs, nil
}

type readResult struct {
	n   int
	err error
}

// scriptedFS returns one scriptedFile from every OpenFile and records the
// flags it was opened with.
type scriptedFS struct {
	file      *scriptedFile
	openErr   error
	deleteErr error
	statErr   error
	size      int64

	flags   []int
	deletes []string
	closed  bool
}

func (s *scriptedFS) OpenFile(ctx context.Context, path string, flag int, bufferSize int64, replicas int, blockSize int64) (remote.File, error) {
	s.flags = append(s.flags, flag)
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.file, nil
}

func (s *scriptedFS) Delete(ctx context.Context, path string, recursive bool) error {
	s.deletes = append(s.deletes, path)
	return s.deleteErr
}

func (s *scriptedFS) Stat(ctx context.Context, path string) (*remote.PathInfo, error) {
	if s.statErr != nil {
		return nil, s.statErr
	}
	return &remote.PathInfo{Name: path, Size: s.size}, nil
}

func (s *scriptedFS) Close() error {
	s.closed = true
	return nil
}

// scriptedFile returns the scripted counts in order. Once a script runs
// out, writes are full and reads hit EOF.
type scriptedFile struct {
	writes   []int
	reads    []readResult
	flushErr error
	closeErr error

	writeCalls int
	readCalls  int
	flushes    int
	written    []byte
}

func (f *scriptedFile) Write(p []byte) (int, error) {
	f.writeCalls++
	n := len(p)
	if len(f.writes) > 0 {
		n, f.writes = f.writes[0], f.writes[1:]
		if n < 0 {
			return 0, errors.New("datanode pipeline broken")
		}
	}
	f.written = append(f.written, p[:n]...)
	return n, nil
}

func (f *scriptedFile) Read(p []byte) (int, error) {
	f.readCalls++
	if len(f.reads) == 0 {
		return 0, io.EOF
	}
	r := f.reads[0]
	f.reads = f.reads[1:]
	for i := 0; i < r.n; i++ {
		p[i] = byte(i)
	}
	return r.n, r.err
}

func (f *scriptedFile) Flush() error {
	f.flushes++
	return f.flushErr
}

func (f *scriptedFile) Close() error {
	return f.closeErr
}
