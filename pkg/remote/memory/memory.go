package memory

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dittobench/pkg/remote"
)

// FileSystem implements remote.FileSystem on process memory.
//
// It is designed for:
//   - Unit tests of drivers and runners
//   - Dry runs of a configuration without touching real storage
//   - Single-node runs where several in-process ranks share one file
//
// Characteristics:
//   - Files are byte slices keyed by cleaned absolute path
//   - Directories are implicit (a path with children stats as a directory)
//   - Writers without O_TRUNC overwrite in place from offset 0, like
//     pwrite on a POSIX file; they never discard data they did not touch
//   - Connections made through Connect with the same mem:// name share
//     files, so every rank of a local group sees the same namespace
//
// Thread Safety:
// All operations are protected by a mutex on the shared namespace. Each File
// keeps its own cursor and must be used by one goroutine at a time.
type FileSystem struct {
	ns *namespace

	mu     sync.Mutex
	closed bool
}

type namespace struct {
	mu    sync.RWMutex
	files map[string]*entry
}

type entry struct {
	data    []byte
	modTime time.Time
}

var (
	namespacesMu sync.Mutex
	namespaces   = make(map[string]*namespace)
)

func newNamespace() *namespace {
	return &namespace{files: make(map[string]*entry)}
}

// New creates a FileSystem with a private, empty namespace.
func New() *FileSystem {
	return &FileSystem{ns: newNamespace()}
}

// Connect returns a FileSystem bound to the namespace named by the
// descriptor's mem:// host. Every connection to the same name shares files.
//
// Parameters:
//   - ctx: Context for cancellation (checked before connecting)
//   - desc: Descriptor whose NameNode is "mem://<name>"
//
// Returns:
//   - remote.FileSystem: Connected filesystem
//   - error: Descriptor errors or context errors
func Connect(ctx context.Context, desc remote.Descriptor) (remote.FileSystem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loc, err := remote.ParseLocation(desc.NameNode, desc.Port)
	if err != nil {
		return nil, err
	}
	if loc.Scheme != remote.SchemeMemory {
		return nil, fmt.Errorf("memory: unsupported name node %q", desc.NameNode)
	}

	namespacesMu.Lock()
	defer namespacesMu.Unlock()

	ns, ok := namespaces[loc.Host]
	if !ok {
		ns = newNamespace()
		namespaces[loc.Host] = ns
	}
	return &FileSystem{ns: ns}, nil
}

// Reset drops the shared namespace called name. Tests use it for isolation.
func Reset(name string) {
	namespacesMu.Lock()
	defer namespacesMu.Unlock()
	delete(namespaces, name)
}

func cleanPath(p string) string {
	return path.Clean("/" + p)
}

func (fs *FileSystem) checkOpen() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return fmt.Errorf("memory filesystem: %w", remote.ErrClosed)
	}
	return nil
}

// ============================================================================
// remote.FileSystem Interface Implementation
// ============================================================================

// OpenFile opens p for reading or writing according to flag.
//
// Buffer size, replication and block size hints are accepted and ignored.
func (fs *FileSystem) OpenFile(ctx context.Context, p string, flag int, bufferSize int64, replicas int, blockSize int64) (remote.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := fs.checkOpen(); err != nil {
		return nil, err
	}

	name := cleanPath(p)

	fs.ns.mu.Lock()
	defer fs.ns.mu.Unlock()

	e, exists := fs.ns.files[name]

	if !remote.IsWrite(flag) {
		if !exists {
			if fs.ns.isDirLocked(name) {
				return nil, fmt.Errorf("open %s: %w", name, remote.ErrIsDirectory)
			}
			return nil, fmt.Errorf("open %s: %w", name, remote.ErrNotFound)
		}
		return &file{ns: fs.ns, name: name}, nil
	}

	if flag&os.O_RDWR != 0 {
		return nil, fmt.Errorf("open %s: read-write access: %w", name, remote.ErrNotSupported)
	}

	switch {
	case exists && flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0:
		return nil, fmt.Errorf("open %s: %w", name, remote.ErrExists)
	case !exists && flag&os.O_CREATE == 0:
		return nil, fmt.Errorf("open %s: %w", name, remote.ErrNotFound)
	case !exists:
		fs.ns.files[name] = &entry{modTime: time.Now()}
	case flag&os.O_TRUNC != 0:
		e.data = e.data[:0]
		e.modTime = time.Now()
	}

	f := &file{ns: fs.ns, name: name, write: true}
	if flag&os.O_APPEND != 0 {
		f.offset = int64(len(fs.ns.files[name].data))
	}
	return f, nil
}

// Delete removes p. Recursive deletes also remove everything below p.
func (fs *FileSystem) Delete(ctx context.Context, p string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fs.checkOpen(); err != nil {
		return err
	}

	name := cleanPath(p)

	fs.ns.mu.Lock()
	defer fs.ns.mu.Unlock()

	if _, ok := fs.ns.files[name]; ok {
		delete(fs.ns.files, name)
		return nil
	}

	if !fs.ns.isDirLocked(name) {
		return fmt.Errorf("delete %s: %w", name, remote.ErrNotFound)
	}
	if !recursive {
		return fmt.Errorf("delete %s: directory not empty: %w", name, remote.ErrIsDirectory)
	}

	prefix := strings.TrimSuffix(name, "/") + "/"
	for k := range fs.ns.files {
		if strings.HasPrefix(k, prefix) {
			delete(fs.ns.files, k)
		}
	}
	return nil
}

// Stat returns the size and modification time of p.
func (fs *FileSystem) Stat(ctx context.Context, p string) (*remote.PathInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := fs.checkOpen(); err != nil {
		return nil, err
	}

	name := cleanPath(p)

	fs.ns.mu.RLock()
	defer fs.ns.mu.RUnlock()

	if e, ok := fs.ns.files[name]; ok {
		return &remote.PathInfo{
			Name:        path.Base(name),
			Size:        int64(len(e.data)),
			ModTime:     e.modTime,
			Replication: 1,
		}, nil
	}
	if fs.ns.isDirLocked(name) {
		return &remote.PathInfo{Name: path.Base(name), IsDir: true}, nil
	}
	return nil, fmt.Errorf("stat %s: %w", name, remote.ErrNotFound)
}

// Close disconnects. Files stay in the namespace.
func (fs *FileSystem) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.closed = true
	return nil
}

func (ns *namespace) isDirLocked(name string) bool {
	if name == "/" {
		return true
	}
	prefix := name + "/"
	for k := range ns.files {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// ============================================================================
// remote.File Implementation
// ============================================================================

type file struct {
	ns     *namespace
	name   string
	write  bool
	offset int64
	closed bool
}

func (f *file) Read(p []byte) (int, error) {
	if f.closed {
		return 0, remote.ErrClosed
	}
	if f.write {
		return 0, fmt.Errorf("read %s: opened for writing: %w", f.name, remote.ErrNotSupported)
	}

	f.ns.mu.RLock()
	defer f.ns.mu.RUnlock()

	e, ok := f.ns.files[f.name]
	if !ok {
		return 0, fmt.Errorf("read %s: %w", f.name, remote.ErrNotFound)
	}
	if f.offset >= int64(len(e.data)) {
		return 0, io.EOF
	}

	n := copy(p, e.data[f.offset:])
	f.offset += int64(n)
	return n, nil
}

func (f *file) Write(p []byte) (int, error) {
	if f.closed {
		return 0, remote.ErrClosed
	}
	if !f.write {
		return 0, fmt.Errorf("write %s: opened for reading: %w", f.name, remote.ErrNotSupported)
	}

	f.ns.mu.Lock()
	defer f.ns.mu.Unlock()

	e, ok := f.ns.files[f.name]
	if !ok {
		// Deleted while open.
		return 0, fmt.Errorf("write %s: %w", f.name, remote.ErrNotFound)
	}

	end := f.offset + int64(len(p))
	if end > int64(len(e.data)) {
		grown := make([]byte, end)
		copy(grown, e.data)
		e.data = grown
	}
	copy(e.data[f.offset:end], p)
	e.modTime = time.Now()
	f.offset = end
	return len(p), nil
}

func (f *file) Flush() error {
	if f.closed {
		return remote.ErrClosed
	}
	return nil
}

func (f *file) Close() error {
	if f.closed {
		return remote.ErrClosed
	}
	f.closed = true
	return nil
}
