package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/dittobench/pkg/remote"
	remotetesting "github.com/marmos91/dittobench/pkg/remote/testing"
	"github.com/ncw/directio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystemSuite(t *testing.T) {
	suite := &remotetesting.FileSystemTestSuite{
		NewFileSystem: func(t *testing.T) remote.FileSystem {
			fs, err := New(context.Background(), t.TempDir())
			require.NoError(t, err)
			return fs
		},
	}
	suite.Run(t)
}

func TestConnect_FileScheme(t *testing.T) {
	root := t.TempDir()

	fs, err := Connect(context.Background(), remote.Descriptor{NameNode: "file://" + root})
	require.NoError(t, err)

	f, err := fs.OpenFile(context.Background(), "/nested/dir/file", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0, 0, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = os.Stat(filepath.Join(root, "nested", "dir", "file"))
	assert.NoError(t, err, "file must be created below the root")
}

func TestResolve_StaysBelowRoot(t *testing.T) {
	fs, err := New(context.Background(), t.TempDir())
	require.NoError(t, err)

	full, err := fs.resolve("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fs.root, "etc", "passwd"), full)
}

func TestDirectIO(t *testing.T) {
	if remote.ODirect == 0 {
		t.Skip("no O_DIRECT on this platform")
	}

	fs, err := New(context.Background(), t.TempDir())
	require.NoError(t, err)

	f, err := fs.OpenFile(context.Background(), "/direct", os.O_WRONLY|os.O_CREATE|os.O_TRUNC|remote.ODirect, 0, 0, 0)
	if err != nil {
		// tmpfs and some overlay filesystems reject O_DIRECT
		t.Skipf("direct I/O unavailable here: %v", err)
	}

	buf := AlignedBuffer(directio.BlockSize)
	n, err := f.Write(buf)
	require.NoError(t, err)
	assert.Equal(t, directio.BlockSize, n)
	require.NoError(t, f.Close())

	info, err := fs.Stat(context.Background(), "/direct")
	require.NoError(t, err)
	assert.Equal(t, int64(directio.BlockSize), info.Size)
}
