package testing

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/marmos91/dittobench/pkg/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests covers write, read back, stat and end-of-file behaviour.
func (suite *FileSystemTestSuite) RunBasicTests(t *testing.T) {
	t.Run("WriteRead_RoundTrip", suite.testWriteReadRoundTrip)
	t.Run("Stat_Size", suite.testStatSize)
	t.Run("Read_EOF", suite.testReadEOF)
	t.Run("Read_NotFound", suite.testReadNotFound)
	t.Run("Stat_NotFound", suite.testStatNotFound)
	t.Run("Flush_AfterWrite", suite.testFlushAfterWrite)
}

// RunOpenTests covers the flag semantics drivers depend on.
func (suite *FileSystemTestSuite) RunOpenTests(t *testing.T) {
	t.Run("Truncate_Replaces", suite.testTruncateReplaces)
	t.Run("NoTruncate_NoWrites_Preserves", suite.testNoTruncatePreserves)
	t.Run("NoTruncate_Overwrites_InPlace", suite.testNoTruncateOverwrite)
	t.Run("WriteOnly_NoCreate_NotFound", suite.testWriteNoCreateNotFound)
}

// RunDeleteTests covers Delete.
func (suite *FileSystemTestSuite) RunDeleteTests(t *testing.T) {
	t.Run("Delete_Success", suite.testDeleteSuccess)
	t.Run("Delete_NotFound", suite.testDeleteNotFound)
}

// ============================================================================
// Basic Tests
// ============================================================================

func (suite *FileSystemTestSuite) testWriteReadRoundTrip(t *testing.T) {
	fs := suite.NewFileSystem(t)
	path := suite.testPath("roundtrip")
	data := bytes.Repeat([]byte("0123456789abcdef"), 1024)

	mustWriteFile(t, fs, path, data)
	assertContentEquals(t, fs, path, data)
}

func (suite *FileSystemTestSuite) testStatSize(t *testing.T) {
	fs := suite.NewFileSystem(t)
	path := suite.testPath("stat")

	mustWriteFile(t, fs, path, []byte("Hello, World!"))

	info := mustStat(t, fs, path)
	assert.Equal(t, int64(13), info.Size)
	assert.False(t, info.IsDir)
}

func (suite *FileSystemTestSuite) testReadEOF(t *testing.T) {
	fs := suite.NewFileSystem(t)
	path := suite.testPath("eof")
	mustWriteFile(t, fs, path, []byte("abc"))

	f, err := fs.OpenFile(testContext(), path, os.O_RDONLY, 0, 0, 0)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 3)
	_, err = io.ReadFull(f, buf)
	require.NoError(t, err)

	n, err := f.Read(buf)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
}

func (suite *FileSystemTestSuite) testReadNotFound(t *testing.T) {
	fs := suite.NewFileSystem(t)

	_, err := fs.OpenFile(testContext(), suite.testPath("missing"), os.O_RDONLY, 0, 0, 0)
	AssertErrorIs(t, remote.ErrNotFound, err)
}

func (suite *FileSystemTestSuite) testStatNotFound(t *testing.T) {
	fs := suite.NewFileSystem(t)

	_, err := fs.Stat(testContext(), suite.testPath("missing"))
	AssertErrorIs(t, remote.ErrNotFound, err)
}

func (suite *FileSystemTestSuite) testFlushAfterWrite(t *testing.T) {
	fs := suite.NewFileSystem(t)
	path := suite.testPath("flush")

	f, err := fs.OpenFile(testContext(), path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0, 0, 0)
	require.NoError(t, err)

	writeAll(t, f, []byte("flushed"))
	require.NoError(t, f.Flush())
	require.NoError(t, f.Close())

	assertContentEquals(t, fs, path, []byte("flushed"))
}

// ============================================================================
// Open Semantics Tests
// ============================================================================

func (suite *FileSystemTestSuite) testTruncateReplaces(t *testing.T) {
	fs := suite.NewFileSystem(t)
	path := suite.testPath("truncate")

	mustWriteFile(t, fs, path, []byte("old data that is longer"))
	mustWriteFile(t, fs, path, []byte("new"))

	assertContentEquals(t, fs, path, []byte("new"))
	assert.Equal(t, int64(3), mustStat(t, fs, path).Size)
}

// A shared-file writer that opens without truncation and writes nothing
// must leave the file as the truncating writer left it.
func (suite *FileSystemTestSuite) testNoTruncatePreserves(t *testing.T) {
	fs := suite.NewFileSystem(t)
	path := suite.testPath("preserve")
	data := bytes.Repeat([]byte{0xAB}, 100)

	mustWriteFile(t, fs, path, data)

	f, err := fs.OpenFile(testContext(), path, os.O_WRONLY|os.O_CREATE, 0, 0, 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, int64(100), mustStat(t, fs, path).Size)
	assertContentEquals(t, fs, path, data)
}

func (suite *FileSystemTestSuite) testNoTruncateOverwrite(t *testing.T) {
	if suite.NoInPlaceWrites {
		t.Skip("filesystem cannot overwrite in place")
	}

	fs := suite.NewFileSystem(t)
	path := suite.testPath("overwrite")
	mustWriteFile(t, fs, path, []byte("0123456789"))

	f, err := fs.OpenFile(testContext(), path, os.O_WRONLY, 0, 0, 0)
	require.NoError(t, err)
	writeAll(t, f, []byte("abc"))
	require.NoError(t, f.Close())

	assertContentEquals(t, fs, path, []byte("abc3456789"))
}

func (suite *FileSystemTestSuite) testWriteNoCreateNotFound(t *testing.T) {
	fs := suite.NewFileSystem(t)

	_, err := fs.OpenFile(testContext(), suite.testPath("nocreate"), os.O_WRONLY, 0, 0, 0)
	AssertErrorIs(t, remote.ErrNotFound, err)
}

// ============================================================================
// Delete Tests
// ============================================================================

func (suite *FileSystemTestSuite) testDeleteSuccess(t *testing.T) {
	fs := suite.NewFileSystem(t)
	path := suite.testPath("delete")
	mustWriteFile(t, fs, path, []byte("bye"))

	require.NoError(t, fs.Delete(testContext(), path, false))

	_, err := fs.Stat(testContext(), path)
	AssertErrorIs(t, remote.ErrNotFound, err)
}

func (suite *FileSystemTestSuite) testDeleteNotFound(t *testing.T) {
	fs := suite.NewFileSystem(t)

	err := fs.Delete(testContext(), suite.testPath("never-existed"), false)
	AssertErrorIs(t, remote.ErrNotFound, err)
}
