package testing

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/marmos91/dittobench/pkg/remote"
	"github.com/stretchr/testify/require"
)

// AssertErrorIs checks if the error matches the expected error using errors.Is.
func AssertErrorIs(t *testing.T, expected error, actual error) {
	t.Helper()
	if !errors.Is(actual, expected) {
		t.Errorf("Expected error %v, got %v", expected, actual)
	}
}

// mustWriteFile creates (or truncates) path and writes data to it.
func mustWriteFile(t *testing.T, fs remote.FileSystem, path string, data []byte) {
	t.Helper()
	f, err := fs.OpenFile(testContext(), path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0, 0, 0)
	require.NoError(t, err, "OpenFile for write should succeed")

	writeAll(t, f, data)
	require.NoError(t, f.Close(), "Close after write should succeed")
}

// writeAll writes data, retrying short writes.
func writeAll(t *testing.T, f remote.File, data []byte) {
	t.Helper()
	for len(data) > 0 {
		n, err := f.Write(data)
		require.NoError(t, err, "Write should succeed")
		data = data[n:]
	}
}

// mustReadFile opens path for reading and returns its full content.
func mustReadFile(t *testing.T, fs remote.FileSystem, path string) []byte {
	t.Helper()
	f, err := fs.OpenFile(testContext(), path, os.O_RDONLY, 0, 0, 0)
	require.NoError(t, err, "OpenFile for read should succeed")
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err, "Reading should succeed")
	return data
}

// mustStat stats path and fails the test if it errors.
func mustStat(t *testing.T, fs remote.FileSystem, path string) *remote.PathInfo {
	t.Helper()
	info, err := fs.Stat(testContext(), path)
	require.NoError(t, err, "Stat should succeed")
	return info
}

// assertContentEquals reads path back and compares it to expected.
func assertContentEquals(t *testing.T, fs remote.FileSystem, path string, expected []byte) {
	t.Helper()
	require.Equal(t, expected, mustReadFile(t, fs, path), "content mismatch for %s", path)
}
