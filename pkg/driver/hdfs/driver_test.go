package hdfs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/marmos91/dittobench/internal/logger"
	"github.com/marmos91/dittobench/pkg/driver"
	"github.com/marmos91/dittobench/pkg/group"
	"github.com/marmos91/dittobench/pkg/group/local"
	"github.com/marmos91/dittobench/pkg/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleRank(t *testing.T) group.Group {
	t.Helper()
	w, err := local.NewWorld(1, local.WithAbortFunc(func(int) {}))
	require.NoError(t, err)
	return w.Member(0)
}

func newScriptedDriver(t *testing.T, hints driver.XferHints, fs *scriptedFS) (*Driver, *countingConnector) {
	t.Helper()
	conn := &countingConnector{fs: fs}
	d, err := New(Config{
		Options:   &Options{NameNode: "mem://unused", User: "bench"},
		Hints:     hints,
		Group:     singleRank(t),
		Connector: conn.Connect,
	})
	require.NoError(t, err)
	return d, conn
}

// captureWarnings routes WARN and above into a buffer for the rest of the test.
func captureWarnings(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetLevel("WARN")
	t.Cleanup(func() {
		logger.SetOutput(os.Stdout)
		logger.SetLevel("ERROR")
	})
	return &buf
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err, "group is required")

	_, err = New(Config{Group: singleRank(t), Options: &Options{}})
	assert.Error(t, err, "name node is required")

	_, err = New(Config{Group: singleRank(t), Options: &Options{NameNode: "nn", Replicas: -1}})
	assert.Error(t, err)

	d, err := New(Config{Group: singleRank(t)})
	require.NoError(t, err)
	assert.Equal(t, "HDFS", d.Name())
	assert.Equal(t, remote.DefaultNameNode, d.opts.NameNode)
}

func TestConnect_Idempotent(t *testing.T) {
	ctx := context.Background()
	fs := &scriptedFS{file: &scriptedFile{}, size: 42}
	d, conn := newScriptedDriver(t, driver.XferHints{}, fs)

	_, err := d.GetFileSize(ctx, "/a")
	require.NoError(t, err)
	_, err = d.Open(ctx, "/a", driver.FlagReadOnly)
	require.NoError(t, err)
	require.NoError(t, d.Delete(ctx, "/a"))

	assert.Equal(t, int32(1), conn.calls.Load())
	assert.True(t, conn.last.ForceNewInstance)
	assert.Equal(t, "bench", conn.last.User)
}

func TestConnect_FailureIsFatal(t *testing.T) {
	conn := &countingConnector{err: errors.New("connection refused")}
	d, err := New(Config{
		Options:   &Options{NameNode: "nn1:8020"},
		Group:     singleRank(t),
		Connector: conn.Connect,
	})
	require.NoError(t, err)

	_, err = d.Create(context.Background(), "/f", driver.FlagWriteOnly)
	assert.ErrorIs(t, err, driver.ErrConnect)
	assert.False(t, d.opts.Connected())
}

func TestConnect_BadDescriptor(t *testing.T) {
	conn := &countingConnector{fs: &scriptedFS{}}
	d, err := New(Config{
		Options:   &Options{NameNode: "nn1:bogus"},
		Group:     singleRank(t),
		Connector: conn.Connect,
	})
	require.NoError(t, err)

	_, err = d.GetFileSize(context.Background(), "/f")
	assert.ErrorIs(t, err, driver.ErrConnect)
	assert.Equal(t, int32(0), conn.calls.Load())
}

func TestShutdown(t *testing.T) {
	ctx := context.Background()
	fs := &scriptedFS{file: &scriptedFile{}}
	d, conn := newScriptedDriver(t, driver.XferHints{}, fs)

	require.NoError(t, d.Shutdown(ctx))
	assert.False(t, fs.closed)

	_, err := d.GetFileSize(ctx, "/a")
	require.NoError(t, err)
	require.NoError(t, d.Shutdown(ctx))
	assert.True(t, fs.closed)
	require.NoError(t, d.Shutdown(ctx))

	_, err = d.GetFileSize(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, int32(2), conn.calls.Load())
}

func TestOpen_ReadWriteIsFatal(t *testing.T) {
	fs := &scriptedFS{file: &scriptedFile{}}
	d, _ := newScriptedDriver(t, driver.XferHints{}, fs)

	for _, create := range []bool{true, false} {
		var err error
		if create {
			_, err = d.Create(context.Background(), "/f", driver.FlagReadWrite)
		} else {
			_, err = d.Open(context.Background(), "/f", driver.FlagReadWrite|driver.FlagCreate)
		}
		assert.ErrorIs(t, err, driver.ErrUnsupportedMode)
	}
	assert.Empty(t, fs.flags)
}

func TestOpen_ExclusiveAndAppendProceed(t *testing.T) {
	fs := &scriptedFS{file: &scriptedFile{}}
	d, _ := newScriptedDriver(t, driver.XferHints{FilePerProc: true}, fs)
	warnings := captureWarnings(t)

	_, err := d.Create(context.Background(), "/f", driver.FlagWriteOnly|driver.FlagExclusive|driver.FlagAppend)
	require.NoError(t, err)
	require.Len(t, fs.flags, 1)
	assert.Zero(t, fs.flags[0]&os.O_EXCL)
	assert.Zero(t, fs.flags[0]&os.O_APPEND)

	out := warnings.String()
	assert.Contains(t, out, "[RANK 000]: exclusive access is not implemented, opening /f")
	assert.Contains(t, out, "[RANK 000]: append mode is not implemented, opening /f")
}

func TestOpen_FlagTranslation(t *testing.T) {
	tests := []struct {
		name   string
		create bool
		flags  driver.Flags
		hints  driver.XferHints
		want   int
	}{
		{"create write per-proc", true, driver.FlagWriteOnly, driver.XferHints{FilePerProc: true}, os.O_CREATE | os.O_WRONLY | os.O_TRUNC},
		{"open write per-proc", false, driver.FlagWriteOnly, driver.XferHints{FilePerProc: true}, os.O_WRONLY | os.O_TRUNC},
		{"open read", false, driver.FlagReadOnly, driver.XferHints{}, os.O_RDONLY},
		{"open with create flag", false, driver.FlagReadOnly | driver.FlagCreate, driver.XferHints{}, os.O_RDONLY | os.O_CREATE},
		{"create write shared rank 0", true, driver.FlagWriteOnly, driver.XferHints{}, os.O_CREATE | os.O_WRONLY | os.O_TRUNC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &scriptedFS{file: &scriptedFile{}}
			d, _ := newScriptedDriver(t, tt.hints, fs)

			var err error
			if tt.create {
				_, err = d.Create(context.Background(), "/f", tt.flags)
			} else {
				_, err = d.Open(context.Background(), "/f", tt.flags)
			}
			require.NoError(t, err)
			require.Len(t, fs.flags, 1)
			assert.Equal(t, tt.want, fs.flags[0])
		})
	}
}

func TestOpen_DirectIO(t *testing.T) {
	fs := &scriptedFS{file: &scriptedFile{}}
	d, _ := newScriptedDriver(t, driver.XferHints{}, fs)
	d.opts.DirectIO = true

	_, err := d.Open(context.Background(), "/f", driver.FlagReadOnly)
	require.NoError(t, err)
	assert.Equal(t, os.O_RDONLY|remote.ODirect, fs.flags[0])
}

func TestOpen_RemoteFailure(t *testing.T) {
	fs := &scriptedFS{openErr: remote.ErrNotFound}
	d, _ := newScriptedDriver(t, driver.XferHints{}, fs)

	_, err := d.Open(context.Background(), "/missing", driver.FlagReadOnly)
	assert.ErrorIs(t, err, driver.ErrOpen)
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestFsync_FailureWarnsOnly(t *testing.T) {
	ctx := context.Background()
	file := &scriptedFile{flushErr: errors.New("pipeline recovery")}
	d, _ := newScriptedDriver(t, driver.XferHints{}, &scriptedFS{file: file})

	f, err := d.Create(ctx, "/f", driver.FlagWriteOnly)
	require.NoError(t, err)
	warnings := captureWarnings(t)

	assert.NoError(t, d.Fsync(ctx, f))
	assert.Equal(t, 1, file.flushes)

	out := warnings.String()
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, `[RANK 000]: flush of "/f" failed`)
	assert.Contains(t, out, "pipeline recovery")
}

func TestClose_FailureIsFatal(t *testing.T) {
	ctx := context.Background()
	file := &scriptedFile{closeErr: errors.New("could not complete file")}
	d, _ := newScriptedDriver(t, driver.XferHints{}, &scriptedFS{file: file})

	f, err := d.Create(ctx, "/f", driver.FlagWriteOnly)
	require.NoError(t, err)

	assert.ErrorIs(t, d.Close(ctx, f), driver.ErrClose)
}

func TestClose_HandleUnusableAfterwards(t *testing.T) {
	ctx := context.Background()
	d, _ := newScriptedDriver(t, driver.XferHints{}, &scriptedFS{file: &scriptedFile{}})

	f, err := d.Create(ctx, "/f", driver.FlagWriteOnly)
	require.NoError(t, err)
	require.NoError(t, d.Close(ctx, f))

	assert.ErrorIs(t, d.Close(ctx, f), driver.ErrBadHandle)
	_, err = d.Xfer(ctx, driver.Write, f, []byte("x"), 0)
	assert.ErrorIs(t, err, driver.ErrBadHandle)
}

type foreignFile struct{}

func (foreignFile) Path() string { return "/elsewhere" }

func TestBadHandle(t *testing.T) {
	d, _ := newScriptedDriver(t, driver.XferHints{}, &scriptedFS{file: &scriptedFile{}})

	_, err := d.Xfer(context.Background(), driver.Read, foreignFile{}, make([]byte, 1), 0)
	assert.ErrorIs(t, err, driver.ErrBadHandle)
	assert.ErrorIs(t, d.Fsync(context.Background(), nil), driver.ErrBadHandle)
}

func TestDelete_FailureWarnsOnly(t *testing.T) {
	fs := &scriptedFS{deleteErr: remote.ErrNotFound}
	d, _ := newScriptedDriver(t, driver.XferHints{}, fs)
	warnings := captureWarnings(t)

	assert.NoError(t, d.Delete(context.Background(), "/gone"))
	assert.Equal(t, []string{"/gone"}, fs.deletes)
	assert.Contains(t, warnings.String(), `[RANK 000]: delete of file "/gone" failed`)
}

func TestDelete_NoConnection(t *testing.T) {
	conn := &countingConnector{err: errors.New("unreachable")}
	d, err := New(Config{
		Options:   &Options{NameNode: "nn1"},
		Group:     singleRank(t),
		Connector: conn.Connect,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, d.Delete(context.Background(), "/f"), driver.ErrNotConnected)
}

func TestGetFileSize(t *testing.T) {
	ctx := context.Background()
	fs := &scriptedFS{size: 4096}
	d, _ := newScriptedDriver(t, driver.XferHints{}, fs)

	size, err := d.GetFileSize(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), size)

	fs.statErr = remote.ErrNotFound
	_, err = d.GetFileSize(ctx, "/f")
	assert.ErrorIs(t, err, driver.ErrStat)
}

func TestOptions_TableBoundToDriver(t *testing.T) {
	d, _ := newScriptedDriver(t, driver.XferHints{}, &scriptedFS{})

	require.NoError(t, driver.ApplyAssignment(d.Options(), "hdfs.replicas=3"))
	require.NoError(t, driver.ApplyAssignment(d.Options(), "hdfs.block_size=64m"))
	require.NoError(t, driver.ApplyAssignment(d.Options(), "hdfs.odirect"))

	assert.Equal(t, int64(3), d.opts.Replicas)
	assert.Equal(t, int64(64<<20), d.opts.BlockSize)
	assert.True(t, d.opts.DirectIO)
}

func TestMain(m *testing.M) {
	logger.SetLevel("ERROR")
	os.Exit(m.Run())
}
