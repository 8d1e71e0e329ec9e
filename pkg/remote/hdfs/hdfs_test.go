package hdfs

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/marmos91/dittobench/pkg/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientOptions_ExplicitHost(t *testing.T) {
	loc, err := remote.ParseLocation("nn1", 0)
	require.NoError(t, err)

	opts, err := clientOptions(loc, remote.Descriptor{NameNode: "nn1", User: "bench"})
	require.NoError(t, err)

	assert.Equal(t, []string{"nn1:8020"}, opts.Addresses)
	assert.Equal(t, "bench", opts.User)
	assert.NotNil(t, opts.NamenodeDialFunc)
	assert.NotNil(t, opts.DatanodeDialFunc)
}

func TestClientOptions_PortOverride(t *testing.T) {
	loc, err := remote.ParseLocation("hdfs://nn1:8020", 9000)
	require.NoError(t, err)

	opts, err := clientOptions(loc, remote.Descriptor{User: "bench"})
	require.NoError(t, err)
	assert.Equal(t, []string{"nn1:9000"}, opts.Addresses)
}

func TestClientOptions_UserFallback(t *testing.T) {
	loc, err := remote.ParseLocation("nn1:8020", 0)
	require.NoError(t, err)

	opts, err := clientOptions(loc, remote.Descriptor{})
	require.NoError(t, err)
	assert.NotEmpty(t, opts.User)
}

func TestClientOptions_DefaultWithoutConfig(t *testing.T) {
	t.Setenv("HADOOP_CONF_DIR", t.TempDir())
	t.Setenv("HADOOP_HOME", "")

	loc, err := remote.ParseLocation(remote.DefaultNameNode, 0)
	require.NoError(t, err)

	_, err = clientOptions(loc, remote.Descriptor{User: "bench"})
	assert.Error(t, err)
}

func TestConnect_WrongScheme(t *testing.T) {
	_, err := Connect(context.Background(), remote.Descriptor{NameNode: "mem://x"})
	assert.Error(t, err)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not exist", &os.PathError{Op: "stat", Path: "/x", Err: os.ErrNotExist}, remote.ErrNotFound},
		{"exist", &os.PathError{Op: "create", Path: "/x", Err: os.ErrExist}, remote.ErrExists},
		{"not empty", &os.PathError{Op: "remove", Path: "/d", Err: syscall.ENOTEMPTY}, remote.ErrIsDirectory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError("op", "/x", tt.err), tt.want)
		})
	}

	assert.NoError(t, mapError("op", "/x", nil))

	other := errors.New("lease expired")
	assert.ErrorIs(t, mapError("op", "/x", other), other)
}
