package config

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/dittobench/pkg/driver"
	"github.com/marmos91/dittobench/pkg/driver/hdfs"
	"github.com/marmos91/dittobench/pkg/group"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHDFSOptions(t *testing.T) {
	t.Setenv("USER", "bench")

	opts, err := DecodeHDFSOptions(map[string]any{
		"name_node":      "hdfs://nn:9000",
		"replicas":       "3",
		"block_size":     "128m",
		"odirect":        "true",
		"name_node_port": 0,
	})
	require.NoError(t, err)

	assert.Equal(t, "hdfs://nn:9000", opts.NameNode)
	assert.Equal(t, int64(3), opts.Replicas)
	assert.Equal(t, int64(128<<20), opts.BlockSize)
	assert.True(t, opts.DirectIO)
	assert.Equal(t, "bench", opts.User, "user falls back to $USER")
}

func TestDecodeHDFSOptions_Errors(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
	}{
		{"unknown key", map[string]any{"namenode": "x"}},
		{"bad size", map[string]any{"block_size": "12q"}},
		{"too many replicas", map[string]any{"replicas": 1000}},
		{"bad port", map[string]any{"name_node_port": 70000}},
		{"empty name node", map[string]any{"name_node": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeHDFSOptions(tt.options)
			assert.Error(t, err)
		})
	}
}

func TestBackendOptions_Overrides(t *testing.T) {
	cfg := &BackendConfig{Type: "hdfs", HDFS: map[string]any{"name_node": "nn"}}

	opts, err := BackendOptions(cfg, []string{"hdfs.user=alice", "hdfs.replicas=2", "hdfs.odirect"})
	require.NoError(t, err)
	assert.Equal(t, "alice", opts.User)
	assert.Equal(t, int64(2), opts.Replicas)
	assert.True(t, opts.DirectIO)

	_, err = BackendOptions(cfg, []string{"hdfs.nope=1"})
	assert.ErrorIs(t, err, driver.ErrUnknownOption)

	_, err = BackendOptions(cfg, []string{"hdfs.replicas=9999"})
	assert.Error(t, err)

	_, err = BackendOptions(&BackendConfig{Type: "posix"}, nil)
	assert.Error(t, err)
}

func TestCreateDriver(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Run.FilePerProc = true
	cfg.Run.TransferSize = 4096
	cfg.Run.SingleXferAttempt = true

	base, err := BackendOptions(&cfg.Backend, []string{"hdfs.name_node=mem://factories"})
	require.NoError(t, err)

	err = RunGroup(context.Background(), &GroupConfig{Type: "local", Size: 2}, nil, func(ctx context.Context, g group.Group) error {
		d, err := CreateDriver(cfg, base, g, nil)
		if err != nil {
			return err
		}
		hd, ok := d.(*hdfs.Driver)
		if !ok {
			return errors.New("expected an hdfs driver")
		}
		if !hd.Hints().FilePerProc || hd.Hints().TransferSize != 4096 || !hd.Hints().SingleXferAttempt {
			return errors.New("hints not propagated")
		}
		return d.Shutdown(ctx)
	})
	require.NoError(t, err)
}

func TestRunGroup_Local(t *testing.T) {
	var (
		mu    sync.Mutex
		ranks = map[int]bool{}
	)

	err := RunGroup(context.Background(), &GroupConfig{Type: "local", Size: 3}, nil, func(ctx context.Context, g group.Group) error {
		mu.Lock()
		ranks[g.Rank()] = true
		mu.Unlock()
		return g.Barrier(ctx)
	})
	require.NoError(t, err)
	assert.Len(t, ranks, 3)
}

func TestRunGroup_Unknown(t *testing.T) {
	err := RunGroup(context.Background(), &GroupConfig{Type: "mpi", Size: 1}, nil, func(context.Context, group.Group) error {
		return nil
	})
	assert.Error(t, err)
}

func TestRunnerConfig(t *testing.T) {
	id := uuid.New()
	run := RunConfig{ID: id.String(), TestFile: "/f", TransferSize: 1, BlockSize: 2, Segments: 3, Check: true, FilePerProc: true}

	rc, err := RunnerConfig(&run)
	require.NoError(t, err)
	assert.Equal(t, id, rc.RunID)
	assert.Equal(t, 3, rc.Segments)
	assert.True(t, rc.Check)

	run.ID = ""
	rc, err = RunnerConfig(&run)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, rc.RunID)

	run.ID = "garbage"
	_, err = RunnerConfig(&run)
	assert.Error(t, err)
}

func TestOpenResultStore(t *testing.T) {
	ctx := context.Background()
	cfg := GetDefaultConfig()
	cfg.Results.Path = t.TempDir()

	store, err := OpenResultStore(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.NoError(t, store.Close())

	cfg.Group = GroupConfig{Type: "tcp", Size: 2, Rank: 1, Coordinator: "x:1"}
	store, err = OpenResultStore(ctx, cfg)
	require.NoError(t, err)
	assert.Nil(t, store, "only rank 0 records")

	cfg.Results.Enabled = false
	cfg.Group = GroupConfig{Type: "local", Size: 1}
	store, err = OpenResultStore(ctx, cfg)
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	result := InitializeMetrics(GetDefaultConfig())

	assert.Nil(t, result.Server)
	assert.Equal(t, driver.NoopMetrics{}, result.DriverMetrics)
	assert.NotNil(t, result.RunMetrics)
}
