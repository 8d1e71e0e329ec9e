package config

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/marmos91/dittobench/internal/logger"
	"github.com/marmos91/dittobench/pkg/driver"
	"github.com/marmos91/dittobench/pkg/driver/hdfs"
	"github.com/marmos91/dittobench/pkg/group"
	"github.com/marmos91/dittobench/pkg/group/local"
	"github.com/marmos91/dittobench/pkg/group/tcp"
	"github.com/marmos91/dittobench/pkg/results"
	"github.com/marmos91/dittobench/pkg/runner"
	"github.com/mitchellh/mapstructure"
)

// DecodeHDFSOptions decodes the hdfs option map on top of the driver's
// defaults and validates the result.
//
// Values are weakly typed, so "8020" is accepted for an integer and "true"
// for a flag. Integer options also accept a binary size suffix, so
// block_size: 64m is 64 MiB. Unknown keys are rejected.
func DecodeHDFSOptions(options map[string]any) (*hdfs.Options, error) {
	opts := hdfs.NewOptions(nil)

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       sizeSuffixHook,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create hdfs options decoder: %w", err)
	}

	if err := decoder.Decode(options); err != nil {
		return nil, fmt.Errorf("failed to decode hdfs options: %w", err)
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// sizeSuffixHook turns "64m" style strings into int64 values.
func sizeSuffixHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Int64 {
		return data, nil
	}
	return driver.ParseSize(data.(string))
}

// BackendOptions decodes the options of the configured backend and applies
// "name=value" overrides (the -o flags) through the backend's option table.
func BackendOptions(cfg *BackendConfig, overrides []string) (*hdfs.Options, error) {
	switch cfg.Type {
	case "hdfs":
		opts, err := DecodeHDFSOptions(cfg.HDFS)
		if err != nil {
			return nil, err
		}
		table := opts.Table()
		for _, o := range overrides {
			if err := driver.ApplyAssignment(table, o); err != nil {
				return nil, err
			}
		}
		if err := opts.Validate(); err != nil {
			return nil, err
		}
		return opts, nil
	default:
		return nil, fmt.Errorf("unknown backend type: %q", cfg.Type)
	}
}

// CreateDriver creates the driver for one rank.
//
// Every rank gets its own copy of base, so ranks of a local group do not
// share a connection.
func CreateDriver(cfg *Config, base *hdfs.Options, g group.Group, m driver.Metrics) (driver.Driver, error) {
	switch cfg.Backend.Type {
	case "hdfs":
		d, err := hdfs.New(hdfs.Config{
			Options: hdfs.NewOptions(base),
			Hints:   XferHints(&cfg.Run),
			Group:   g,
			Metrics: m,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create hdfs driver: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown backend type: %q", cfg.Backend.Type)
	}
}

// XferHints extracts the driver hints from the run configuration.
func XferHints(run *RunConfig) driver.XferHints {
	return driver.XferHints{
		FilePerProc:       run.FilePerProc,
		TransferSize:      run.TransferSize,
		FsyncPerWrite:     run.FsyncPerWrite,
		SingleXferAttempt: run.SingleXferAttempt,
	}
}

// RunnerConfig converts the run configuration for pkg/runner.
func RunnerConfig(run *RunConfig) (runner.Config, error) {
	var id uuid.UUID
	if run.ID != "" {
		parsed, err := uuid.Parse(run.ID)
		if err != nil {
			return runner.Config{}, fmt.Errorf("run: invalid id %q: %w", run.ID, err)
		}
		id = parsed
	}

	return runner.Config{
		RunID:             id,
		TestFile:          run.TestFile,
		FilePerProc:       run.FilePerProc,
		TransferSize:      run.TransferSize,
		BlockSize:         run.BlockSize,
		Segments:          run.Segments,
		Fsync:             run.Fsync,
		Check:             run.Check,
		KeepFile:          run.KeepFile,
		MaxBytesPerSecond: run.MaxBytesPerSecond,
	}, nil
}

// RunGroup joins the configured process group and calls fn once per rank
// this process hosts: every rank for a local group, one for tcp.
//
// onAbort replaces the group's default abort hook when non-nil.
func RunGroup(ctx context.Context, cfg *GroupConfig, onAbort group.AbortFunc, fn func(ctx context.Context, g group.Group) error) error {
	switch cfg.Type {
	case "local":
		var opts []local.Option
		if onAbort != nil {
			opts = append(opts, local.WithAbortFunc(onAbort))
		}
		w, err := local.NewWorld(cfg.Size, opts...)
		if err != nil {
			return err
		}
		return local.Run(ctx, w, fn)

	case "tcp":
		g, err := tcp.Join(ctx, tcp.Config{
			Rank:        cfg.Rank,
			Size:        cfg.Size,
			Address:     cfg.Coordinator,
			DialTimeout: cfg.DialTimeout,
			DialRate:    cfg.DialRate,
			OnAbort:     onAbort,
		})
		if err != nil {
			return fmt.Errorf("failed to join tcp group: %w", err)
		}
		defer func() {
			if err := g.Close(); err != nil {
				logger.Warn("closing tcp group: %v", err)
			}
		}()
		return fn(ctx, g)

	default:
		return fmt.Errorf("unknown group type: %q", cfg.Type)
	}
}

// OpenResultStore opens the result ledger.
//
// Returns nil without error when results are disabled or when this
// process does not host rank 0, which is the only rank that records.
func OpenResultStore(ctx context.Context, cfg *Config) (*results.Store, error) {
	if !cfg.Results.Enabled {
		return nil, nil
	}
	if cfg.Group.Type == "tcp" && cfg.Group.Rank != 0 {
		return nil, nil
	}

	store, err := results.Open(ctx, cfg.Results.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}
	return store, nil
}
