package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/marmos91/dittobench/internal/logger"
	"github.com/marmos91/dittobench/pkg/config"
	"github.com/marmos91/dittobench/pkg/driver"
	"github.com/marmos91/dittobench/pkg/group"
	"github.com/marmos91/dittobench/pkg/results"
	"github.com/marmos91/dittobench/pkg/runner"
)

// assignments collects repeated -o flags.
type assignments []string

func (a *assignments) String() string {
	return strings.Join(*a, ",")
}

func (a *assignments) Set(value string) error {
	*a = append(*a, value)
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dittobench: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var overrides assignments

	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/dittobench/config.yaml)")
	initConfig := flag.Bool("init", false, "Write a sample config file and exit")
	force := flag.Bool("force", false, "Overwrite an existing config file with -init")
	listOptions := flag.Bool("list-options", false, "Print the backend options and exit")
	logLevel := flag.String("log-level", "", "Override logging.level (DEBUG, INFO, WARN, ERROR)")
	flag.Var(&overrides, "o", "Backend option as name=value, e.g. -o hdfs.user=bench (repeatable)")
	flag.Parse()

	if *initConfig {
		return writeSampleConfig(*configPath, *force)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	closeLog, err := configureLogging(&cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()
	if cfg.Group.Type == "tcp" {
		logger.SetRank(cfg.Group.Rank)
	}

	base, err := config.BackendOptions(&cfg.Backend, overrides)
	if err != nil {
		return err
	}
	if *listOptions {
		printOptions(os.Stdout, base.Table())
		return nil
	}
	for _, w := range config.Warnings(cfg, base) {
		logger.Warn("%s", w)
	}

	rc, err := config.RunnerConfig(&cfg.Run)
	if err != nil {
		return err
	}
	if rc.RunID == uuid.Nil {
		rc.RunID = uuid.New()
	}
	rc.DirectIO = base.DirectIO

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := config.InitializeMetrics(cfg)
	if m.Server != nil {
		go func() {
			if err := m.Server.Start(ctx); err != nil {
				logger.Error("metrics server: %v", err)
			}
		}()
		defer func() { _ = m.Server.Stop(context.Background()) }()
	}

	store, err := config.OpenResultStore(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("closing result store: %v", err)
			}
		}()
	}

	logger.Info("dittobench run %s: backend=%s ranks=%d test_file=%s transfer=%d block=%d segments=%d",
		rc.RunID, cfg.Backend.Type, cfg.Group.Size, rc.TestFile, rc.TransferSize, rc.BlockSize, rc.Segments)

	onAbort := func(code int) {
		logger.Error("process group aborted with status %d", code)
		os.Exit(code)
	}

	return config.RunGroup(ctx, &cfg.Group, onAbort, func(ctx context.Context, g group.Group) error {
		drv, err := config.CreateDriver(cfg, base, g, m.DriverMetrics)
		if err != nil {
			return err
		}
		defer func() { _ = drv.Shutdown(ctx) }()

		opts := []runner.Option{runner.WithMetrics(m.RunMetrics)}
		if store != nil && g.Rank() == 0 {
			opts = append(opts, runner.WithRecorder(store))
		}

		r, err := runner.New(drv, g, rc, opts...)
		if err != nil {
			return err
		}

		records, err := r.Run(ctx)
		if g.Rank() == 0 {
			printSummary(os.Stdout, records)
		}
		if errors.Is(err, context.Canceled) {
			logger.Warn("run interrupted")
		}
		return err
	})
}

func writeSampleConfig(path string, force bool) error {
	if path == "" {
		written, err := config.InitConfig(force)
		if err != nil {
			return err
		}
		path = written
	} else if err := config.InitConfigToPath(path, force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

// configureLogging applies the logging section and returns a function that
// closes the log file, if one was opened.
func configureLogging(cfg *config.LoggingConfig) (func(), error) {
	logger.SetLevel(cfg.Level)
	logger.SetFormat(cfg.Format)

	switch cfg.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.SetOutput(f)
		return func() { _ = f.Close() }, nil
	}
	return func() {}, nil
}

func printOptions(w io.Writer, table []driver.Option) {
	for _, opt := range table {
		fmt.Fprintf(w, "  %-20s %-6s %-20s (current: %s)\n", opt.Name, opt.Kind, opt.Help, opt.Get())
	}
}

func printSummary(w io.Writer, records []*results.Record) {
	if len(records) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%-8s %14s %10s %12s\n", "access", "bytes", "seconds", "MiB/s")
	for _, rec := range records {
		status := ""
		if rec.Error != "" {
			status = "  FAILED: " + rec.Error
		}
		fmt.Fprintf(w, "%-8s %14d %10.3f %12.2f%s\n", rec.Phase, rec.Bytes, rec.Seconds, rec.MiBPerSecond(), status)
	}
	fmt.Fprintf(w, "run id: %s\n", records[0].RunID)
}
