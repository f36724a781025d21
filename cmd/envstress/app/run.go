// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stacklok/syncenv/env"
	"github.com/stacklok/syncenv/exitcode"
	"github.com/stacklok/syncenv/logger"
	"github.com/stacklok/syncenv/logging"
	"github.com/stacklok/syncenv/metrics"
	"github.com/stacklok/syncenv/stress"
)

type runOptions struct {
	workers     int
	readers     int
	iterations  int
	duration    time.Duration
	rate        float64
	backend     string
	mode        string
	valueSize   int
	configPath  string
	metricsFile string
	debug       bool
	noColor     bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	defaults := stress.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the concurrent consistency check",
		Long: `Run drives workers through set, get, remove, get cycles on their own
variables while readers enumerate the table, then reports latency percentiles
and any consistency violations.

Examples:
  # In-memory table, eight workers
  envstress run

  # The real process environment, 32 workers for 30 seconds
  envstress run --backend os --workers 32 --duration 30s

  # A private table under a single exclusive lock
  envstress run --mode exclusive

  # Export Prometheus metrics for the run
  envstress run --metrics-file /tmp/envstress.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStress(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.workers, "workers", "w", defaults.Workers, "Writer goroutines, one variable each")
	f.IntVar(&opts.readers, "readers", defaults.Readers, "Goroutines enumerating the table")
	f.IntVarP(&opts.iterations, "iterations", "n", defaults.Iterations, "Cycles per worker")
	f.DurationVarP(&opts.duration, "duration", "d", 0, "Stop after this long (0 for no limit)")
	f.Float64VarP(&opts.rate, "rate", "r", 0, "Total cycles per second (0 for unlimited)")
	f.StringVar(&opts.backend, "backend", string(defaults.Backend), "Table to exercise: os or map")
	f.StringVar(&opts.mode, "mode", defaults.Mode.String(), "Lock mode for private tables: rw or exclusive")
	f.IntVar(&opts.valueSize, "value-size", defaults.ValueSize, "Padding bytes per value")
	f.StringVarP(&opts.configPath, "config", "c", "", "Config file (default: $XDG_CONFIG_HOME/syncenv/stress.yaml)")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	f.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	f.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	return cmd
}

func runStress(cmd *cobra.Command, opts *runOptions) error {
	logger.Initialize(logger.DebugFlag(opts.debug))
	defer logger.Sync()

	cfg, err := opts.config(cmd.Flags())
	if err != nil {
		return err
	}

	logOpts, err := logging.FromEnv(env.Default())
	if err != nil {
		return exitcode.WithCode(err, exitcode.ConfigError)
	}
	logOpts = append(logOpts, logging.WithOutput(cmd.ErrOrStderr()))
	if opts.debug {
		logOpts = append(logOpts, logging.WithLevel(slog.LevelDebug))
	}

	reg := prometheus.NewRegistry()
	observer, err := metrics.NewObserver("envstress", reg)
	if err != nil {
		return err
	}
	acc := cfg.NewAccessor(env.WithLogger(logging.New(logOpts...)), env.WithObserver(observer))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infow("starting stress run",
		"backend", cfg.Backend,
		"mode", acc.Mode().String(),
		"workers", cfg.Workers,
		"readers", cfg.Readers,
		"iterations", cfg.Iterations,
	)

	res, err := stress.Run(ctx, acc, cfg)
	if err != nil {
		return fmt.Errorf("stress run failed: %w", err)
	}
	logger.Debugw("stress run finished", "run_id", res.RunID, "ops", res.Ops, "violations", res.Violations)

	stress.NewReporter(cmd.OutOrStdout(), !opts.noColor && !color.NoColor).Result(res)

	if opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, reg); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	if !res.Passed() {
		return exitcode.Errorf(exitcode.Violations, "%d consistency violation(s)", res.Violations)
	}
	return nil
}

// config layers the file, ENVSTRESS_* variables and explicitly set flags.
func (o *runOptions) config(flags *pflag.FlagSet) (*stress.Config, error) {
	path, missingOK := o.configPath, false
	if path == "" {
		path, missingOK = stress.DefaultConfigPath(), true
	}

	cfg, err := stress.LoadConfig(path, missingOK)
	if err != nil {
		return nil, exitcode.WithCode(err, exitcode.ConfigError)
	}
	if err := cfg.ApplyEnv(env.Default()); err != nil {
		return nil, exitcode.WithCode(err, exitcode.ConfigError)
	}

	if flags.Changed("workers") {
		cfg.Workers = o.workers
	}
	if flags.Changed("readers") {
		cfg.Readers = o.readers
	}
	if flags.Changed("iterations") {
		cfg.Iterations = o.iterations
	}
	if flags.Changed("duration") {
		cfg.Duration = o.duration
	}
	if flags.Changed("rate") {
		cfg.Rate = o.rate
	}
	if flags.Changed("value-size") {
		cfg.ValueSize = o.valueSize
	}
	if flags.Changed("backend") {
		b, err := stress.ParseBackend(o.backend)
		if err != nil {
			return nil, exitcode.Errorf(exitcode.ConfigError, "--backend: %w", err)
		}
		cfg.Backend = b
	}
	if flags.Changed("mode") {
		m, err := stress.ParseMode(o.mode)
		if err != nil {
			return nil, exitcode.Errorf(exitcode.ConfigError, "--mode: %w", err)
		}
		cfg.Mode = m
	}

	if err := cfg.Validate(); err != nil {
		return nil, exitcode.Errorf(exitcode.ConfigError, "invalid configuration: %w", err)
	}
	return cfg, nil
}
