// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/KaleiDev/safe-backup-CYB225/cmd/safebackup/config"
	"github.com/KaleiDev/safe-backup-CYB225/cmd/safebackup/internal/telemetry"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/backup"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/logging"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/safeerr"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// app carries the state of one invocation: streams, global flags, and the
// collaborators built from them before any subcommand runs.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// Global flags
	configPath string
	backupDir  string
	logLevel   string
	trace      bool
	metrics    bool

	cfg      config.SafeBackupConfig
	logger   *logging.Logger
	printer  *Printer
	prompter Prompter
	shutdown func(context.Context) error
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:       in,
		out:      out,
		errOut:   errOut,
		logger:   logging.Discard(),
		printer:  NewPrinter(out, errOut),
		prompter: NewPrompter(in, errOut),
	}
}

// newRootCmd builds the full command tree bound to a.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "safebackup",
		Short: "Safe backup, restore and delete for individual files",
		Long: `safebackup keeps timestamped full copies of individual files and
restores or deletes them without ever following symlinks or leaving a
half-written file behind.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.backupDir, "backup-dir", "", "backup directory (default from config, else ./backups)")
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.safebackup/config.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&a.trace, "trace", false, "export OpenTelemetry spans to stderr")
	flags.BoolVar(&a.metrics, "metrics", false, "export OpenTelemetry metrics to stderr on exit")

	root.AddCommand(
		newBackupCmd(a),
		newListCmd(a),
		newRestoreCmd(a),
		newDeleteCmd(a),
		newViewCmd(a),
		newVerifyCmd(a),
		newWatchCmd(a),
		newSandboxCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads configuration and builds the logger and telemetry. Flags win
// over the config file, which wins over defaults.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("backup-dir") {
		cfg.BackupDir = a.backupDir
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.trace {
		cfg.Telemetry.TraceExporter = telemetry.ExporterStdout
	}
	if a.metrics {
		cfg.Telemetry.MetricExporter = telemetry.ExporterStdout
	}
	if cfg.BackupDir == "" {
		return safeerr.Invalid("setup", "", "--backup-dir cannot be empty")
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return safeerr.Invalid("setup", "", "%v", err)
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  logging.ExpandPath(cfg.Logging.Dir),
		Service: "safebackup",
		JSON:    cfg.Logging.JSON,
		Output:  a.errOut,
	}).With("op_id", uuid.NewString(), "command", cmd.CommandPath())

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	tcfg.TraceExporter = cfg.Telemetry.TraceExporter
	tcfg.MetricExporter = cfg.Telemetry.MetricExporter
	tcfg.Writer = a.errOut
	shutdown, err := telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		return err
	}
	a.shutdown = shutdown

	a.logger.Debug("configuration loaded", "config", cfg.Path, "backup_dir", cfg.BackupDir)
	return nil
}

// close flushes telemetry and closes the logger.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
		a.shutdown = nil
	}
	errs = append(errs, a.logger.Close())
	return errors.Join(errs...)
}

// service builds the backup service for the configured root.
func (a *app) service(opts ...backup.Option) (*backup.Service, error) {
	opts = append([]backup.Option{
		backup.WithLogger(a.logger),
		backup.WithStrictRestore(a.cfg.Restore.Strict),
	}, opts...)
	return backup.New(a.cfg.BackupDir, opts...)
}

// usageError marks err as a command-line mistake.
func usageError(err error) error {
	return safeerr.New("usage", "", safeerr.ErrInvalidInput, err)
}

// checkArgs wraps a cobra positional-args validator so its failures map to
// the invalid-input exit code.
func checkArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}
