// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/sandbox"
)

// sandboxFlags are shared by every sandbox subcommand.
type sandboxFlags struct {
	base    string
	dataDir string
}

func (a *app) sandbox(f *sandboxFlags) (*sandbox.Context, error) {
	base := a.cfg.Sandbox.BaseDir
	if f.base != "" {
		base = f.base
	}
	name := a.cfg.Sandbox.DataDirName
	if f.dataDir != "" {
		name = f.dataDir
	}
	return sandbox.New(base,
		sandbox.WithDataDirName(name),
		sandbox.WithLogger(a.logger),
	)
}

func newSandboxCmd(a *app) *cobra.Command {
	f := &sandboxFlags{}
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Name-keyed backups inside a fixed directory tree",
		Long: `Operate on bare file names inside a sandbox:

  <base>/data_test/         primary files
  <base>/backups/NAME.bak   one backup per name
  <base>/logs/logfile.txt   action log

Names may only contain ASCII letters, digits, '.', '-' and '_'.`,
	}
	cmd.PersistentFlags().StringVar(&f.base, "base", "", "sandbox base directory (default from config, else .)")
	cmd.PersistentFlags().StringVar(&f.dataDir, "data-dir", "", "data subdirectory name (default data_test)")

	type action struct {
		use   string
		short string
		label string
		run   func(*sandbox.Context, context.Context, string) (string, error)
	}
	actions := []action{
		{"backup NAME", "Copy data/NAME to backups/NAME.bak", "BACKED UP", (*sandbox.Context).BackupFile},
		{"restore NAME", "Copy backups/NAME.bak over data/NAME", "RESTORED", (*sandbox.Context).RestoreFile},
		{"delete NAME", "Remove data/NAME", "DELETED", (*sandbox.Context).DeleteFile},
		{"delete-backup NAME", "Remove backups/NAME.bak", "DELETED", (*sandbox.Context).DeleteBackup},
	}
	for _, act := range actions {
		act := act
		cmd.AddCommand(&cobra.Command{
			Use:   act.use,
			Short: act.short,
			Args:  checkArgs(cobra.ExactArgs(1)),
			RunE: func(cmd *cobra.Command, args []string) error {
				sb, err := a.sandbox(f)
				if err != nil {
					return err
				}
				path, err := act.run(sb, cmd.Context(), args[0])
				if err != nil {
					return err
				}
				a.printer.Result(act.label, "%s", path)
				return nil
			},
		})
	}
	return cmd
}
