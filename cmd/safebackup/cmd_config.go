// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/KaleiDev/safe-backup-CYB225/cmd/safebackup/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
		// Skips the root setup so a broken config file can be replaced.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.configTarget()
			if err != nil {
				return err
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			a.printer.Result("WROTE", "%s", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "replace an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd, nil); err != nil {
				return err
			}
			data, err := config.Marshal(a.cfg)
			if err != nil {
				return err
			}
			a.printer.Raw(string(data))
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

// configTarget is --config, else $SAFE_BACKUP_CONFIG, else the default path.
func (a *app) configTarget() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	if p := os.Getenv(config.ConfigEnv); p != "" {
		return p, nil
	}
	return config.DefaultPath()
}
