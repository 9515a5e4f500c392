// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/backup"
)

// errDeclined is returned when the user answers no to a confirmation.
var errDeclined = errors.New("cancelled by user")

func newBackupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup PATH",
		Short: "Store a timestamped full copy of a file",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			res, err := svc.Backup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.printBackedUp(res)
			return nil
		},
	}
}

func (a *app) printBackedUp(res backup.BackupResult) {
	a.printer.Result("BACKED UP", "id=%s path=%s size=%dB sha256=%s",
		res.Entry.Name, res.Entry.Path, res.Entry.Size, res.Checksum)
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list PATH",
		Short: "List the backups of a file, oldest first",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			original := args[0]
			listings, err := svc.List(cmd.Context(), original)
			if err != nil {
				return err
			}
			if len(listings) == 0 {
				a.printer.Line("No backups found for %s", original)
				return nil
			}
			for _, l := range listings {
				a.printer.Line("id=%s size=%dB sha256=%s backup=%s original=%s",
					l.Entry.Name, l.Entry.Size, l.Checksum, l.Entry.Path, original)
			}
			return nil
		},
	}
}

func newRestoreCmd(a *app) *cobra.Command {
	var (
		id     string
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "restore PATH",
		Short: "Restore the latest (or a specific) backup over the original",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []backup.Option
			if cmd.Flags().Changed("strict") {
				opts = append(opts, backup.WithStrictRestore(strict))
			}
			svc, err := a.service(opts...)
			if err != nil {
				return err
			}
			original := args[0]
			res, err := svc.Restore(cmd.Context(), original, id)
			if err != nil {
				return err
			}
			if res.Foreign {
				a.printer.Warn("backup %s was taken from a different path", res.Entry.Name)
			}
			a.printer.Result("RESTORED", "%s <- %s", original, res.Source)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "backup id to restore (default: latest)")
	cmd.Flags().BoolVar(&strict, "strict", false, "refuse an --id taken from a different path")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Permanently delete one backup",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			id := args[0]
			prompter := a.prompter
			if yes {
				prompter = AutoApprove{}
			}
			ok, err := prompter.Confirm(cmd.Context(), fmt.Sprintf("Delete backup %s?", id))
			if err != nil {
				return err
			}
			if !ok {
				return errDeclined
			}
			res, err := svc.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			a.printer.Result("DELETED", "%s", res.Path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newViewCmd(a *app) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "view PATH",
		Short: "Print a file, or one of its backups, as text",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			res, err := svc.View(cmd.Context(), args[0], id)
			if err != nil {
				return err
			}
			a.printer.Banner("--- BEGIN CONTENTS (%s) ---", res.Path)
			a.printer.Raw(res.Contents + "\n")
			a.printer.Banner("--- END CONTENTS ---")
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "show this backup instead of the original")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	var expect string
	cmd := &cobra.Command{
		Use:   "verify ID",
		Short: "Recompute the checksum of a backup",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			res, err := svc.Verify(cmd.Context(), args[0], expect)
			if err != nil {
				return err
			}
			a.printer.Result("VERIFIED", "id=%s sha256=%s", res.Entry.Name, res.Checksum)
			return nil
		},
	}
	cmd.Flags().StringVar(&expect, "expect", "", "fail unless the checksum equals this hex digest")
	return cmd
}
