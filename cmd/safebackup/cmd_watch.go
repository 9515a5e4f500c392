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
	"time"

	"github.com/spf13/cobra"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/backup"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		debounce    time.Duration
		minInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch PATH",
		Short: "Back up a file every time it settles after a change",
		Long: `Watch PATH and take a backup each time it changes. Bursts of writes
are coalesced: a backup is taken once the file has been quiet for the
debounce window. Runs until interrupted.`,
		Args: checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &watch.Options{
				Debounce:    a.cfg.Watch.Debounce,
				MinInterval: a.cfg.Watch.MinInterval,
				Logger:      a.logger,
			}
			if cmd.Flags().Changed("debounce") {
				opts.Debounce = debounce
			}
			if cmd.Flags().Changed("min-interval") {
				opts.MinInterval = minInterval
			}
			if opts.Debounce < 0 || opts.MinInterval < 0 {
				return usageError(errors.New("durations cannot be negative"))
			}

			svc, err := a.service()
			if err != nil {
				return err
			}
			w, err := watch.New(args[0], a.backupOnChange(svc), opts)
			if err != nil {
				return err
			}

			a.printer.Result("WATCHING", "%s", w.Target())
			err = w.Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before a backup (default from config, else 500ms)")
	cmd.Flags().DurationVar(&minInterval, "min-interval", 0, "minimum time between two backups (0 = no limit)")
	return cmd
}

// backupOnChange returns a handler that backs up the changed file. A failed
// backup is reported and watching continues.
func (a *app) backupOnChange(svc *backup.Service) watch.Handler {
	return func(ctx context.Context, change watch.Change) {
		if change.Op.Gone() {
			a.logger.InfoContext(ctx, "watched file is gone, waiting for it to return",
				"path", change.Path, "op", change.Op.String())
			return
		}
		res, err := svc.Backup(ctx, change.Path)
		if err != nil {
			a.printer.Warn("backup of %s failed: %v", change.Path, err)
			return
		}
		a.printBackedUp(res)
	}
}
