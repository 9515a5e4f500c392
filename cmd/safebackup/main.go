// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command safebackup backs up, restores, lists, views and deletes
// timestamped copies of individual files.
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/fingerprint"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/safeerr"
)

// Exit codes.
const (
	exitOK           = 0
	exitFailure      = 1
	exitInvalidInput = 2
	exitNotFound     = 3
	exitViolation    = 4
	exitMismatch     = 5
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs one invocation and returns its exit code.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := newApp(stdin, stdout, stderr)
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(context.WithoutCancel(ctx)); cerr != nil {
		a.printer.Warn("shutdown: %v", cerr)
	}
	if err != nil {
		a.printer.Error(err)
		return exitCode(err)
	}
	return exitOK
}

// exitCode maps an error to the process exit status by kind.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, fingerprint.ErrChecksumMismatch):
		return exitMismatch
	}
	switch safeerr.KindOf(err) {
	case safeerr.ErrInvalidInput:
		return exitInvalidInput
	case safeerr.ErrNotFound:
		return exitNotFound
	case safeerr.ErrSandboxViolation:
		return exitViolation
	default:
		return exitFailure
	}
}
