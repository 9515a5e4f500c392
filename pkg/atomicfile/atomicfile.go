// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package atomicfile writes files so that readers never observe a partial
// result.
//
// # Algorithm
//
// Every write follows the same steps:
//
//  1. Create the destination's parent directory if needed.
//  2. Create a temporary file in that same directory, so the final step is a
//     rename on one filesystem rather than a cross-device copy.
//  3. Stream all bytes into the temporary file, fsync it, set its mode, close it.
//  4. Rename the temporary file onto the destination (or hard-link it, when
//     the destination must not be replaced).
//
// The destination path is never opened for writing. If anything fails before
// step 4 the temporary file is removed and the destination keeps its previous
// state, whether that was "absent" or some earlier content.
//
// # Thread Safety
//
// Functions are safe to call concurrently for different destinations. No
// locking is performed between processes writing the same destination; the
// last rename wins.
package atomicfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/safeerr"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/safepath"
)

// TempPattern is the os.CreateTemp pattern for in-flight files. The leading
// dot keeps them out of catalog scans.
const TempPattern = ".safebackup-*.tmp"

// DefaultPerm is the mode given to files written from a plain reader.
const DefaultPerm fs.FileMode = 0o600

// ErrExists indicates a no-replace write found the destination already present.
var ErrExists = errors.New("atomicfile: destination already exists")

// =============================================================================
// Options
// =============================================================================

type options struct {
	perm      fs.FileMode
	noReplace bool
}

// Option configures a write.
type Option func(*options)

// WithPerm sets the destination file mode.
// Copy defaults to the source file's permission bits; WriteReader to DefaultPerm.
func WithPerm(perm fs.FileMode) Option {
	return func(o *options) {
		o.perm = perm.Perm()
	}
}

// WithNoReplace makes the write fail with ErrExists instead of replacing an
// existing destination.
func WithNoReplace() Option {
	return func(o *options) {
		o.noReplace = true
	}
}

func buildOptions(defaultPerm fs.FileMode, opts []Option) options {
	o := options{perm: defaultPerm}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// =============================================================================
// Operations
// =============================================================================

// Copy atomically copies the regular file src onto dst.
//
// # Description
//
// src is opened without following a symlinked leaf. dst ends up either
// untouched or holding exactly the bytes of src.
//
// # Inputs
//
//   - src: Existing regular file to read
//   - dst: Destination path; its parent is created if missing
//   - opts: WithPerm, WithNoReplace
//
// # Outputs
//
//   - error: safeerr.ErrNotFound if src is missing or not a regular file,
//     safeerr.ErrIO for any write/rename failure
//
// # Example
//
//	if err := atomicfile.Copy(original, stored, atomicfile.WithNoReplace()); err != nil {
//	    return fmt.Errorf("backing up %s: %w", original, err)
//	}
func Copy(src, dst string, opts ...Option) error {
	f, err := safepath.OpenNoFollow(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return safeerr.FromFS("stat", src, err)
	}
	if !info.Mode().IsRegular() {
		return safeerr.New("copy", src, safeerr.ErrNotFound, fmt.Errorf("not a regular file (%s)", info.Mode().Type()))
	}

	o := buildOptions(info.Mode().Perm(), opts)
	_, err = write(f, dst, o)
	return err
}

// Overwrite atomically replaces target with the contents of src.
//
// It is the same algorithm as Copy; the separate name marks restore call
// sites, where replacing an existing file is the intent.
func Overwrite(src, target string, opts ...Option) error {
	return Copy(src, target, opts...)
}

// WriteReader atomically writes everything r yields to dst and returns the
// number of bytes written.
//
// If r returns an error before EOF, the partial temporary file is discarded
// and dst is left as it was.
func WriteReader(r io.Reader, dst string, opts ...Option) (int64, error) {
	return write(r, dst, buildOptions(DefaultPerm, opts))
}

// write implements the temp-file-then-rename sequence.
func write(r io.Reader, dst string, o options) (int64, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, safeerr.New("create parent", dir, safeerr.ErrIO, err)
	}

	// Same directory as dst so the rename never crosses devices.
	tmp, err := os.CreateTemp(dir, TempPattern)
	if err != nil {
		return 0, safeerr.New("create temp", dir, safeerr.ErrIO, err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()        //nolint:errcheck // already failing
			_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		}
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return 0, safeerr.New("copy", dst, safeerr.ErrIO, err)
	}
	if err := tmp.Chmod(o.perm); err != nil {
		return 0, safeerr.New("chmod", tmpPath, safeerr.ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, safeerr.New("sync", tmpPath, safeerr.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, safeerr.New("close", tmpPath, safeerr.ErrIO, err)
	}

	if o.noReplace {
		err = commitNoReplace(tmpPath, dst)
	} else {
		err = os.Rename(tmpPath, dst)
		if err != nil {
			err = safeerr.New("rename", dst, safeerr.ErrIO, err)
		}
	}
	if err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		committed = true
		return 0, err
	}
	committed = true

	syncDir(dir)
	return n, nil
}

// commitNoReplace publishes tmpPath at dst only if dst does not exist.
//
// A hard link fails atomically when dst exists. Filesystems without hard
// links fall back to an existence check followed by rename.
func commitNoReplace(tmpPath, dst string) error {
	err := os.Link(tmpPath, dst)
	if err == nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // dst already holds the content
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return safeerr.New("link", dst, safeerr.ErrIO, ErrExists)
	}

	if _, statErr := os.Lstat(dst); statErr == nil {
		return safeerr.New("link", dst, safeerr.ErrIO, ErrExists)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return safeerr.New("rename", dst, safeerr.ErrIO, err)
	}
	return nil
}

// syncDir flushes directory metadata so the rename survives a crash.
// Not every platform supports syncing a directory handle; failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync() //nolint:errcheck // best-effort durability
	_ = d.Close()
}
