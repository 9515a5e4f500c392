// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package safepath is the path authority for safebackup.
//
// It turns user-supplied paths into absolute and canonical forms, decides
// whether a path lies inside a required root, and refuses symlinked targets.
//
// # Canonicalization
//
// Containment is always decided on canonical paths: both the candidate and
// the root are absolutized and have their symlinks resolved before they are
// compared structurally with filepath.Rel. Comparing raw strings breaks on
// platforms where one directory has several names (macOS /var is
// /private/var), and a root that is itself reached through a symlink must
// still contain its own children.
//
// # Limitations
//
// Checks run immediately before the guarded operation, but a symlink or mount
// can still change between the check and the use. Callers narrow that window
// by opening sources with OpenNoFollow; it is not closed entirely.
package safepath

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/safeerr"
)

// Absolutize returns the lexical absolute form of path.
//
// # Description
//
// The path is joined to the working directory when relative and cleaned.
// Symlinks are not resolved and the path need not exist.
//
// # Outputs
//
//   - string: Absolute, cleaned path
//   - error: safeerr.ErrPathResolution if path is empty or the working
//     directory cannot be determined
func Absolutize(path string) (string, error) {
	if path == "" {
		return "", safeerr.New("absolutize", path, safeerr.ErrPathResolution, errors.New("empty path"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", safeerr.New("absolutize", path, safeerr.ErrPathResolution, err)
	}
	return abs, nil
}

// Canonicalize returns the absolute path with every symlink and ".." resolved.
//
// # Description
//
// When the path does not exist, the nearest existing ancestor is resolved
// and the missing tail is re-attached, so canonical forms can be computed
// for destinations that are about to be created.
//
// # Outputs
//
//   - string: Canonical path
//   - error: safeerr.ErrPathResolution if resolution fails for a reason other
//     than a missing tail, safeerr.ErrSandboxViolation if a component is a
//     symlink whose target does not exist
func Canonicalize(path string) (string, error) {
	abs, err := Absolutize(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", safeerr.New("canonicalize", abs, safeerr.ErrPathResolution, err)
	}

	// Walk up to the nearest existing ancestor. A component that Lstat can
	// see but EvalSymlinks cannot is a dangling link, not a missing tail.
	current := abs
	var missing []string
	for {
		if _, err := os.Lstat(current); err == nil {
			return "", safeerr.Violation("canonicalize", abs, "%s is a dangling symlink", current)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", safeerr.New("canonicalize", abs, safeerr.ErrPathResolution, err)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent

		realParent, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				realParent = filepath.Join(realParent, missing[i])
			}
			return realParent, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", safeerr.New("canonicalize", abs, safeerr.ErrPathResolution, err)
		}
	}
}

// EnsureWithin succeeds only if candidate canonicalizes to root or a
// descendant of root.
//
// # Description
//
// Both sides are canonicalized before comparison. The comparison is
// structural: the relative path from root to candidate must not climb out
// of root.
//
// # Inputs
//
//   - candidate: Path about to be read or written
//   - root: Directory the candidate must stay inside
//
// # Outputs
//
//   - error: safeerr.ErrSandboxViolation on escape, or a resolution error
//
// # Example
//
//	if err := safepath.EnsureWithin(stored, backupRoot); err != nil {
//	    return err // backup file is outside the backup directory
//	}
func EnsureWithin(candidate, root string) error {
	realRoot, err := Canonicalize(root)
	if err != nil {
		return err
	}
	realCandidate, err := Canonicalize(candidate)
	if err != nil {
		return err
	}
	if !contains(realRoot, realCandidate) {
		return safeerr.Violation("ensure within", candidate, "%s escapes %s", realCandidate, realRoot)
	}
	return nil
}

// RejectSymlink fails if path itself is a symlink.
//
// Only the path's own metadata is inspected; the link target is never
// followed. A missing path is reported as safeerr.ErrNotFound.
func RejectSymlink(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return safeerr.FromFS("lstat", path, err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return safeerr.Violation("reject symlink", path, "symlinks are not allowed")
	}
	return nil
}

// RequireRegular returns the metadata of path if it is a regular file that is
// not a symlink.
//
// Missing paths and non-regular files (directories, devices, sockets) are
// reported as safeerr.ErrNotFound; a symlink is a sandbox violation.
func RequireRegular(path string) (fs.FileInfo, error) {
	if err := RejectSymlink(path); err != nil {
		return nil, err
	}
	info, err := os.Lstat(path)
	if err != nil {
		return nil, safeerr.FromFS("lstat", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, safeerr.New("lstat", path, safeerr.ErrNotFound, fmt.Errorf("not a regular file (%s)", info.Mode().Type()))
	}
	return info, nil
}

// contains reports whether path equals root or lies beneath it.
func contains(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || filepath.IsLocal(rel)
}
