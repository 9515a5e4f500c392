// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package safeerr defines the error taxonomy shared by every safebackup
// component.
//
// Every failure surfaced by the safety layer belongs to exactly one kind:
//
//   - ErrInvalidInput: malformed filename or identifier, rejected before any I/O
//   - ErrNotFound: original, backup or restore target is not a regular file
//   - ErrSandboxViolation: path escapes its root, or is itself a symlink
//   - ErrIO: read/write/rename/remove failure
//   - ErrPathResolution: no absolute form could be produced for a path
//
// Callers test the kind with errors.Is and recover the failing path and step
// with errors.As on *Error:
//
//	if errors.Is(err, safeerr.ErrNotFound) {
//	    ...
//	}
//	var opErr *safeerr.Error
//	if errors.As(err, &opErr) {
//	    fmt.Println(opErr.Op, opErr.Path)
//	}
package safeerr

import (
	"errors"
	"fmt"
	"io/fs"
)

// =============================================================================
// Kinds
// =============================================================================

var (
	// ErrInvalidInput indicates a malformed filename or identifier.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates a missing original, backup, or restore target.
	ErrNotFound = errors.New("not found")

	// ErrSandboxViolation indicates a path outside its required root or a symlink.
	ErrSandboxViolation = errors.New("sandbox violation")

	// ErrIO indicates an underlying filesystem failure.
	ErrIO = errors.New("i/o failure")

	// ErrPathResolution indicates a path could not be made absolute.
	ErrPathResolution = errors.New("path resolution failed")
)

// =============================================================================
// Operation Error
// =============================================================================

// Error records a failed operation together with the path and step involved.
//
// # Description
//
// Error is the single concrete error type produced by the safety layer. Kind
// is one of the package sentinels and is matched by errors.Is; Err is the
// underlying cause (often an *fs.PathError) and is reachable by errors.As.
//
// # Example
//
//	err := safeerr.New("backup", "/data/a.txt", safeerr.ErrNotFound, cause)
//	fmt.Println(err) // "backup /data/a.txt: not found: <cause>"
//
// # Thread Safety
//
// Error is immutable after creation.
type Error struct {
	// Op is the operation or step that failed (e.g. "rename", "restore").
	Op string

	// Path is the filesystem path involved, if any.
	Path string

	// Kind is one of the package sentinel errors.
	Kind error

	// Err is the underlying cause (may be nil).
	Err error
}

// Error returns "<op> <path>: <kind>: <cause>", omitting empty parts.
func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// New creates an *Error of the given kind.
func New(op, path string, kind, cause error) *Error {
	return &Error{Op: op, Path: path, Kind: kind, Err: cause}
}

// Invalid creates an ErrInvalidInput error with a formatted reason.
func Invalid(op, path, format string, args ...any) *Error {
	return New(op, path, ErrInvalidInput, fmt.Errorf(format, args...))
}

// Violation creates an ErrSandboxViolation error with a formatted reason.
func Violation(op, path, format string, args ...any) *Error {
	return New(op, path, ErrSandboxViolation, fmt.Errorf(format, args...))
}

// FromFS classifies a filesystem error: fs.ErrNotExist becomes ErrNotFound,
// anything else becomes ErrIO. Errors already carrying a kind pass through.
func FromFS(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}
	if errors.Is(err, fs.ErrNotExist) {
		return New(op, path, ErrNotFound, err)
	}
	return New(op, path, ErrIO, err)
}

// KindOf returns the sentinel kind carried by err, or nil if none.
func KindOf(err error) error {
	for _, kind := range []error{ErrInvalidInput, ErrNotFound, ErrSandboxViolation, ErrPathResolution, ErrIO} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
