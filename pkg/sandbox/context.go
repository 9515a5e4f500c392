// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sandbox implements name-keyed backups inside a fixed directory
// tree.
//
// # Layout
//
//	<base>/
//	├── data_test/          primary files (name overridable)
//	├── backups/<name>.bak  one backup per name
//	└── logs/logfile.txt    append-only action log
//
// Callers pass bare file names, never paths. Every name is validated
// lexically first, then each resolved path is checked to be a regular file
// (not a symlink) that canonicalizes inside its subarea. Any failure is
// reported before anything is written.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/atomicfile"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/logging"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/safeerr"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/safepath"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/validation"
)

const (
	// DefaultDataDirName is the data subarea used when none is configured.
	DefaultDataDirName = "data_test"

	// DataDirEnv overrides the data subarea name.
	DataDirEnv = "SAFE_BACKUP_DATA_DIR"

	// BackupsDirName is the backups subarea.
	BackupsDirName = "backups"

	// LogsDirName holds the action log.
	LogsDirName = "logs"

	// LogFileName is the action log's file name.
	LogFileName = "logfile.txt"

	// BackupSuffix is appended to a name to form its backup file.
	BackupSuffix = ".bak"
)

var tracer = otel.Tracer("safebackup.sandbox")

// Option configures a Context.
type Option func(*settings)

type settings struct {
	dataDirName string
	recorder    Recorder
	now         func() time.Time
	logger      *logging.Logger
}

// WithDataDirName sets the data subarea name. It takes precedence over
// SAFE_BACKUP_DATA_DIR.
func WithDataDirName(name string) Option {
	return func(s *settings) {
		s.dataDirName = name
	}
}

// WithRecorder replaces the default file-backed ActionLog.
func WithRecorder(r Recorder) Option {
	return func(s *settings) {
		s.recorder = r
	}
}

// WithClock sets the clock used for action log timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// Context is a sandbox rooted at one base directory.
//
// # Thread Safety
//
// Context is immutable after New. Operations on different names may run
// concurrently; operations on the same name race like any two writers.
type Context struct {
	base       string
	dataDir    string
	backupsDir string
	logPath    string
	recorder   Recorder
	logger     *logging.Logger
}

// New creates (if needed) the sandbox tree under base and returns a Context.
//
// # Description
//
// The data subarea name comes from WithDataDirName, then SAFE_BACKUP_DATA_DIR,
// then DefaultDataDirName, and must itself be a valid file name. The three
// subareas and an empty action log are created.
//
// # Outputs
//
//   - *Context: Ready sandbox
//   - error: safeerr.ErrInvalidInput for a bad data dir name, ErrIO if the
//     tree cannot be created
func New(base string, opts ...Option) (*Context, error) {
	s := settings{now: time.Now, logger: logging.Discard()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.dataDirName == "" {
		s.dataDirName = os.Getenv(DataDirEnv)
	}
	if s.dataDirName == "" {
		s.dataDirName = DefaultDataDirName
	}
	if err := validation.ValidateFilename(s.dataDirName); err != nil {
		return nil, err
	}

	abs, err := safepath.Absolutize(base)
	if err != nil {
		return nil, err
	}
	c := &Context{
		base:       abs,
		dataDir:    filepath.Join(abs, s.dataDirName),
		backupsDir: filepath.Join(abs, BackupsDirName),
		logPath:    filepath.Join(abs, LogsDirName, LogFileName),
		logger:     s.logger,
	}
	for _, dir := range []string{c.dataDir, c.backupsDir, filepath.Dir(c.logPath)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, safeerr.New("create sandbox", dir, safeerr.ErrIO, err)
		}
	}

	actionLog := NewActionLog(c.logPath, s.now)
	if err := actionLog.touch(); err != nil {
		return nil, safeerr.New("create sandbox", c.logPath, safeerr.ErrIO, err)
	}
	c.recorder = actionLog
	if s.recorder != nil {
		c.recorder = s.recorder
	}
	return c, nil
}

// Base returns the absolute sandbox root.
func (c *Context) Base() string { return c.base }

// DataDir returns the absolute data subarea.
func (c *Context) DataDir() string { return c.dataDir }

// BackupsDir returns the absolute backups subarea.
func (c *Context) BackupsDir() string { return c.backupsDir }

// LogPath returns the action log location.
func (c *Context) LogPath() string { return c.logPath }

func (c *Context) dataPath(name string) string {
	return filepath.Join(c.dataDir, name)
}

func (c *Context) backupPath(name string) string {
	return filepath.Join(c.backupsDir, name+BackupSuffix)
}

// =============================================================================
// Operations
// =============================================================================

// BackupFile copies data/<name> to backups/<name>.bak, replacing any
// previous backup of that name, and returns the backup path.
func (c *Context) BackupFile(ctx context.Context, name string) (dst string, err error) {
	ctx, span := startSpan(ctx, "BackupFile", name)
	defer func() { endSpan(span, err) }()

	src, err := c.source(name, c.dataPath, c.dataDir)
	if err != nil {
		return "", err
	}
	dst = c.backupPath(name)
	if err := c.checkTarget(dst, c.backupsDir); err != nil {
		return "", err
	}
	if err := atomicfile.Copy(src, dst); err != nil {
		return "", err
	}
	return dst, c.record(ctx, fmt.Sprintf("backup: %s -> %s", src, dst))
}

// RestoreFile copies backups/<name>.bak over data/<name> and returns the
// restored data path.
func (c *Context) RestoreFile(ctx context.Context, name string) (dst string, err error) {
	ctx, span := startSpan(ctx, "RestoreFile", name)
	defer func() { endSpan(span, err) }()

	src, err := c.source(name, c.backupPath, c.backupsDir)
	if err != nil {
		return "", err
	}
	dst = c.dataPath(name)
	if err := c.checkTarget(dst, c.dataDir); err != nil {
		return "", err
	}
	if err := atomicfile.Overwrite(src, dst); err != nil {
		return "", err
	}
	return dst, c.record(ctx, fmt.Sprintf("restore: %s -> %s", src, dst))
}

// DeleteFile removes data/<name>. The backup, if any, is kept.
func (c *Context) DeleteFile(ctx context.Context, name string) (target string, err error) {
	ctx, span := startSpan(ctx, "DeleteFile", name)
	defer func() { endSpan(span, err) }()

	return c.remove(ctx, name, c.dataPath, c.dataDir)
}

// DeleteBackup removes backups/<name>.bak. The data file, if any, is kept.
func (c *Context) DeleteBackup(ctx context.Context, name string) (target string, err error) {
	ctx, span := startSpan(ctx, "DeleteBackup", name)
	defer func() { endSpan(span, err) }()

	return c.remove(ctx, name, c.backupPath, c.backupsDir)
}

func (c *Context) remove(ctx context.Context, name string, pathFor func(string) string, root string) (string, error) {
	target, err := c.source(name, pathFor, root)
	if err != nil {
		return "", err
	}
	if err := os.Remove(target); err != nil {
		return "", safeerr.FromFS("remove", target, err)
	}
	return target, c.record(ctx, "delete: "+target)
}

// source validates name and returns its path under root, which must be an
// existing regular file inside root.
func (c *Context) source(name string, pathFor func(string) string, root string) (string, error) {
	if err := validation.ValidateFilename(name); err != nil {
		return "", err
	}
	path := pathFor(name)
	if _, err := safepath.RequireRegular(path); err != nil {
		return "", err
	}
	if err := safepath.EnsureWithin(path, root); err != nil {
		return "", err
	}
	return path, nil
}

// checkTarget rejects a destination that is a symlink, is not a regular
// file, or resolves outside root. A missing destination is fine.
func (c *Context) checkTarget(path, root string) error {
	info, err := os.Lstat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return safeerr.FromFS("lstat", path, err)
	case info.Mode()&fs.ModeSymlink != 0:
		return safeerr.Violation("write", path, "symlinks are not allowed")
	case !info.Mode().IsRegular():
		return safeerr.Invalid("write", path, "destination is not a regular file (%s)", info.Mode().Type())
	}
	return safepath.EnsureWithin(path, root)
}

func (c *Context) record(ctx context.Context, action string) error {
	c.logger.DebugContext(ctx, "sandbox action", "action", action)
	if err := c.recorder.Record(action); err != nil {
		return safeerr.New("record action", c.logPath, safeerr.ErrIO, err)
	}
	return nil
}

func startSpan(ctx context.Context, op, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sandbox."+op, trace.WithAttributes(attribute.String("sandbox.name", name)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
