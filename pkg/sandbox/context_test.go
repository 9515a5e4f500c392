// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/safeerr"
)

var fixedNow = time.Date(2025, 8, 14, 10, 22, 11, 0, time.UTC)

// memRecorder keeps recorded actions in memory.
type memRecorder struct {
	actions []string
	err     error
}

func (m *memRecorder) Record(action string) error {
	if m.err != nil {
		return m.err
	}
	m.actions = append(m.actions, action)
	return nil
}

func newContext(t *testing.T, opts ...Option) *Context {
	t.Helper()
	t.Setenv(DataDirEnv, "")
	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	c, err := New(base, append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
	require.NoError(t, err)
	return c
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func logLines(t *testing.T, c *Context) []string {
	t.Helper()
	s := strings.TrimRight(readFile(t, c.LogPath()), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// =============================================================================
// New
// =============================================================================

func TestNew_CreatesLayout(t *testing.T) {
	c := newContext(t)

	assert.DirExists(t, filepath.Join(c.Base(), DefaultDataDirName))
	assert.DirExists(t, filepath.Join(c.Base(), BackupsDirName))
	assert.FileExists(t, filepath.Join(c.Base(), LogsDirName, LogFileName))
	assert.Equal(t, filepath.Join(c.Base(), DefaultDataDirName), c.DataDir())
	assert.Empty(t, logLines(t, c))
}

func TestNew_DataDirName(t *testing.T) {
	t.Setenv(DataDirEnv, "from_env")
	base := t.TempDir()

	c, err := New(base)
	require.NoError(t, err)
	assert.Equal(t, "from_env", filepath.Base(c.DataDir()))

	c, err = New(base, WithDataDirName("explicit"))
	require.NoError(t, err)
	assert.Equal(t, "explicit", filepath.Base(c.DataDir()))

	_, err = New(base, WithDataDirName("../escape"))
	assert.ErrorIs(t, err, safeerr.ErrInvalidInput)
}

// =============================================================================
// BackupFile / RestoreFile
// =============================================================================

func TestBackupFile(t *testing.T) {
	ctx := context.Background()
	c := newContext(t)
	src := filepath.Join(c.DataDir(), "sample.txt")
	writeFile(t, src, "Hello world\n")

	dst, err := c.BackupFile(ctx, "sample.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.BackupsDir(), "sample.txt.bak"), dst)
	assert.Equal(t, "Hello world\n", readFile(t, dst))

	lines := logLines(t, c)
	require.Len(t, lines, 1)
	assert.Equal(t, "[2025-08-14T10:22:11Z] backup: "+src+" -> "+dst, lines[0])

	writeFile(t, src, "second")
	_, err = c.BackupFile(ctx, "sample.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", readFile(t, dst))
	assert.Len(t, logLines(t, c), 2)
}

func TestRestoreFile_Overwrites(t *testing.T) {
	ctx := context.Background()
	c := newContext(t)
	orig := filepath.Join(c.DataDir(), "data.txt")
	writeFile(t, orig, "ORIG\n")
	bak := filepath.Join(c.BackupsDir(), "data.txt.bak")
	writeFile(t, bak, "FROM-BAK\n")

	dst, err := c.RestoreFile(ctx, "data.txt")
	require.NoError(t, err)
	assert.Equal(t, orig, dst)
	assert.Equal(t, "FROM-BAK\n", readFile(t, orig))

	lines := logLines(t, c)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], "restore: "+bak+" -> "+orig))
}

func TestRestoreFile_MissingDataIsRecreated(t *testing.T) {
	c := newContext(t)
	writeFile(t, filepath.Join(c.BackupsDir(), "gone.txt.bak"), "back")

	_, err := c.RestoreFile(context.Background(), "gone.txt")
	require.NoError(t, err)
	assert.Equal(t, "back", readFile(t, filepath.Join(c.DataDir(), "gone.txt")))
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newContext(t)
	p := filepath.Join(c.DataDir(), "notes.md")
	writeFile(t, p, "# notes\n")

	_, err := c.BackupFile(ctx, "notes.md")
	require.NoError(t, err)
	_, err = c.DeleteFile(ctx, "notes.md")
	require.NoError(t, err)
	assert.NoFileExists(t, p)

	_, err = c.RestoreFile(ctx, "notes.md")
	require.NoError(t, err)
	assert.Equal(t, "# notes\n", readFile(t, p))
	assert.Len(t, logLines(t, c), 3)
}

// =============================================================================
// Rejections
// =============================================================================

func TestOperations_RejectBadNames(t *testing.T) {
	ctx := context.Background()
	c := newContext(t)
	ops := map[string]func(context.Context, string) (string, error){
		"backup":        c.BackupFile,
		"restore":       c.RestoreFile,
		"delete":        c.DeleteFile,
		"delete-backup": c.DeleteBackup,
	}
	for opName, op := range ops {
		for _, name := range []string{"", ".", "..", "../etc/passwd", "bad/name", `bad\name`, "sp ace"} {
			t.Run(opName+"/"+name, func(t *testing.T) {
				_, err := op(ctx, name)
				assert.ErrorIs(t, err, safeerr.ErrInvalidInput)
			})
		}
	}
	assert.Empty(t, logLines(t, c))
}

func TestOperations_NotFound(t *testing.T) {
	ctx := context.Background()
	c := newContext(t)

	_, err := c.BackupFile(ctx, "missing.txt")
	assert.ErrorIs(t, err, safeerr.ErrNotFound)
	_, err = c.RestoreFile(ctx, "missing.txt")
	assert.ErrorIs(t, err, safeerr.ErrNotFound)
	_, err = c.DeleteFile(ctx, "missing.txt")
	assert.ErrorIs(t, err, safeerr.ErrNotFound)
	_, err = c.DeleteBackup(ctx, "missing.txt")
	assert.ErrorIs(t, err, safeerr.ErrNotFound)

	require.NoError(t, os.Mkdir(filepath.Join(c.DataDir(), "dir"), 0o750))
	_, err = c.BackupFile(ctx, "dir")
	assert.ErrorIs(t, err, safeerr.ErrNotFound)

	assert.Empty(t, logLines(t, c))
}

func TestBackupFile_RejectsSymlinkedData(t *testing.T) {
	ctx := context.Background()
	c := newContext(t)
	secret := filepath.Join(t.TempDir(), "secret.txt")
	writeFile(t, secret, "secret")
	if err := os.Symlink(secret, filepath.Join(c.DataDir(), "innocent.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, err := c.BackupFile(ctx, "innocent.txt")
	assert.ErrorIs(t, err, safeerr.ErrSandboxViolation)
	assert.NoFileExists(t, filepath.Join(c.BackupsDir(), "innocent.txt.bak"))
	assert.Empty(t, logLines(t, c))
}

func TestRestoreFile_RejectsSymlinkedTarget(t *testing.T) {
	ctx := context.Background()
	c := newContext(t)
	outside := filepath.Join(t.TempDir(), "outside.txt")
	writeFile(t, outside, "untouched")
	writeFile(t, filepath.Join(c.BackupsDir(), "data.txt.bak"), "payload")
	if err := os.Symlink(outside, filepath.Join(c.DataDir(), "data.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, err := c.RestoreFile(ctx, "data.txt")
	assert.ErrorIs(t, err, safeerr.ErrSandboxViolation)
	assert.Equal(t, "untouched", readFile(t, outside))
}

func TestBackupFile_SymlinkedDataDir(t *testing.T) {
	ctx := context.Background()
	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	elsewhere := t.TempDir()
	writeFile(t, filepath.Join(elsewhere, "x.txt"), "x")
	if err := os.Symlink(elsewhere, filepath.Join(base, "linked")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	c, err := New(base, WithDataDirName("linked"))
	require.NoError(t, err)

	// The data dir itself is the root, so its children are inside it.
	_, err = c.BackupFile(ctx, "x.txt")
	require.NoError(t, err)
}

// =============================================================================
// Delete
// =============================================================================

func TestDeleteFile_KeepsBackup(t *testing.T) {
	ctx := context.Background()
	c := newContext(t)
	writeFile(t, filepath.Join(c.DataDir(), "a.txt"), "a")
	bak, err := c.BackupFile(ctx, "a.txt")
	require.NoError(t, err)

	target, err := c.DeleteFile(ctx, "a.txt")
	require.NoError(t, err)
	assert.NoFileExists(t, target)
	assert.FileExists(t, bak)

	lines := logLines(t, c)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[1], "delete: "+target))
}

func TestDeleteBackup(t *testing.T) {
	ctx := context.Background()
	c := newContext(t)
	writeFile(t, filepath.Join(c.DataDir(), "a.txt"), "a")
	bak, err := c.BackupFile(ctx, "a.txt")
	require.NoError(t, err)

	removed, err := c.DeleteBackup(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, bak, removed)
	assert.NoFileExists(t, bak)
	assert.FileExists(t, filepath.Join(c.DataDir(), "a.txt"))
}

// =============================================================================
// Recorder
// =============================================================================

func TestWithRecorder(t *testing.T) {
	ctx := context.Background()
	rec := &memRecorder{}
	c := newContext(t, WithRecorder(rec))
	writeFile(t, filepath.Join(c.DataDir(), "a.txt"), "a")

	_, err := c.BackupFile(ctx, "a.txt")
	require.NoError(t, err)
	require.Len(t, rec.actions, 1)
	assert.True(t, strings.HasPrefix(rec.actions[0], "backup: "))
	assert.Empty(t, logLines(t, c))
}

func TestRecorderFailure(t *testing.T) {
	ctx := context.Background()
	c := newContext(t, WithRecorder(&memRecorder{err: errors.New("disk full")}))
	writeFile(t, filepath.Join(c.DataDir(), "a.txt"), "a")

	dst, err := c.BackupFile(ctx, "a.txt")
	assert.ErrorIs(t, err, safeerr.ErrIO)
	// The backup itself completed before the record failed.
	assert.FileExists(t, dst)
}

func TestActionLog_AppendsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	a := NewActionLog(path, func() time.Time { return fixedNow })
	b := NewActionLog(path, func() time.Time { return fixedNow.Add(time.Hour) })

	require.NoError(t, a.Record("one"))
	require.NoError(t, b.Record("two"))
	require.NoError(t, a.Record("three"))

	assert.Equal(t,
		"[2025-08-14T10:22:11Z] one\n[2025-08-14T11:22:11Z] two\n[2025-08-14T10:22:11Z] three\n",
		readFile(t, path))
}
