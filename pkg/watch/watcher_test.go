// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, target string, opts *Options) (<-chan Change, *FileWatcher, <-chan error) {
	t.Helper()
	got := make(chan Change, 16)
	w, err := New(target, func(_ context.Context, c Change) { got <- c }, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()
	return got, w, runErr
}

func TestFileWatcher_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(target, []byte("0"), 0o600))

	got, _, _ := startWatcher(t, target, &Options{Debounce: 200 * time.Millisecond})

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(target, []byte{byte('a' + i)}, 0o600))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case c := <-got:
		abs, err := filepath.Abs(target)
		require.NoError(t, err)
		assert.Equal(t, abs, c.Path)
		assert.False(t, c.Op.Gone())
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}

	select {
	case c := <-got:
		t.Fatalf("burst was delivered more than once: %+v", c)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestFileWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "data.txt")
	got, _, _ := startWatcher(t, target, &Options{Debounce: 20 * time.Millisecond})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600))

	select {
	case c := <-got:
		t.Fatalf("unexpected change for sibling: %+v", c)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFileWatcher_RenameOverTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o600))
	got, _, _ := startWatcher(t, target, &Options{Debounce: 20 * time.Millisecond})

	tmp := filepath.Join(dir, ".data.txt.swp")
	require.NoError(t, os.WriteFile(tmp, []byte("new"), 0o600))
	require.NoError(t, os.Rename(tmp, target))

	select {
	case c := <-got:
		assert.Equal(t, OpCreate, c.Op)
	case <-time.After(5 * time.Second):
		t.Fatal("rename over target was not observed")
	}
}

func TestFileWatcher_StopEndsRun(t *testing.T) {
	target := filepath.Join(t.TempDir(), "data.txt")
	_, w, runErr := startWatcher(t, target, nil)

	w.Stop()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	w.Stop()
}

func TestFileWatcher_CancelEndsRun(t *testing.T) {
	target := filepath.Join(t.TempDir(), "data.txt")
	w, err := New(target, func(context.Context, Change) {}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(w.Run(ctx), context.Canceled))
}

func TestNew_Errors(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing-dir", "f"), func(context.Context, Change) {}, nil)
	assert.Error(t, err)

	_, err = New(filepath.Join(t.TempDir(), "f"), nil, nil)
	assert.Error(t, err)
}

func TestConvertOp(t *testing.T) {
	assert.Equal(t, OpCreate, convertOp(fsnotify.Create))
	assert.Equal(t, OpWrite, convertOp(fsnotify.Write))
	assert.Equal(t, OpRemove, convertOp(fsnotify.Remove))
	assert.Equal(t, OpRename, convertOp(fsnotify.Rename))
	assert.Equal(t, OpChmod, convertOp(fsnotify.Chmod))
	assert.Equal(t, OpRemove, convertOp(fsnotify.Remove|fsnotify.Write))
	assert.Equal(t, "rename", OpRename.String())
	assert.True(t, OpRemove.Gone())
}
