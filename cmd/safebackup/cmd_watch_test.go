// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaleiDev/safe-backup-CYB225/cmd/safebackup/config"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/watch"
)

func TestBackupOnChange(t *testing.T) {
	dir := workspace(t)
	target := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o600))

	var out, errOut bytes.Buffer
	a := newApp(strings.NewReader(""), &out, &errOut)
	a.cfg = config.DefaultConfig()
	svc, err := a.service()
	require.NoError(t, err)
	handle := a.backupOnChange(svc)

	ctx := context.Background()
	handle(ctx, watch.Change{Path: target, Op: watch.OpWrite, Time: time.Now()})
	assert.True(t, strings.HasPrefix(out.String(), "BACKED UP: id="), out.String())

	out.Reset()
	handle(ctx, watch.Change{Path: target, Op: watch.OpRemove, Time: time.Now()})
	assert.Empty(t, out.String())

	require.NoError(t, os.Remove(target))
	handle(ctx, watch.Change{Path: target, Op: watch.OpCreate, Time: time.Now()})
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Warning: backup of "+target+" failed")

	listings, err := svc.List(ctx, target)
	require.NoError(t, err)
	assert.Len(t, listings, 1)
}

func TestWatchCmd_StopsOnCancel(t *testing.T) {
	workspace(t)
	require.NoError(t, os.WriteFile("data.txt", []byte("x"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	var out, errOut bytes.Buffer
	done := make(chan int, 1)
	go func() {
		done <- execute(ctx, []string{"watch", "data.txt", "--debounce", "20ms"}, strings.NewReader(""), &out, &errOut)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case code := <-done:
		assert.Equal(t, exitOK, code, errOut.String())
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestWatchCmd_NegativeDuration(t *testing.T) {
	workspace(t)
	res := run(t, "", "watch", "data.txt", "--debounce", "-1s")
	assert.Equal(t, exitInvalidInput, res.code)
}
