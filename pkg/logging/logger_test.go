// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"Error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	if LevelDebug.toSlogLevel() != slog.LevelDebug {
		t.Error("debug mismatch")
	}
	if Level(99).toSlogLevel() != slog.LevelInfo {
		t.Error("unknown level should map to info")
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestLogger_WritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf, Service: "test"})
	defer logger.Close()

	logger.Debug("debug msg", "k", 1)
	logger.Info("info msg")
	logger.Warn("warn msg")
	logger.Error("error msg")

	out := buf.String()
	for _, want := range []string{"debug msg", "info msg", "warn msg", "error msg", "service=test", "k=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})

	logger.Debug("hidden-debug")
	logger.Info("hidden-info")
	logger.Warn("shown-warn")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below Warn leaked:\n%s", out)
	}
	if !strings.Contains(out, "shown-warn") {
		t.Errorf("warn message missing:\n%s", out)
	}
}

func TestLogger_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, JSON: true})
	logger.Info("hello", "id", "abc")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("console output is not JSON: %v\n%s", err, buf.String())
	}
	if rec["msg"] != "hello" || rec["id"] != "abc" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestLogger_Quiet(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Quiet: true})
	logger.Error("nothing")
	if buf.Len() != 0 {
		t.Errorf("quiet logger wrote %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("dropped")
	if logger.Slog().Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not be enabled at any level")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Config{Output: &buf})
	child := parent.With("op_id", "1234")

	child.Info("child")
	parent.Info("parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "op_id=1234") {
		t.Errorf("child line missing attribute: %s", lines[0])
	}
	if strings.Contains(lines[1], "op_id") {
		t.Errorf("parent line should not carry child attribute: %s", lines[1])
	}
}

func TestLogger_ContextVariants(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf})
	ctx := context.Background()

	logger.DebugContext(ctx, "d")
	logger.InfoContext(ctx, "i")
	logger.WarnContext(ctx, "w")

	if got := strings.Count(buf.String(), "\n"); got != 3 {
		t.Errorf("expected 3 records, got %d", got)
	}
}

// =============================================================================
// File Logging
// =============================================================================

func TestLogger_FileContent(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	logger := New(Config{LogDir: dir, Service: "svc", Output: &console})

	logger.Info("to both", "n", 7)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	name := filepath.Join(dir, "svc_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("file record is not JSON: %v\n%s", err, data)
	}
	if rec["msg"] != "to both" || rec["service"] != "svc" {
		t.Errorf("unexpected file record: %v", rec)
	}
	if !strings.Contains(console.String(), "to both") {
		t.Error("console output missing")
	}
}

func TestLogger_FileOnlyWhenQuiet(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Quiet: true})
	logger.Info("file only")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "safebackup_*.log"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one default-named log file, got %v (%v)", matches, err)
	}
}

func TestLogger_UnusableLogDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	logger := New(Config{LogDir: filepath.Join(blocker, "logs"), Output: &buf})
	defer logger.Close()

	if !strings.Contains(buf.String(), "file logging disabled") {
		t.Errorf("expected a warning about the log dir, got %q", buf.String())
	}
	logger.Info("still works")
	if !strings.Contains(buf.String(), "still works") {
		t.Error("console logging should continue")
	}
}

func TestLogger_CloseTwice(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Quiet: true})
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close() = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestLogger_ConcurrentUse(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Quiet: true})
	defer logger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			child := logger.With("worker", n)
			for j := 0; j < 50; j++ {
				child.Info("tick", "j", j)
			}
		}(i)
	}
	wg.Wait()
}

// =============================================================================
// Helpers
// =============================================================================

func TestMultiHandler_LevelPerHandler(t *testing.T) {
	var low, high bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&low, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&high, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("a", "b")}))

	logger.Info("info only")
	if !strings.Contains(low.String(), "info only") || !strings.Contains(low.String(), "a=b") {
		t.Errorf("debug handler missing record: %q", low.String())
	}
	if high.Len() != 0 {
		t.Errorf("error handler should have filtered info: %q", high.String())
	}
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("multiHandler should be enabled when any handler is")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in, want string
	}{
		{"~/.safebackup/logs", filepath.Join(home, ".safebackup/logs")},
		{"~", home},
		{"/var/log", "/var/log"},
		{"relative", "relative"},
		{"~other/x", "~other/x"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
