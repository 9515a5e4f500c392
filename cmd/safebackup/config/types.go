// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"time"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/backup"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/sandbox"
)

// SafeBackupConfig is the on-disk configuration for the safebackup CLI.
type SafeBackupConfig struct {
	// BackupDir: root of the timestamped backup catalog
	BackupDir string `yaml:"backup_dir" validate:"required"`

	// Sandbox: layout of the name-keyed sandbox
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Restore: policy for restores by explicit id
	Restore RestoreConfig `yaml:"restore"`

	// Logging: diagnostic log output
	Logging LoggingConfig `yaml:"logging"`

	// Watch: defaults for the watch command
	Watch WatchConfig `yaml:"watch"`

	// Telemetry: where spans and metrics go
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Path is the file this config was read from; empty for defaults.
	Path string `yaml:"-"`
}

type SandboxConfig struct {
	BaseDir     string `yaml:"base_dir" validate:"required"`                   // e.g. "."
	DataDirName string `yaml:"data_dir_name" validate:"required,safefilename"` // e.g. data_test
}

type RestoreConfig struct {
	// Strict rejects an explicit id whose identity differs from the target.
	Strict bool `yaml:"strict"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir,omitempty"` // JSON log files land here when set
	JSON  bool   `yaml:"json"`
}

type WatchConfig struct {
	Debounce    time.Duration `yaml:"debounce" validate:"gte=0"`
	MinInterval time.Duration `yaml:"min_interval" validate:"gte=0"`
}

type TelemetryConfig struct {
	// TraceExporter is "stdout" or "none".
	TraceExporter string `yaml:"trace_exporter" validate:"oneof=stdout none"`

	// MetricExporter is "stdout" or "none".
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=stdout none"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() SafeBackupConfig {
	return SafeBackupConfig{
		BackupDir: backup.DefaultRoot,
		Sandbox: SandboxConfig{
			BaseDir:     ".",
			DataDirName: sandbox.DefaultDataDirName,
		},
		Restore: RestoreConfig{Strict: false},
		Logging: LoggingConfig{Level: "warn"},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "none",
		},
	}
}
