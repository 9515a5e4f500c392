// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the safebackup CLI configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/atomicfile"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/safeerr"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/sandbox"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/validation"
)

const (
	// ConfigEnv names an alternative config file.
	ConfigEnv = "SAFE_BACKUP_CONFIG"

	// BackupDirEnv overrides backup_dir.
	BackupDirEnv = "SAFE_BACKUP_DIR"

	// DataDirEnv overrides sandbox.data_dir_name.
	DataDirEnv = sandbox.DataDirEnv
)

// DefaultPath returns ~/.safebackup/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".safebackup", "config.yaml"), nil
}

// Load reads the configuration.
//
// # Description
//
// The file is path if set, else $SAFE_BACKUP_CONFIG, else DefaultPath().
// A missing file at the default location yields DefaultConfig(); a missing
// file that was named explicitly is an error. Keys absent from the file keep
// their defaults and unknown keys are rejected. Environment overrides are
// applied after the file, then the result is validated.
//
// # Outputs
//
//   - SafeBackupConfig: Effective configuration
//   - error: safeerr.ErrNotFound for a missing explicit file,
//     safeerr.ErrInvalidInput for bad YAML or failed validation
func Load(path string) (SafeBackupConfig, error) {
	explicit := true
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path == "" {
		explicit = false
		p, err := DefaultPath()
		if err != nil {
			return finish(DefaultConfig())
		}
		path = p
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		return finish(cfg)
	case err != nil:
		return SafeBackupConfig{}, safeerr.FromFS("read config", path, err)
	}

	if err := decode(bytes.NewReader(data), &cfg); err != nil {
		return SafeBackupConfig{}, safeerr.Invalid("parse config", path, "%v", err)
	}
	cfg.Path = path
	return finish(cfg)
}

func decode(r io.Reader, cfg *SafeBackupConfig) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func finish(cfg SafeBackupConfig) (SafeBackupConfig, error) {
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return SafeBackupConfig{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *SafeBackupConfig) {
	if v := os.Getenv(BackupDirEnv); v != "" {
		cfg.BackupDir = v
	}
	if v := os.Getenv(DataDirEnv); v != "" {
		cfg.Sandbox.DataDirName = v
	}
}

// Validate checks the struct tags, including the sandbox filename rule.
func (c SafeBackupConfig) Validate() error {
	if err := validation.Validator().Struct(c); err != nil {
		return safeerr.Invalid("validate config", c.Path, "%v", err)
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg SafeBackupConfig) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// WriteDefault writes DefaultConfig() to path, creating parent directories.
// An existing file is kept unless force is set; the write is atomic either
// way.
func WriteDefault(path string, force bool) error {
	data, err := Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	opts := []atomicfile.Option{atomicfile.WithPerm(0o600)}
	if !force {
		opts = append(opts, atomicfile.WithNoReplace())
	}
	if _, err := atomicfile.WriteReader(bytes.NewReader(data), path, opts...); err != nil {
		return fmt.Errorf("failed to write the config to %s: %w", path, err)
	}
	return nil
}
