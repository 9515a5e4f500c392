// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sandbox

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// Recorder receives one line per completed sandbox action.
//
// Implementations must be safe to call from the goroutine running the
// action; Context never calls Record concurrently on its own.
type Recorder interface {
	Record(action string) error
}

// ActionLog appends "[<RFC3339 UTC>] <action>" lines to a text file.
//
// # Description
//
// The file is opened in append mode for each record and closed before
// Record returns, so no handle is held between actions and separate
// processes appending to the same log never truncate each other. Lines
// from different processes may still interleave if a write is not atomic
// at the OS level.
//
// # Thread Safety
//
// Record is safe for concurrent use within one process.
type ActionLog struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewActionLog returns an ActionLog writing to path.
func NewActionLog(path string, now func() time.Time) *ActionLog {
	if now == nil {
		now = time.Now
	}
	return &ActionLog{path: path, now: now}
}

// Path returns the log file location.
func (l *ActionLog) Path() string {
	return l.path
}

// Record appends one timestamped line.
func (l *ActionLog) Record(action string) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open action log: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	_, err = fmt.Fprintf(f, "[%s] %s\n", l.now().UTC().Format(time.RFC3339), action)
	return err
}

// touch creates the log file if it is missing without writing to it.
func (l *ActionLog) touch() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return err
	}
	return f.Close()
}
