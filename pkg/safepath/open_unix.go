// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

//go:build unix

package safepath

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/safeerr"
)

// OpenNoFollow opens path read-only and refuses a symlinked leaf at open time.
func OpenNoFollow(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_NOFOLLOW, 0)
	if err != nil {
		if errors.Is(err, unix.ELOOP) {
			return nil, safeerr.Violation("open", path, "symlinks are not allowed")
		}
		return nil, safeerr.FromFS("open", path, err)
	}
	return f, nil
}
