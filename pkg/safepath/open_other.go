// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

//go:build !unix

package safepath

import (
	"os"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/safeerr"
)

// OpenNoFollow opens path read-only after checking it is not a symlink.
// Without O_NOFOLLOW the check and the open are separate steps.
func OpenNoFollow(path string) (*os.File, error) {
	if err := RejectSymlink(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, safeerr.FromFS("open", path, err)
	}
	return f, nil
}
