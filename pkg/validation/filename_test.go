// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/safeerr"
)

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "data.txt", false},
		{"dotfile", ".env", false},
		{"underscore and hyphen", "my_file-2.tar.gz", false},
		{"triple dot", "...", false},
		{"digits only", "2025", false},

		{"empty", "", true},
		{"dot", ".", true},
		{"dotdot", "..", true},
		{"forward slash", "a/b", true},
		{"traversal", "../etc/passwd", true},
		{"backslash", `a\b`, true},
		{"absolute", "/etc/passwd", true},
		{"space", "my file", true},
		{"nul byte", "a\x00b", true},
		{"newline", "a\nb", true},
		{"unicode", "café.txt", true},
		{"colon", "C:evil", true},
		{"tilde", "~root", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilename(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, safeerr.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidator_FilenameTag(t *testing.T) {
	type target struct {
		Name string `validate:"required,safefilename"`
	}

	assert.NoError(t, Validator().Struct(target{Name: "data_test"}))
	assert.Error(t, Validator().Struct(target{Name: "../data"}))
	assert.Error(t, Validator().Struct(target{Name: ""}))
}
