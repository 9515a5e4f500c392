// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for names that are later
// joined onto trusted directories.
//
// Validation here is purely lexical. Nothing in this package touches the
// filesystem, so a rejected name never causes any I/O.
package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/safeerr"
)

// FilenameTag is the struct tag registered on Validator for fields that must
// satisfy ValidateFilename.
const FilenameTag = "safefilename"

// filenamePattern allows ASCII letters, digits, dot, hyphen and underscore.
var filenamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation(FilenameTag, validateFilenameField)
}

// Validator returns the shared validator instance with FilenameTag
// registered. It is safe for concurrent use.
func Validator() *validator.Validate {
	return validate
}

// ValidateFilename checks a bare leaf name supplied for sandboxed operations.
//
// # Description
//
// A valid name is non-empty, consists only of ASCII letters, digits, ".",
// "-" and "_", and is neither "." nor "..". Path separators of any platform
// are therefore rejected.
//
// # Outputs
//
//   - error: safeerr.ErrInvalidInput describing the first failed rule
//
// # Example
//
//	if err := validation.ValidateFilename(name); err != nil {
//	    return err
//	}
//	// Safe to join onto the data directory
func ValidateFilename(name string) error {
	switch {
	case name == "":
		return safeerr.Invalid("validate filename", name, "filename cannot be empty")
	case name == "." || name == "..":
		return safeerr.Invalid("validate filename", name, "filename cannot be %q", name)
	case !filenamePattern.MatchString(name):
		return safeerr.Invalid("validate filename", name, "filename %q may only contain ASCII letters, digits, '.', '-' and '_'", name)
	}
	return nil
}

func validateFilenameField(fl validator.FieldLevel) bool {
	return ValidateFilename(fl.Field().String()) == nil
}
