// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/fingerprint"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/safeerr"
)

// Separator joins the three identifier fields in a stored file name.
const Separator = "__"

// TimestampLayout is fixed-width so that lexicographic order of serialized
// identifiers with the same hash equals chronological order.
const TimestampLayout = "20060102T150405.000000000Z"

// Identifier names one stored snapshot.
//
// # Description
//
// Identifier is kept structured in memory and serialized only when it
// becomes a file name inside the backup root:
//
//	<Hash>__<Timestamp>__<Basename>
//
// Hash is the identity digest of the original's absolute path and is the only
// field used for lookup. Basename is for display.
//
// # Thread Safety
//
// Identifier is a value type and immutable.
type Identifier struct {
	Hash      string
	Timestamp time.Time
	Basename  string
}

// NewIdentifier builds the identifier for a snapshot of absOriginal taken at now.
func NewIdentifier(absOriginal string, now time.Time) Identifier {
	return Identifier{
		Hash:      fingerprint.Identity(absOriginal),
		Timestamp: now.UTC(),
		Basename:  filepath.Base(absOriginal),
	}
}

// String serializes the identifier to its stored file name.
func (id Identifier) String() string {
	return id.Hash + Separator + id.Timestamp.UTC().Format(TimestampLayout) + Separator + id.Basename
}

// Prefix returns the file name prefix shared by every snapshot of the
// original whose identity digest is hash.
func Prefix(hash string) string {
	return hash + Separator
}

// HasAmbiguousBasename reports whether the basename itself contains the
// separator. Such identifiers still parse because only the first two
// separators are significant.
func (id Identifier) HasAmbiguousBasename() bool {
	return strings.Contains(id.Basename, Separator)
}

// Compare orders identifiers by their serialized form.
func (id Identifier) Compare(other Identifier) int {
	return strings.Compare(id.String(), other.String())
}

// ParseIdentifier parses a stored file name back into an Identifier.
//
// # Description
//
// The name is split on the first two separators only. The hash must be a
// well-formed SHA-256 hex digest and the timestamp must match
// TimestampLayout; everything after the second separator is the basename.
//
// # Outputs
//
//   - Identifier: Parsed identifier
//   - error: safeerr.ErrInvalidInput if the name is not an identifier
func ParseIdentifier(name string) (Identifier, error) {
	parts := strings.SplitN(name, Separator, 3)
	if len(parts) != 3 {
		return Identifier{}, safeerr.Invalid("parse identifier", name, "expected <hash>%s<timestamp>%s<basename>", Separator, Separator)
	}
	if !fingerprint.IsDigest(parts[0]) {
		return Identifier{}, safeerr.Invalid("parse identifier", name, "malformed hash %q", parts[0])
	}
	ts, err := time.Parse(TimestampLayout, parts[1])
	if err != nil {
		return Identifier{}, safeerr.Invalid("parse identifier", name, "malformed timestamp %q", parts[1])
	}
	if parts[2] == "" {
		return Identifier{}, safeerr.Invalid("parse identifier", name, "empty basename")
	}
	return Identifier{Hash: parts[0], Timestamp: ts.UTC(), Basename: parts[2]}, nil
}
