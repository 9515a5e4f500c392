// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package catalog enumerates the snapshots stored in a backup root.
//
// There is no index file. The identity digest of an original path is the
// file name prefix of every snapshot taken of it, so listing is a directory
// scan filtered by that prefix, and ordering is a comparison of identifiers.
package catalog

import (
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/fingerprint"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/safeerr"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/safepath"
)

// Entry is one stored snapshot.
type Entry struct {
	// ID is the parsed identifier.
	ID Identifier

	// Name is the entry's path relative to the catalog root, using the
	// platform separator. For a flat root it equals ID.String().
	Name string

	// Path is the absolute location of the stored bytes.
	Path string

	// Size is the stored file size in bytes.
	Size int64
}

// Catalog reads snapshots under one backup root.
//
// # Thread Safety
//
// Catalog holds no mutable state. Concurrent use is safe, though a listing
// may race with concurrent backups or deletes in the same root.
type Catalog struct {
	root string
}

// New returns a Catalog rooted at root. The directory need not exist yet.
func New(root string) (*Catalog, error) {
	abs, err := safepath.Absolutize(root)
	if err != nil {
		return nil, err
	}
	return &Catalog{root: abs}, nil
}

// Root returns the absolute backup root.
func (c *Catalog) Root() string {
	return c.root
}

// PathFor returns where the snapshot named id is stored.
func (c *Catalog) PathFor(id Identifier) string {
	return filepath.Join(c.root, id.String())
}

// ListFor returns every snapshot of original, oldest first.
//
// # Description
//
// The root is walked recursively. A regular file belongs to original when
// its name starts with "<identity digest>__" and parses as an Identifier.
// Symlinks, directories and in-flight temp files never match. Entries are
// ordered by identifier, then by stored path.
//
// # Outputs
//
//   - []Entry: Matching snapshots; empty (not an error) when none exist or
//     the root has not been created
//   - error: safeerr.ErrPathResolution or safeerr.ErrIO
func (c *Catalog) ListFor(original string) ([]Entry, error) {
	hash, err := fingerprint.IdentityOf(original)
	if err != nil {
		return nil, err
	}
	return c.scan(Prefix(hash))
}

// LatestFor returns the most recent snapshot of original.
// The boolean is false when original has no snapshots.
func (c *Catalog) LatestFor(original string) (Entry, bool, error) {
	entries, err := c.ListFor(original)
	if err != nil {
		return Entry{}, false, err
	}
	if len(entries) == 0 {
		return Entry{}, false, nil
	}
	return entries[len(entries)-1], true, nil
}

// ResolveByID looks up a snapshot by its name relative to the root.
//
// # Description
//
// The id is joined to the root and checked with Lstat. It must be a local
// path (not absolute, not empty, no ".." escape) and its final element must
// parse as an Identifier. The hash is not compared with any original path;
// callers that need that check do it themselves.
//
// # Outputs
//
//   - Entry: The snapshot, when found
//   - bool: false if nothing is stored under id
//   - error: safeerr.ErrInvalidInput for a malformed id,
//     safeerr.ErrSandboxViolation if the stored path is a symlink or resolves
//     outside the root
func (c *Catalog) ResolveByID(id string) (Entry, bool, error) {
	if !filepath.IsLocal(id) {
		return Entry{}, false, safeerr.Invalid("resolve", id, "identifier must be a relative name inside the backup root")
	}
	parsed, err := ParseIdentifier(filepath.Base(id))
	if err != nil {
		return Entry{}, false, err
	}

	path := filepath.Join(c.root, id)
	info, err := safepath.RequireRegular(path)
	if err != nil {
		if errors.Is(err, safeerr.ErrNotFound) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	if err := safepath.EnsureWithin(path, c.root); err != nil {
		return Entry{}, false, err
	}
	return Entry{ID: parsed, Name: filepath.Clean(id), Path: path, Size: info.Size()}, true, nil
}

// scan walks the root collecting regular files whose name starts with prefix.
// The root is walked with a trailing separator so that a root which is
// itself a symlink is descended into; links below the root are not.
func (c *Catalog) scan(prefix string) ([]Entry, error) {
	walkRoot := c.root
	if !strings.HasSuffix(walkRoot, string(filepath.Separator)) {
		walkRoot += string(filepath.Separator)
	}

	entries := []Entry{}
	err := filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == walkRoot && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if !d.Type().IsRegular() || !strings.HasPrefix(d.Name(), prefix) {
			return nil
		}
		id, parseErr := ParseIdentifier(d.Name())
		if parseErr != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Deleted between ReadDir and Info.
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{ID: id, Name: rel, Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, safeerr.FromFS("scan", c.root, err)
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		if n := a.ID.Compare(b.ID); n != 0 {
			return n
		}
		return strings.Compare(a.Path, b.Path)
	})
	return entries, nil
}

