// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package backup implements the command-line backup surface: snapshot a file
// into a backup root, list its snapshots, restore one, delete one, and view
// contents.
//
// # Storage Layout
//
// Every snapshot is a full copy stored as
//
//	<backup root>/<sha256(abs original path)>__<UTC timestamp>__<basename>
//
// There is no index. The catalog package finds the snapshots of an original
// by scanning for its digest prefix.
//
// # Safety
//
// Originals must be regular files and are never followed through a symlink.
// Snapshot files must resolve inside the backup root. All writes go through
// the atomicfile package, so a failed backup or restore leaves its
// destination exactly as it was.
//
// # Thread Safety
//
// Service is safe for concurrent use, but there is no locking between
// operations: concurrent backups and deletes in the same root may race.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/atomicfile"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/catalog"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/fingerprint"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/logging"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/safeerr"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/safepath"
)

// DefaultRoot is the backup root used when none is configured.
const DefaultRoot = "backups"

// =============================================================================
// Results
// =============================================================================

// BackupResult describes a newly stored snapshot.
type BackupResult struct {
	Entry    catalog.Entry
	Checksum string
	Original string
}

// Listing is one snapshot in a List result.
type Listing struct {
	Entry    catalog.Entry
	Checksum string
}

// RestoreResult describes a completed restore.
type RestoreResult struct {
	Entry catalog.Entry

	// Source is the snapshot that was copied.
	Source string

	// Target is the absolute original path that was overwritten.
	Target string

	// Foreign is true when an explicit id belonged to a different original.
	Foreign bool
}

// DeleteResult describes a removed snapshot.
type DeleteResult struct {
	Entry catalog.Entry
	Path  string
}

// ViewResult holds the text of a viewed file.
type ViewResult struct {
	Path string

	// Contents is the file's bytes with invalid UTF-8 replaced by U+FFFD.
	Contents string
}

// VerifyResult reports a snapshot whose checksum was recomputed.
type VerifyResult struct {
	Entry    catalog.Entry
	Checksum string
}

// =============================================================================
// Service
// =============================================================================

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for new identifiers.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the diagnostic logger. The default discards everything.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithStrictRestore makes Restore refuse an explicit id whose hash does not
// match the identity of the original being restored.
func WithStrictRestore(strict bool) Option {
	return func(s *Service) {
		s.strict = strict
	}
}

// WithTracer overrides the tracer. The default is the global provider's.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// Service runs backup operations against one backup root.
type Service struct {
	catalog *catalog.Catalog
	now     func() time.Time
	logger  *logging.Logger
	tracer  trace.Tracer
	strict  bool
}

// New returns a Service for the backup root at root. The root is created
// lazily by the first backup.
//
// # Example
//
//	svc, err := backup.New("backups", backup.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	res, err := svc.Backup(ctx, "data.txt")
func New(root string, opts ...Option) (*Service, error) {
	cat, err := catalog.New(root)
	if err != nil {
		return nil, err
	}
	s := &Service{
		catalog: cat,
		now:     time.Now,
		logger:  logging.Discard(),
		tracer:  otel.Tracer(InstrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute backup root.
func (s *Service) Root() string {
	return s.catalog.Root()
}

// Catalog exposes the underlying snapshot catalog.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Backup stores a full copy of original under a new identifier.
//
// # Description
//
// original must be a regular file and not a symlink. The copy is committed
// without replacing an existing entry, so two backups that collide on
// identifier fail instead of overwriting each other. The checksum is
// computed from the stored copy.
//
// # Outputs
//
//   - BackupResult: The new entry and its checksum
//   - error: safeerr.ErrNotFound, ErrSandboxViolation, ErrPathResolution or ErrIO
func (s *Service) Backup(ctx context.Context, original string) (res BackupResult, err error) {
	started := time.Now()
	ctx, span := s.startSpan(ctx, "Backup", attribute.String("backup.original", original))
	defer func() { finish(ctx, span, "backup", started, res.Entry.Size, err) }()

	abs, err := safepath.Absolutize(original)
	if err != nil {
		return BackupResult{}, err
	}
	if _, err := safepath.RequireRegular(abs); err != nil {
		return BackupResult{}, err
	}

	id := catalog.NewIdentifier(abs, s.now())
	if id.HasAmbiguousBasename() {
		s.logger.WarnContext(ctx, "basename contains the identifier separator",
			"original", abs, "separator", catalog.Separator)
	}
	dst := s.catalog.PathFor(id)
	if err := safepath.EnsureWithin(dst, s.catalog.Root()); err != nil {
		return BackupResult{}, err
	}

	if err := atomicfile.Copy(abs, dst, atomicfile.WithNoReplace()); err != nil {
		return BackupResult{}, fmt.Errorf("backing up %s to %s: %w", abs, dst, err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return BackupResult{}, safeerr.FromFS("stat", dst, err)
	}
	sum, err := fingerprint.File(dst)
	if err != nil {
		return BackupResult{}, err
	}

	entry := catalog.Entry{ID: id, Name: id.String(), Path: dst, Size: info.Size()}
	span.SetAttributes(attribute.String("backup.id", entry.Name))
	s.logger.InfoContext(ctx, "backup stored", "id", entry.Name, "size", entry.Size)
	return BackupResult{Entry: entry, Checksum: sum, Original: abs}, nil
}

// List returns every snapshot of original, oldest first, with checksums.
// An original with no snapshots yields an empty slice and no error.
func (s *Service) List(ctx context.Context, original string) (out []Listing, err error) {
	started := time.Now()
	ctx, span := s.startSpan(ctx, "List", attribute.String("backup.original", original))
	defer func() { finish(ctx, span, "list", started, 0, err) }()

	entries, err := s.catalog.ListFor(original)
	if err != nil {
		return nil, err
	}
	out = make([]Listing, 0, len(entries))
	for _, e := range entries {
		sum, err := fingerprint.File(e.Path)
		if err != nil {
			return nil, err
		}
		out = append(out, Listing{Entry: e, Checksum: sum})
	}
	span.SetAttributes(attribute.Int("backup.count", len(out)))
	return out, nil
}

// Restore copies a snapshot back over original.
//
// # Description
//
// With an empty id the latest snapshot of original is used. With an
// explicit id the named snapshot is used; if its hash does not match the
// identity of original the restore proceeds with a warning, or fails with
// safeerr.ErrSandboxViolation when the service is strict.
//
// The snapshot must resolve inside the backup root and must not be a
// symlink. An existing original must be a regular file; a missing original
// is recreated.
//
// # Outputs
//
//   - RestoreResult: Source and target paths
//   - error: safeerr.ErrNotFound if there is nothing to restore
func (s *Service) Restore(ctx context.Context, original, id string) (res RestoreResult, err error) {
	started := time.Now()
	ctx, span := s.startSpan(ctx, "Restore",
		attribute.String("backup.original", original),
		attribute.String("backup.id", id),
	)
	defer func() { finish(ctx, span, "restore", started, res.Entry.Size, err) }()

	abs, err := safepath.Absolutize(original)
	if err != nil {
		return RestoreResult{}, err
	}

	entry, foreign, err := s.selectSnapshot(ctx, abs, id)
	if err != nil {
		return RestoreResult{}, err
	}
	if err := safepath.EnsureWithin(entry.Path, s.catalog.Root()); err != nil {
		return RestoreResult{}, err
	}
	if err := checkRestoreTarget(abs); err != nil {
		return RestoreResult{}, err
	}

	if err := atomicfile.Overwrite(entry.Path, abs); err != nil {
		return RestoreResult{}, fmt.Errorf("restoring %s from %s: %w", abs, entry.Path, err)
	}

	s.logger.InfoContext(ctx, "snapshot restored", "id", entry.Name, "target", abs)
	return RestoreResult{Entry: entry, Source: entry.Path, Target: abs, Foreign: foreign}, nil
}

// selectSnapshot picks the snapshot a restore will use.
func (s *Service) selectSnapshot(ctx context.Context, abs, id string) (catalog.Entry, bool, error) {
	if id == "" {
		entry, ok, err := s.catalog.LatestFor(abs)
		if err != nil {
			return catalog.Entry{}, false, err
		}
		if !ok {
			return catalog.Entry{}, false, safeerr.New("restore", abs, safeerr.ErrNotFound, errors.New("no backups found to restore"))
		}
		return entry, false, nil
	}

	entry, ok, err := s.catalog.ResolveByID(id)
	if err != nil {
		return catalog.Entry{}, false, err
	}
	if !ok {
		return catalog.Entry{}, false, safeerr.New("restore", id, safeerr.ErrNotFound, errors.New("backup not found"))
	}

	if entry.ID.Hash == fingerprint.Identity(abs) {
		return entry, false, nil
	}
	if s.strict {
		return catalog.Entry{}, false, safeerr.Violation("restore", abs, "backup %s belongs to a different original", id)
	}
	s.logger.WarnContext(ctx, "restoring a backup taken from a different original",
		"id", id, "target", abs, "basename", entry.ID.Basename)
	return entry, true, nil
}

// checkRestoreTarget allows a missing target or an existing regular file.
func checkRestoreTarget(abs string) error {
	info, err := os.Lstat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return safeerr.FromFS("lstat", abs, err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return safeerr.Violation("restore", abs, "refusing to restore over a symlink")
	}
	if !info.Mode().IsRegular() {
		return safeerr.Invalid("restore", abs, "target is not a regular file (%s)", info.Mode().Type())
	}
	return nil
}

// Delete removes the snapshot named id. It is an error if nothing is stored
// under id.
func (s *Service) Delete(ctx context.Context, id string) (res DeleteResult, err error) {
	started := time.Now()
	ctx, span := s.startSpan(ctx, "Delete", attribute.String("backup.id", id))
	defer func() { finish(ctx, span, "delete", started, 0, err) }()

	entry, ok, err := s.catalog.ResolveByID(id)
	if err != nil {
		return DeleteResult{}, err
	}
	if !ok {
		return DeleteResult{}, safeerr.New("delete", id, safeerr.ErrNotFound, errors.New("backup not found"))
	}
	if err := os.Remove(entry.Path); err != nil {
		return DeleteResult{}, safeerr.FromFS("remove", entry.Path, err)
	}

	s.logger.InfoContext(ctx, "snapshot deleted", "id", entry.Name)
	return DeleteResult{Entry: entry, Path: entry.Path}, nil
}

// View reads a file as text: the snapshot named id, or original itself when
// id is empty.
func (s *Service) View(ctx context.Context, original, id string) (res ViewResult, err error) {
	started := time.Now()
	ctx, span := s.startSpan(ctx, "View",
		attribute.String("backup.original", original),
		attribute.String("backup.id", id),
	)
	defer func() { finish(ctx, span, "view", started, 0, err) }()

	path := original
	if id != "" {
		entry, ok, err := s.catalog.ResolveByID(id)
		if err != nil {
			return ViewResult{}, err
		}
		if !ok {
			return ViewResult{}, safeerr.New("view", id, safeerr.ErrNotFound, errors.New("backup not found"))
		}
		path = entry.Path
	} else if path, err = safepath.Absolutize(original); err != nil {
		return ViewResult{}, err
	}

	if _, err := safepath.RequireRegular(path); err != nil {
		return ViewResult{}, err
	}
	f, err := safepath.OpenNoFollow(path)
	if err != nil {
		return ViewResult{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return ViewResult{}, safeerr.New("read", path, safeerr.ErrIO, err)
	}
	return ViewResult{Path: path, Contents: strings.ToValidUTF8(string(data), "�")}, nil
}

// Verify recomputes the checksum of the snapshot named id.
//
// Snapshots carry no stored checksum of their own. When want is non-empty
// the recomputed checksum must equal it, otherwise the result wraps
// fingerprint.ErrChecksumMismatch.
func (s *Service) Verify(ctx context.Context, id, want string) (res VerifyResult, err error) {
	started := time.Now()
	ctx, span := s.startSpan(ctx, "Verify", attribute.String("backup.id", id))
	defer func() { finish(ctx, span, "verify", started, 0, err) }()

	entry, ok, err := s.catalog.ResolveByID(id)
	if err != nil {
		return VerifyResult{}, err
	}
	if !ok {
		return VerifyResult{}, safeerr.New("verify", id, safeerr.ErrNotFound, errors.New("backup not found"))
	}
	if want != "" {
		if err := fingerprint.Verify(entry.Path, want); err != nil {
			return VerifyResult{}, err
		}
		return VerifyResult{Entry: entry, Checksum: strings.ToLower(want)}, nil
	}
	sum, err := fingerprint.File(entry.Path)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{Entry: entry, Checksum: sum}, nil
}
