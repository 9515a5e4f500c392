// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package fingerprint computes the two SHA-256 digests safebackup relies on:
// the identity of an original file's location and the checksum of stored
// bytes.
//
// Both are lowercase hex strings (the encoded part of a sha256 go-digest).
// The identity digest is the join key between an original path and its
// snapshots; the file digest is used for reporting and explicit verification
// only.
package fingerprint

import (
	_ "crypto/sha256" // registers sha256 for go-digest
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/safeerr"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/safepath"
)

// ChunkSize is the read size used when streaming a file through the hash.
const ChunkSize = 8 << 10

// HexLen is the length of every digest returned by this package.
const HexLen = 64

// ErrChecksumMismatch indicates stored bytes no longer match a recorded checksum.
var ErrChecksumMismatch = errors.New("fingerprint: checksum mismatch")

// Identity returns the identity digest of an already-absolutized path.
//
// The path string is hashed as UTF-8; invalid byte sequences are replaced
// with U+FFFD first, so the digest is a pure function of the string.
func Identity(absPath string) string {
	return digest.FromString(strings.ToValidUTF8(absPath, "�")).Encoded()
}

// IdentityOf absolutizes path and returns its identity digest.
func IdentityOf(path string) (string, error) {
	abs, err := safepath.Absolutize(path)
	if err != nil {
		return "", err
	}
	return Identity(abs), nil
}

// IsDigest reports whether s has the shape of a digest produced here.
func IsDigest(s string) bool {
	return digest.NewDigestFromEncoded(digest.SHA256, s).Validate() == nil
}

// File streams the file at path in ChunkSize reads and returns its SHA-256.
//
// # Description
//
// The file is opened without following a symlinked leaf. The content is
// never held in memory as a whole.
//
// # Outputs
//
//   - string: Hex digest of the file content
//   - error: safeerr.ErrNotFound / ErrSandboxViolation / ErrIO
func File(path string) (string, error) {
	f, err := safepath.OpenNoFollow(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum, err := Reader(f)
	if err != nil {
		return "", safeerr.New("checksum", path, safeerr.ErrIO, err)
	}
	return sum, nil
}

// Reader hashes everything r yields, reading ChunkSize bytes at a time.
func Reader(r io.Reader) (string, error) {
	digester := digest.SHA256.Digester()
	h := digester.Hash()
	buf := make([]byte, ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = h.Write(buf[:n]) //nolint:errcheck // hash writes never fail
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return digester.Digest().Encoded(), nil
}

// Verify recomputes the checksum of path and compares it with want.
func Verify(path, want string) error {
	got, err := File(path)
	if err != nil {
		return err
	}
	if got != strings.ToLower(want) {
		return fmt.Errorf("%w: %s: got %s, want %s", ErrChecksumMismatch, path, got, want)
	}
	return nil
}
