// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package tiger

import "errors"

// Sentinel errors for package operations. Use errors.Is in callers.
var (
	// ErrNotFound means an archive, group, patch revision, or entry lookup has no match.
	ErrNotFound = errors.New("not found")
	// ErrFormat means a header, table, or record failed sanity checks or was truncated.
	ErrFormat = errors.New("invalid package format")
	// ErrAuthentication means the AES-GCM tag of a block did not verify.
	ErrAuthentication = errors.New("block authentication failed")
	// ErrDecompression means a block could not be decompressed to a valid length.
	ErrDecompression = errors.New("block decompression failed")
	// ErrReconstruction means assembled entry bytes do not match the declared file size.
	ErrReconstruction = errors.New("entry reconstruction failed")
	// ErrTypeMismatch means an entry does not carry the expected type discriminator.
	ErrTypeMismatch = errors.New("entry type mismatch")
	// ErrNoArchives means the packages directory is missing or holds no package files.
	ErrNoArchives = errors.New("no package files found")
	// ErrHashMismatch means stored block bytes do not match the block content hash.
	ErrHashMismatch = errors.New("block hash mismatch")
	// ErrReferenceRange means archive id or entry index cannot be encoded in a reference.
	ErrReferenceRange = errors.New("entry reference out of range")
	// ErrNilResolver means the resolver is nil.
	ErrNilResolver = errors.New("resolver is nil")
	// ErrInvalidExtractPath means a destination path could not be derived for an entry.
	ErrInvalidExtractPath = errors.New("invalid extract path")
)
