// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package tiger

import (
	"fmt"
	"os"
)

// ReadHeader opens a package file and returns only its fixed header.
func ReadHeader(path string) (Header, error) {
	f, size, err := openFileWithSize(path)
	if err != nil {
		return Header{}, err
	}
	defer func() { _ = f.Close() }()

	return ParseHeader(f, size)
}

// ListEntries opens a package file and returns decoded entries without payload reads.
func ListEntries(path string) ([]Entry, error) {
	return ListEntriesWithFilter(path, EntryFilter{})
}

// ListEntriesWithFilter opens a package file and returns entries selected by filter.
func ListEntriesWithFilter(path string, filter EntryFilter) ([]Entry, error) {
	entries, _, err := listFilteredEntries(path, filter)
	return entries, err
}

// ListEntryIndices returns entry table indices selected by filter.
func ListEntryIndices(path string, filter EntryFilter) ([]int, error) {
	_, indices, err := listFilteredEntries(path, filter)
	return indices, err
}

// ListBlocks opens a package file and returns decoded block table.
func ListBlocks(path string) ([]Block, error) {
	f, size, err := openFileWithSize(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	h, err := ParseHeader(f, size)
	if err != nil {
		return nil, err
	}

	return parseBlockTable(newByteCursor(f, size), h)
}

// listFilteredEntries parses entry table once and applies filter.
func listFilteredEntries(path string, filter EntryFilter) ([]Entry, []int, error) {
	f, size, err := openFileWithSize(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	h, err := ParseHeader(f, size)
	if err != nil {
		return nil, nil, err
	}

	entries, err := parseEntryTable(newByteCursor(f, size), h)
	if err != nil {
		return nil, nil, err
	}

	indices := filter.Select(entries)
	out := make([]Entry, len(indices))
	for i, idx := range indices {
		out[i] = entries[idx]
	}

	return out, indices, nil
}

// openFileWithSize opens a file and returns a handle plus current size.
func openFileWithSize(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open package: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat: %w", err)
	}

	return f, fi.Size(), nil
}
