// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package tiger

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"
)

// ArchiveFile provides lazy read-only access to one physical package file.
// Header, entry table, and block table are parsed on first access and memoized;
// methods are safe for concurrent use.
type ArchiveFile struct {
	// header memoizes parsed fixed header.
	header func() (Header, error)
	// entries memoizes decoded entry table.
	entries func() ([]Entry, error)
	// blocks memoizes decoded block table.
	blocks func() ([]Block, error)
	// path is file system path.
	path string
	// name is file name without directory.
	name string
	// baseName is name without _<patch> suffix and extension.
	baseName string
	// namePatch is patch number parsed from name, -1 when absent.
	namePatch int
}

// NewArchiveFile creates archive file model for path. No I/O is performed.
func NewArchiveFile(path string) *ArchiveFile {
	a := &ArchiveFile{
		path:      path,
		name:      ArchiveName(path),
		namePatch: -1,
	}

	if base, patch, err := SplitPatch(a.name); err == nil {
		a.baseName = base
		a.namePatch = patch
	} else {
		a.baseName = BaseName(a.name)
	}

	a.header = sync.OnceValues(a.readHeader)
	a.entries = sync.OnceValues(a.readEntries)
	a.blocks = sync.OnceValues(a.readBlocks)
	return a
}

// Path returns file system path.
func (a *ArchiveFile) Path() string {
	return a.path
}

// Name returns file name, for example "w64_ui_09be_3.pkg".
func (a *ArchiveFile) Name() string {
	return a.name
}

// BaseName returns group name, for example "w64_ui_09be".
func (a *ArchiveFile) BaseName() string {
	return a.baseName
}

// NamePatch returns patch number from file name, or -1 when absent.
func (a *ArchiveFile) NamePatch() int {
	return a.namePatch
}

// String returns file name.
func (a *ArchiveFile) String() string {
	return a.name
}

// Header returns parsed fixed header.
func (a *ArchiveFile) Header() (Header, error) {
	return a.header()
}

// ArchiveID returns declared package id from header.
func (a *ArchiveFile) ArchiveID() (uint16, error) {
	h, err := a.header()
	if err != nil {
		return 0, err
	}

	return h.ArchiveID, nil
}

// Entries returns a copy of decoded entry table.
func (a *ArchiveFile) Entries() ([]Entry, error) {
	entries, err := a.entries()
	if err != nil {
		return nil, err
	}

	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// EntryCount returns number of entries.
func (a *ArchiveFile) EntryCount() (int, error) {
	entries, err := a.entries()
	if err != nil {
		return 0, err
	}

	return len(entries), nil
}

// Entry returns one decoded entry by table index.
func (a *ArchiveFile) Entry(index int) (Entry, error) {
	entries, err := a.entries()
	if err != nil {
		return Entry{}, err
	}

	if index < 0 || index >= len(entries) {
		return Entry{}, fmt.Errorf("%w: entry %d in %s (%d entries)", ErrNotFound, index, a.name, len(entries))
	}

	return entries[index], nil
}

// Blocks returns a copy of decoded block table.
func (a *ArchiveFile) Blocks() ([]Block, error) {
	blocks, err := a.blocks()
	if err != nil {
		return nil, err
	}

	out := make([]Block, len(blocks))
	copy(out, blocks)
	return out, nil
}

// Block returns one decoded block by table index.
func (a *ArchiveFile) Block(index int) (Block, error) {
	blocks, err := a.blocks()
	if err != nil {
		return Block{}, err
	}

	if index < 0 || index >= len(blocks) {
		return Block{}, fmt.Errorf("%w: block %d in %s (%d blocks)", ErrFormat, index, a.name, len(blocks))
	}

	return blocks[index], nil
}

// readHeader opens file and parses fixed header.
func (a *ArchiveFile) readHeader() (Header, error) {
	f, size, err := openFileWithSize(a.path)
	if err != nil {
		return Header{}, err
	}
	defer func() { _ = f.Close() }()

	h, err := ParseHeader(f, size)
	if err != nil {
		return Header{}, fmt.Errorf("%s: %w", a.name, err)
	}

	return h, nil
}

// readEntries opens file and decodes entry table.
func (a *ArchiveFile) readEntries() ([]Entry, error) {
	h, err := a.header()
	if err != nil {
		return nil, err
	}

	f, size, err := openFileWithSize(a.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	entries, err := parseEntryTable(newByteCursor(f, size), h)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.name, err)
	}

	return entries, nil
}

// readBlocks opens file and decodes block table.
func (a *ArchiveFile) readBlocks() ([]Block, error) {
	h, err := a.header()
	if err != nil {
		return nil, err
	}

	f, size, err := openFileWithSize(a.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	blocks, err := parseBlockTable(newByteCursor(f, size), h)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.name, err)
	}

	return blocks, nil
}

// ParseHeader reads and validates fixed package header from a random-access source.
func ParseHeader(ra io.ReaderAt, size int64) (Header, error) {
	if ra == nil {
		return Header{}, fmt.Errorf("%w: nil source", ErrFormat)
	}

	c := newByteCursor(ra, size)
	raw, err := c.bytes(0, headerSize)
	if err != nil {
		return Header{}, fmt.Errorf("short header: %w", err)
	}

	if isZero(raw) {
		return Header{}, fmt.Errorf("%w: zeroed header", ErrFormat)
	}

	le := binary.LittleEndian
	h := Header{
		Version:         le.Uint16(raw[offVersion:]),
		Platform:        le.Uint16(raw[offPlatform:]),
		ArchiveID:       le.Uint16(raw[offArchiveID:]),
		Primary:         le.Uint16(raw[offPrimary:]) != 0,
		Startup:         le.Uint16(raw[offStartup:]) != 0,
		BuildID:         le.Uint32(raw[offBuildID:]),
		PatchID:         le.Uint16(raw[offPatchID:]),
		Language:        Language(le.Uint16(raw[offLanguage:])),
		SignatureOffset: le.Uint32(raw[offSignatureOffset:]),
		EntryCount:      le.Uint32(raw[offEntryCount:]),
		EntryOffset:     le.Uint32(raw[offEntryOffset:]),
		BlockCount:      le.Uint32(raw[offBlockCount:]),
		BlockOffset:     le.Uint32(raw[offBlockOffset:]),
	}

	buildTime := le.Uint64(raw[offBuildTime:])
	if buildTime > uint64(maxUnixSeconds) {
		return Header{}, fmt.Errorf("%w: build time %d out of range", ErrFormat, buildTime)
	}
	h.BuildTime = time.Unix(int64(buildTime), 0).UTC() //nolint:gosec // bounded above

	if err := validateHeader(h, size); err != nil {
		return Header{}, err
	}

	return h, nil
}

// maxUnixSeconds bounds plausible build timestamps (year 9999).
const maxUnixSeconds = 253402300799

// validateHeader checks header fields against file size.
func validateHeader(h Header, size int64) error {
	if !h.Language.Valid() {
		return fmt.Errorf("%w: unknown language %d", ErrFormat, uint16(h.Language))
	}

	if err := validateTable("entry", h.EntryOffset, h.EntryCount, entryRecordSize, size); err != nil {
		return err
	}

	return validateTable("block", h.BlockOffset, h.BlockCount, blockRecordSize, size)
}

// validateTable checks that table records lie after header and inside file.
func validateTable(name string, offset uint32, count uint32, recordSize int64, size int64) error {
	if count == 0 {
		return nil
	}

	if int64(offset) < headerSize {
		return fmt.Errorf("%w: %s table offset 0x%x inside header", ErrFormat, name, offset)
	}

	end := int64(offset) + int64(count)*recordSize
	if end > size {
		return fmt.Errorf("%w: %s table [0x%x, 0x%x) past end of file 0x%x", ErrFormat, name, offset, end, size)
	}

	return nil
}

// parseEntryTable reads and decodes all entry records.
func parseEntryTable(c byteCursor, h Header) ([]Entry, error) {
	raw, err := c.bytes(int64(h.EntryOffset), int64(h.EntryCount)*entryRecordSize)
	if err != nil {
		return nil, fmt.Errorf("read entry table: %w", err)
	}

	le := binary.LittleEndian
	entries := make([]Entry, h.EntryCount)
	for i := range entries {
		rec := raw[i*entryRecordSize : (i+1)*entryRecordSize]
		entries[i] = DecodeEntry(le.Uint32(rec[0:4]), le.Uint32(rec[4:8]), le.Uint32(rec[8:12]), le.Uint32(rec[12:16]))
	}

	return entries, nil
}

// parseBlockTable reads and decodes all block records.
func parseBlockTable(c byteCursor, h Header) ([]Block, error) {
	raw, err := c.bytes(int64(h.BlockOffset), int64(h.BlockCount)*blockRecordSize)
	if err != nil {
		return nil, fmt.Errorf("read block table: %w", err)
	}

	blocks := make([]Block, h.BlockCount)
	for i := range blocks {
		block, err := DecodeBlock(raw[i*blockRecordSize : (i+1)*blockRecordSize])
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}

		blocks[i] = block
	}

	return blocks, nil
}

// DecodeEntry decodes one packed entry record from its four little-endian words.
func DecodeEntry(a, b, c, d uint32) Entry {
	return Entry{
		Discriminator:       a,
		Flags:               b,
		Reference:           Reference(a),
		Subtype:             uint8((b >> 6) & 0x7),      //nolint:gosec // masked
		Type:                EntryType((b >> 9) & 0x7F), //nolint:gosec // masked
		StartingBlock:       c & 0x3FFF,
		StartingBlockOffset: ((c >> 14) & 0x3FFF) << 4,
		FileSize:            (d&0x3FFFFFF)<<4 | (c>>28)&0xF,
		Unknown:             uint8((d >> 26) & 0x3F), //nolint:gosec // masked
	}
}

// DecodeBlock decodes one 48-byte block record.
func DecodeBlock(rec []byte) (Block, error) {
	if len(rec) != blockRecordSize {
		return Block{}, fmt.Errorf("%w: block record size %d, want %d", ErrFormat, len(rec), blockRecordSize)
	}

	le := binary.LittleEndian
	b := Block{
		Offset:  le.Uint32(rec[0:4]),
		Size:    le.Uint32(rec[4:8]),
		PatchID: le.Uint16(rec[8:10]),
		Flags:   le.Uint16(rec[10:12]),
	}
	copy(b.Hash[:], rec[12:12+blockHashSize])
	copy(b.Tag[:], rec[12+blockHashSize:blockRecordSize])
	return b, nil
}

// isZero reports whether all bytes are zero.
func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}

	return true
}
