// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package tiger

import "fmt"

// Reference bit layout.
const (
	refIndexMask    = 0x1FFF
	refArchiveMask  = 0x3FF
	refArchiveShift = 13
	refExtMask      = 0x3FF
	refExtShift     = 23
	refExtBase      = 0x100

	// MaxReferenceArchiveID is exclusive upper bound of encodable archive ids.
	MaxReferenceArchiveID = 0xC00
	// MaxReferenceEntryIndex is inclusive upper bound of encodable entry indices.
	MaxReferenceEntryIndex = refIndexMask
)

// Reference is a 32-bit self-describing pointer to an entry of any archive.
//
// Layout: bits 0..12 entry index, bits 13..22 low archive id bits,
// bits 23..31 extension code 0x100+flag where flag selects archive id range.
type Reference uint32

// DecodeReference splits raw reference into archive id and entry index.
// Unmodeled extension codes still produce a best-effort value; see Reference.Modeled.
func DecodeReference(raw uint32) (uint16, uint16) {
	entryIndex := raw & refIndexMask
	archiveID := (raw >> refArchiveShift) & refArchiveMask
	flag := referenceFlag(raw)
	if flag != 1 {
		archiveID |= refExtBase << flag
	}

	return uint16(archiveID), uint16(entryIndex) //nolint:gosec // masked above
}

// EncodeReference packs archive id and entry index into a reference.
func EncodeReference(archiveID uint16, entryIndex uint16) (Reference, error) {
	if archiveID >= MaxReferenceArchiveID {
		return 0, fmt.Errorf("%w: archive id 0x%x", ErrReferenceRange, archiveID)
	}
	if entryIndex > MaxReferenceEntryIndex {
		return 0, fmt.Errorf("%w: entry index 0x%x", ErrReferenceRange, entryIndex)
	}

	id := uint32(archiveID)
	flag := uint32(1)
	switch {
	case id >= 0x800:
		flag = 3
		id -= 0x800
	case id >= 0x400:
		flag = 2
		id -= 0x400
	}

	ext := uint32(refExtBase) + flag
	return Reference(ext<<refExtShift | id<<refArchiveShift | uint32(entryIndex)), nil
}

// MustEncodeReference is EncodeReference that panics on out-of-range input.
func MustEncodeReference(archiveID uint16, entryIndex uint16) Reference {
	ref, err := EncodeReference(archiveID, entryIndex)
	if err != nil {
		panic(err)
	}

	return ref
}

// ArchiveID returns range-corrected archive id.
func (r Reference) ArchiveID() uint16 {
	id, _ := DecodeReference(uint32(r))
	return id
}

// EntryIndex returns entry table index.
func (r Reference) EntryIndex() uint16 {
	_, idx := DecodeReference(uint32(r))
	return idx
}

// Extension returns raw 10-bit extension code.
func (r Reference) Extension() uint16 {
	return uint16((uint32(r) >> refExtShift) & refExtMask) //nolint:gosec // masked
}

// Modeled reports whether extension code is one of 0x101..0x103.
// Other codes are seen in the wild and decode only best-effort.
func (r Reference) Modeled() bool {
	ext := r.Extension()
	return ext&^3 == refExtBase && ext&3 != 0
}

// String formats reference as "<archive id>-<entry index>" in upper hex.
func (r Reference) String() string {
	id, idx := DecodeReference(uint32(r))
	return EntryName(id, int(idx))
}

// referenceFlag extracts the two low bits of extension code.
func referenceFlag(raw uint32) uint32 {
	return ((raw >> refExtShift) & refExtMask) & 0x3
}
