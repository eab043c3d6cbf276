// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package tiger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/woozymasta/pathrules"
)

// Internal binary layout and format limits.
const (
	headerSize      = 0x70 // fixed package header size in bytes
	entryRecordSize = 16   // packed entry descriptor size
	blockRecordSize = 48   // block descriptor size
	blockHashSize   = 20   // SHA1 content hash in block record
	blockTagSize    = 16   // AES-GCM authentication tag in block record

	// BlockSize is block granularity: decompressed block capacity and block-count divisor.
	BlockSize = 0x40000
)

// Header field offsets.
const (
	offVersion         = 0x00
	offPlatform        = 0x02
	offArchiveID       = 0x10
	offPrimary         = 0x12
	offStartup         = 0x14
	offBuildTime       = 0x20
	offBuildID         = 0x28
	offPatchID         = 0x30
	offLanguage        = 0x32
	offSignatureOffset = 0x40
	offEntryCount      = 0x60
	offEntryOffset     = 0x64
	offBlockCount      = 0x68
	offBlockOffset     = 0x6C
)

// DefaultExtension is the package file name extension scanned by resolver.
const DefaultExtension = ".pkg"

// Language is package localization enumerator stored in header.
type Language uint16

// Package languages.
const (
	LanguageNone Language = iota
	LanguageEnglish
	LanguageFrench
	LanguageItalian
	LanguageGerman
	LanguageSpanish
	LanguageJapanese
	LanguagePortuguese
	LanguageRussian
	LanguagePolish
	LanguageSimplifiedChinese
	LanguageTraditionalChinese
	LanguageLatinAmericanSpanish
	LanguageKorean
)

var languageNames = [...]string{
	"none", "en", "fr", "it", "de", "es", "ja", "pt", "ru", "pl", "zh-chs", "zh-cht", "es-mx", "ko",
}

// Valid reports whether language is one of known enumerators.
func (l Language) Valid() bool {
	return int(l) < len(languageNames)
}

// String returns short language tag.
func (l Language) String() string {
	if !l.Valid() {
		return fmt.Sprintf("unknown(%d)", uint16(l))
	}

	return languageNames[l]
}

// Header describes the fixed header of one physical package file.
type Header struct {
	// BuildTime is package build timestamp (UTC).
	BuildTime time.Time `json:"build_time" yaml:"build_time"`
	// Version is format version word.
	Version uint16 `json:"version" yaml:"version"`
	// Platform is target platform word.
	Platform uint16 `json:"platform" yaml:"platform"`
	// ArchiveID is declared package id, invariant across patch revisions.
	ArchiveID uint16 `json:"archive_id" yaml:"archive_id"`
	// PatchID is patch revision of this file.
	PatchID uint16 `json:"patch_id" yaml:"patch_id"`
	// Language is localization of package content.
	Language Language `json:"language" yaml:"language"`
	// Primary reports the is-package flag.
	Primary bool `json:"primary,omitempty" yaml:"primary,omitempty"`
	// Startup reports the is-startup-package flag.
	Startup bool `json:"startup,omitempty" yaml:"startup,omitempty"`
	// BuildID is build identifier word.
	BuildID uint32 `json:"build_id,omitempty" yaml:"build_id,omitempty"`
	// SignatureOffset is byte offset of package signature block.
	SignatureOffset uint32 `json:"signature_offset,omitempty" yaml:"signature_offset,omitempty"`
	// EntryCount is number of entry table records.
	EntryCount uint32 `json:"entry_count" yaml:"entry_count"`
	// EntryOffset is byte offset of entry table.
	EntryOffset uint32 `json:"entry_offset" yaml:"entry_offset"`
	// BlockCount is number of block table records.
	BlockCount uint32 `json:"block_count" yaml:"block_count"`
	// BlockOffset is byte offset of block table.
	BlockOffset uint32 `json:"block_offset" yaml:"block_offset"`
}

// EntryType is numeric entry type from entry flags word.
type EntryType uint8

// Known entry types.
const (
	EntryTypeRawData     EntryType = 8
	EntryTypeRawData16   EntryType = 16
	EntryTypeFont        EntryType = 24
	EntryTypeThirdParty  EntryType = 26
	EntryTypeVideo       EntryType = 27
	EntryTypeTexture     EntryType = 32
	EntryTypeTextureData EntryType = 40
	EntryTypeTextureUI   EntryType = 48
)

// String returns entry type label.
func (t EntryType) String() string {
	switch t {
	case EntryTypeRawData, EntryTypeRawData16:
		return "raw"
	case EntryTypeFont:
		return "font"
	case EntryTypeThirdParty:
		return "third_party"
	case EntryTypeVideo:
		return "video"
	case EntryTypeTexture:
		return "texture_header"
	case EntryTypeTextureData:
		return "texture_data"
	case EntryTypeTextureUI:
		return "texture_ui_data"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Known entry subtypes, meaningful together with entry type.
const (
	SubtypeThirdPartyBKHD uint8 = 6
	SubtypeThirdPartyRIFF uint8 = 7
	SubtypeVideoUSM       uint8 = 1
	SubtypeTextureDDS     uint8 = 1
)

// Known type discriminators of typed content blocks (entry word a).
const (
	BlockTypeStringBank      uint32 = 0x808099F1
	BlockTypeStringReference uint32 = 0x808099EF
	BlockTypeFontReference   uint32 = 0x80803C12
	BlockTypeAudioBank       uint32 = 0x808097B8
)

// Entry is one decoded 128-bit entry table descriptor.
type Entry struct {
	// Discriminator is raw word a, matched against known content block types.
	Discriminator uint32 `json:"discriminator" yaml:"discriminator"`
	// Flags is raw word b.
	Flags uint32 `json:"flags" yaml:"flags"`
	// Reference is back-reference decoded from word a.
	Reference Reference `json:"reference" yaml:"reference"`
	// StartingBlock is first block index in owning file block table.
	StartingBlock uint32 `json:"starting_block" yaml:"starting_block"`
	// StartingBlockOffset is byte offset inside first decompressed block.
	StartingBlockOffset uint32 `json:"starting_block_offset" yaml:"starting_block_offset"`
	// FileSize is total logical byte length.
	FileSize uint32 `json:"file_size" yaml:"file_size"`
	// Unknown holds the top six bits of word d.
	Unknown uint8 `json:"unknown,omitempty" yaml:"unknown,omitempty"`
	// Type is numeric entry type.
	Type EntryType `json:"type" yaml:"type"`
	// Subtype is numeric entry subtype.
	Subtype uint8 `json:"subtype" yaml:"subtype"`
}

// ReferenceID is back-reference entry index.
func (e Entry) ReferenceID() uint16 {
	return e.Reference.EntryIndex()
}

// ReferenceArchiveID is range-corrected back-reference archive id.
func (e Entry) ReferenceArchiveID() uint16 {
	return e.Reference.ArchiveID()
}

// BlockCount returns number of blocks spanned by entry.
func (e Entry) BlockCount() uint32 {
	span := uint64(e.StartingBlockOffset) + uint64(e.FileSize)
	return uint32((span + BlockSize - 1) / BlockSize) //nolint:gosec // bounded by 14+4+30 bit fields
}

// Is reports whether entry carries given content block discriminator.
func (e Entry) Is(discriminator uint32) bool {
	return e.Discriminator == discriminator
}

// Block is one decoded 48-byte block table descriptor.
type Block struct {
	// Hash is stored 20-byte content hash.
	Hash [blockHashSize]byte `json:"-" yaml:"-"`
	// Tag is stored 16-byte AES-GCM authentication tag.
	Tag [blockTagSize]byte `json:"-" yaml:"-"`
	// Offset is byte offset of stored bytes in the patch file.
	Offset uint32 `json:"offset" yaml:"offset"`
	// Size is stored byte length.
	Size uint32 `json:"size" yaml:"size"`
	// PatchID is patch index of the file holding stored bytes.
	PatchID uint16 `json:"patch_id" yaml:"patch_id"`
	// Flags is raw block flags word.
	Flags uint16 `json:"flags" yaml:"flags"`
}

// Block flag bits.
const (
	BlockFlagCompressed   uint16 = 1 << 0
	BlockFlagEncrypted    uint16 = 1 << 1
	BlockFlagAlternateKey uint16 = 1 << 2
)

// IsCompressed reports whether block is stored compressed.
func (b Block) IsCompressed() bool {
	return b.Flags&BlockFlagCompressed != 0
}

// IsEncrypted reports whether block is stored encrypted.
func (b Block) IsEncrypted() bool {
	return b.Flags&BlockFlagEncrypted != 0
}

// UsesAlternateKey reports whether block is encrypted with the alternate key.
func (b Block) UsesAlternateKey() bool {
	return b.Flags&BlockFlagAlternateKey != 0
}

// Extracted is reconstructed entry payload with provenance.
type Extracted struct {
	// Data is reconstructed entry bytes.
	Data []byte `json:"-" yaml:"-"`
	// ArchiveID is source package id.
	ArchiveID uint16 `json:"archive_id" yaml:"archive_id"`
	// EntryIndex is source entry table index.
	EntryIndex int `json:"entry_index" yaml:"entry_index"`
}

// Name returns conventional file stem "<archive id>-<entry index>" in upper hex.
func (x Extracted) Name() string {
	return EntryName(x.ArchiveID, x.EntryIndex)
}

// EntryName returns conventional file stem "<archive id>-<entry index>" in upper hex.
func EntryName(archiveID uint16, entryIndex int) string {
	return fmt.Sprintf("%04X-%04X", archiveID, entryIndex)
}

// ResolverOptions configures archive discovery.
type ResolverOptions struct {
	// Logger receives debug and warning events; nil discards.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// Codec decodes stored blocks; nil uses NewBlockCodec(CodecOptions{}).
	Codec *BlockCodec `json:"-" yaml:"-"`
	// Extension is package file extension; default ".pkg".
	Extension string `json:"extension,omitempty" yaml:"extension,omitempty"`
	// Rules are ordered include/exclude glob rules matched against group base names.
	Rules []pathrules.Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
	// RuleOptions control base name rule matching.
	RuleOptions pathrules.MatcherOptions `json:"rule_options,omitzero" yaml:"rule_options,omitzero"`
}

// ExtractOptions configures bulk extraction to a directory.
type ExtractOptions struct {
	// OnEntryDone is called after one entry is fully written to disk.
	OnEntryDone func(done ExtractProgress) `json:"-" yaml:"-"`
	// OnEntryError is called for each skipped entry failure.
	OnEntryError func(file *ArchiveFile, index int, err error) `json:"-" yaml:"-"`
	// Archives limits extraction to selected files; nil means all master revisions.
	Archives []*ArchiveFile `json:"-" yaml:"-"`
	// Filter selects entries inside each archive.
	Filter EntryFilter `json:"filter,omitzero" yaml:"filter,omitzero"`
	// FileMode controls output file creation policy.
	FileMode ExtractFileMode `json:"file_mode,omitempty" yaml:"file_mode,omitempty"`
	// Extension is appended to output file stems; default ".bin".
	Extension string `json:"extension,omitempty" yaml:"extension,omitempty"`
	// MaxWorkers is number of archive workers (zero means GOMAXPROCS).
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
	// Digest enables BLAKE3-256 digest of written entries.
	Digest bool `json:"digest,omitempty" yaml:"digest,omitempty"`
	// StopOnError aborts extraction on first entry failure instead of skipping.
	StopOnError bool `json:"stop_on_error,omitempty" yaml:"stop_on_error,omitempty"`
}

// ExtractProgress describes one written entry.
type ExtractProgress struct {
	// File is archive file entry was read from.
	File *ArchiveFile `json:"-" yaml:"-"`
	// OutputPath is written file path.
	OutputPath string `json:"output_path" yaml:"output_path"`
	// Entry is extracted entry metadata.
	Entry Entry `json:"entry" yaml:"entry"`
	// Index is entry table index.
	Index int `json:"index" yaml:"index"`
	// Written is number of bytes written, or size of reused output.
	Written int64 `json:"written" yaml:"written"`
	// Reused marks an existing output kept by ExtractFileModeOverwriteSmart.
	Reused bool `json:"reused,omitempty" yaml:"reused,omitempty"`
	// Digest is BLAKE3-256 of written bytes when enabled.
	Digest [32]byte `json:"-" yaml:"-"`
}

// ExtractResult contains bulk extraction statistics.
type ExtractResult struct {
	// Archives is number of processed archive files.
	Archives int `json:"archives" yaml:"archives"`
	// Entries is number of written entries.
	Entries int `json:"entries" yaml:"entries"`
	// Skipped is number of failed and skipped entries.
	Skipped int `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	// Reused is number of existing outputs kept without reconstruction.
	Reused int `json:"reused,omitempty" yaml:"reused,omitempty"`
	// Bytes is total written payload bytes.
	Bytes int64 `json:"bytes" yaml:"bytes"`
	// Duration is end-to-end extraction duration.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// ExtractFileMode controls output file open behavior during extraction.
type ExtractFileMode string

// Output file creation policies for extraction.
const (
	// ExtractFileModeAuto writes a temporary sibling and renames it over the
	// output, so a failed entry leaves any previous output untouched.
	ExtractFileModeAuto ExtractFileMode = "auto"
	// ExtractFileModeOverwriteSmart keeps existing outputs whose size equals
	// the entry size and rewrites the rest like auto. Used to resume scans.
	ExtractFileModeOverwriteSmart ExtractFileMode = "overwrite_smart"
	// ExtractFileModeTruncate opens existing files with truncate and creates missing files.
	ExtractFileModeTruncate ExtractFileMode = "truncate"
	// ExtractFileModeCreateOnly creates files only when absent and fails on existing files.
	ExtractFileModeCreateOnly ExtractFileMode = "create_only"
)

// applyDefaults fills zero-valued resolver options with defaults.
func (opts *ResolverOptions) applyDefaults() {
	if opts.Extension == "" {
		opts.Extension = DefaultExtension
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	if opts.RuleOptions == (pathrules.MatcherOptions{}) {
		opts.RuleOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	if opts.RuleOptions.DefaultAction == pathrules.ActionUnknown {
		opts.RuleOptions.DefaultAction = pathrules.ActionExclude
	}
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.FileMode == "" {
		opts.FileMode = ExtractFileModeAuto
	}

	if opts.Extension == "" {
		opts.Extension = ".bin"
	}
}
