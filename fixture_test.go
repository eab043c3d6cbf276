// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package tiger

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1" //nolint:gosec // Block table stores SHA1 content hashes.
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/woozymasta/lzss"
)

// pkgWriter assembles one synthetic package file:
// header | stored block payloads | entry table | block table.
type pkgWriter struct {
	header  Header
	entries [][4]uint32
	blocks  []Block
	payload []byte
}

// newPkgWriter creates writer with minimal valid header.
func newPkgWriter(archiveID uint16, patch uint16) *pkgWriter {
	return &pkgWriter{
		header: Header{
			BuildTime: time.Unix(1700000000, 0).UTC(),
			Version:   0x53,
			Platform:  0x03,
			ArchiveID: archiveID,
			PatchID:   patch,
			Primary:   true,
			Language:  LanguageNone,
			BuildID:   0x1234,
		},
	}
}

// store appends raw stored bytes and returns absolute offset.
func (w *pkgWriter) store(raw []byte) uint32 {
	off := uint32(headerSize + len(w.payload))
	w.payload = append(w.payload, raw...)
	return off
}

// addBlock stores raw bytes locally and appends a block record.
func (w *pkgWriter) addBlock(raw []byte, tag [blockTagSize]byte, flags uint16) int {
	off := w.store(raw)
	return w.addBlockRecord(Block{
		Offset:  off,
		Size:    uint32(len(raw)),
		PatchID: w.header.PatchID,
		Flags:   flags,
		Tag:     tag,
		Hash:    sha1.Sum(raw), //nolint:gosec // Block table stores SHA1 content hashes.
	})
}

// addBlockRecord appends a block record and returns its index.
func (w *pkgWriter) addBlockRecord(b Block) int {
	w.blocks = append(w.blocks, b)
	return len(w.blocks) - 1
}

// addEntry appends packed entry words and returns entry index.
func (w *pkgWriter) addEntry(words [4]uint32) int {
	w.entries = append(w.entries, words)
	return len(w.entries) - 1
}

// bytes serializes package file.
func (w *pkgWriter) bytes() []byte {
	entryOff := headerSize + len(w.payload)
	blockOff := entryOff + len(w.entries)*entryRecordSize
	total := blockOff + len(w.blocks)*blockRecordSize

	out := make([]byte, total)
	le := binary.LittleEndian
	h := w.header
	le.PutUint16(out[offVersion:], h.Version)
	le.PutUint16(out[offPlatform:], h.Platform)
	le.PutUint16(out[offArchiveID:], h.ArchiveID)
	le.PutUint16(out[offPrimary:], boolWord(h.Primary))
	le.PutUint16(out[offStartup:], boolWord(h.Startup))
	le.PutUint64(out[offBuildTime:], uint64(h.BuildTime.Unix()))
	le.PutUint32(out[offBuildID:], h.BuildID)
	le.PutUint16(out[offPatchID:], h.PatchID)
	le.PutUint16(out[offLanguage:], uint16(h.Language))
	le.PutUint32(out[offEntryCount:], uint32(len(w.entries)))
	le.PutUint32(out[offEntryOffset:], uint32(entryOff))
	le.PutUint32(out[offBlockCount:], uint32(len(w.blocks)))
	le.PutUint32(out[offBlockOffset:], uint32(blockOff))

	copy(out[headerSize:], w.payload)
	for i, e := range w.entries {
		rec := out[entryOff+i*entryRecordSize:]
		for j, word := range e {
			le.PutUint32(rec[j*4:], word)
		}
	}

	for i, b := range w.blocks {
		rec := out[blockOff+i*blockRecordSize:]
		le.PutUint32(rec[0:], b.Offset)
		le.PutUint32(rec[4:], b.Size)
		le.PutUint16(rec[8:], b.PatchID)
		le.PutUint16(rec[10:], b.Flags)
		copy(rec[12:], b.Hash[:])
		copy(rec[12+blockHashSize:], b.Tag[:])
	}

	return out
}

// write stores package file in dir and returns its path.
func (w *pkgWriter) write(tb testing.TB, dir string, name string) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, w.bytes(), 0o600); err != nil {
		tb.Fatal(err)
	}

	return path
}

// boolWord encodes header boolean flag.
func boolWord(v bool) uint16 {
	if v {
		return 1
	}

	return 0
}

// packEntry builds the four entry words for given fields.
// startOffset must be a multiple of 16.
func packEntry(discriminator uint32, typ EntryType, subtype uint8, startBlock, startOffset, fileSize uint32) [4]uint32 {
	return [4]uint32{
		discriminator,
		uint32(typ)<<9 | uint32(subtype)<<6,
		startBlock&0x3FFF | ((startOffset>>4)&0x3FFF)<<14 | (fileSize&0xF)<<28,
		(fileSize >> 4) & 0x3FFFFFF,
	}
}

// blockSpec describes how decoded block content is stored.
type blockSpec struct {
	codec   string
	encrypt bool
	altKey  bool
}

// encodeBlock compresses and encrypts content like the package writer does.
func encodeBlock(tb testing.TB, content []byte, archiveID uint16, spec blockSpec) ([]byte, [blockTagSize]byte, uint16) {
	tb.Helper()

	var (
		flags uint16
		tag   [blockTagSize]byte
	)

	raw := content
	if spec.codec != "" && spec.codec != CodecNone {
		raw = compressForTest(tb, spec.codec, content)
		flags |= BlockFlagCompressed
	}

	if spec.encrypt {
		key := DefaultKey
		if spec.altKey {
			key = DefaultAlternateKey
			flags |= BlockFlagAlternateKey
		}

		raw, tag = sealForTest(tb, key, testNonce(archiveID), raw)
		flags |= BlockFlagEncrypted
	}

	return raw, tag, flags
}

// compressForTest compresses content with named bundled codec.
func compressForTest(tb testing.TB, codec string, content []byte) []byte {
	tb.Helper()

	switch codec {
	case CodecLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(content)))
		n, err := lz4.CompressBlock(content, dst, nil)
		if err != nil {
			tb.Fatalf("lz4 compress: %v", err)
		}
		if n == 0 {
			tb.Fatal("lz4 compress: content is incompressible")
		}

		return dst[:n]
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			tb.Fatalf("zstd writer: %v", err)
		}
		defer func() { _ = enc.Close() }()

		return enc.EncodeAll(content, nil)
	case CodecLZSS:
		packed, err := lzss.Compress(content, lzss.DefaultCompressOptions())
		if err != nil {
			tb.Fatalf("lzss compress: %v", err)
		}

		out := make([]byte, lzssLengthPrefix, lzssLengthPrefix+len(packed))
		binary.LittleEndian.PutUint32(out, uint32(len(content)))
		return append(out, packed...)
	default:
		tb.Fatalf("unknown codec %q", codec)
		return nil
	}
}

// testNonce derives nonce with default options.
func testNonce(archiveID uint16) [NonceSize]byte {
	nonce := NonceBaseBeyondLight
	nonce[0] ^= byte(archiveID >> 8)
	nonce[1] ^= DefaultNonceXor
	nonce[11] ^= byte(archiveID)
	return nonce
}

// sealForTest encrypts with AES-GCM and splits detached tag.
func sealForTest(tb testing.TB, key []byte, nonce [NonceSize]byte, plaintext []byte) ([]byte, [blockTagSize]byte) {
	tb.Helper()

	block, err := aes.NewCipher(key)
	if err != nil {
		tb.Fatal(err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		tb.Fatal(err)
	}

	sealed := gcm.Seal(nil, nonce[:], plaintext, nil)
	var tag [blockTagSize]byte
	copy(tag[:], sealed[len(plaintext):])
	return sealed[:len(plaintext)], tag
}

// patternBytes returns compressible deterministic content.
func patternBytes(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i/7) ^ seed
	}

	return out
}

// newTestResolver builds resolver over dir with given decompressor.
func newTestResolver(tb testing.TB, dir string, dec Decompressor) *Resolver {
	tb.Helper()

	codec, err := NewBlockCodec(CodecOptions{Decompressor: dec})
	if err != nil {
		tb.Fatalf("NewBlockCodec: %v", err)
	}

	r, err := NewResolver(dir, ResolverOptions{Codec: codec})
	if err != nil {
		tb.Fatalf("NewResolver: %v", err)
	}

	return r
}

// writeSimpleGroup writes base_0..base_<patches-1> files for archive id with one
// raw entry of content in each revision and returns paths.
func writeSimpleGroup(tb testing.TB, dir string, base string, archiveID uint16, patches int) []string {
	tb.Helper()

	paths := make([]string, 0, patches)
	for p := range patches {
		w := newPkgWriter(archiveID, uint16(p))
		content := patternBytes(64+p, byte(p))
		raw, tag, flags := encodeBlock(tb, content, archiveID, blockSpec{})
		w.addBlock(raw, tag, flags)
		w.addEntry(packEntry(0x80800000+uint32(p), EntryTypeRawData, 0, 0, 0, uint32(len(content))))
		paths = append(paths, w.write(tb, dir, base+"_"+itoa(p)+".pkg"))
	}

	return paths
}

// itoa formats small non-negative int.
func itoa(v int) string {
	if v == 0 {
		return "0"
	}

	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}

	return string(buf[i:])
}
