// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package tiger

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
)

// cachedBlock is the most recently decoded block of an EntryReader.
type cachedBlock struct {
	// owner is archive file whose block table holds the block.
	owner *ArchiveFile
	// data is decoded block content.
	data []byte
	// index is block table index.
	index uint32
}

// EntryReader reconstructs entries from stored blocks. It keeps the most
// recently decoded block, so consecutive entries sharing a block decode it once.
// An EntryReader is not safe for concurrent use; use one per worker.
type EntryReader struct {
	// r resolves patch redirection and supplies the block codec.
	r *Resolver
	// last is the most recently decoded block.
	last cachedBlock
}

// NewEntryReader creates an entry reader bound to resolver.
func (r *Resolver) NewEntryReader() *EntryReader {
	return &EntryReader{r: r}
}

// ReadEntry reconstructs one entry with a fresh reader.
func (r *Resolver) ReadEntry(file *ArchiveFile, index int) (Extracted, error) {
	if r == nil {
		return Extracted{}, ErrNilResolver
	}

	return r.NewEntryReader().ReadEntry(file, index)
}

// ReadReference reconstructs entry addressed by reference from master revision of its archive.
func (r *Resolver) ReadReference(ref Reference) (Extracted, error) {
	if r == nil {
		return Extracted{}, ErrNilResolver
	}

	return r.NewEntryReader().ReadReference(ref)
}

// ReadReference reconstructs entry addressed by reference from master revision of its archive.
func (er *EntryReader) ReadReference(ref Reference) (Extracted, error) {
	file, err := er.r.Current(ref.ArchiveID())
	if err != nil {
		return Extracted{}, fmt.Errorf("reference %s: %w", ref, err)
	}

	return er.ReadEntry(file, int(ref.EntryIndex()))
}

// ReadEntry reconstructs entry bytes into memory.
func (er *EntryReader) ReadEntry(file *ArchiveFile, index int) (Extracted, error) {
	entry, err := file.Entry(index)
	if err != nil {
		return Extracted{}, err
	}

	archiveID, err := file.ArchiveID()
	if err != nil {
		return Extracted{}, err
	}

	var buf bytes.Buffer
	buf.Grow(int(entry.FileSize))
	if _, err := er.writeEntry(&buf, file, archiveID, index, entry); err != nil {
		return Extracted{}, err
	}

	return Extracted{
		Data:       buf.Bytes(),
		ArchiveID:  archiveID,
		EntryIndex: index,
	}, nil
}

// ReadTypedEntry reconstructs entry after checking its content block discriminator.
func (er *EntryReader) ReadTypedEntry(file *ArchiveFile, index int, discriminator uint32) (Extracted, error) {
	entry, err := file.Entry(index)
	if err != nil {
		return Extracted{}, err
	}

	if err := ExpectType(entry, discriminator); err != nil {
		return Extracted{}, fmt.Errorf("%s entry %d: %w", file.Name(), index, err)
	}

	return er.ReadEntry(file, index)
}

// WriteEntry streams reconstructed entry bytes to w and returns bytes written.
func (er *EntryReader) WriteEntry(w io.Writer, file *ArchiveFile, index int) (int64, error) {
	entry, err := file.Entry(index)
	if err != nil {
		return 0, err
	}

	archiveID, err := file.ArchiveID()
	if err != nil {
		return 0, err
	}

	return er.writeEntry(w, file, archiveID, index, entry)
}

// writeEntry walks entry blocks, clips the usable range of each, and writes it to w.
func (er *EntryReader) writeEntry(w io.Writer, file *ArchiveFile, archiveID uint16, index int, entry Entry) (int64, error) {
	first := entry.StartingBlock
	last := first + entry.BlockCount()
	remaining := int64(entry.FileSize)

	var written int64
	for blockIndex := first; blockIndex < last && remaining > 0; blockIndex++ {
		data, err := er.decodedBlock(file, archiveID, blockIndex)
		if err != nil {
			return written, fmt.Errorf("%s entry %d block %d: %w", file.Name(), index, blockIndex, err)
		}

		// only the final block of an entry may decode short
		if blockIndex+1 < last && len(data) != BlockSize {
			return written, fmt.Errorf("%w: %s entry %d: inner block %d decoded to %d bytes, want %d",
				ErrDecompression, file.Name(), index, blockIndex, len(data), BlockSize)
		}

		skip := int64(0)
		if blockIndex == first {
			skip = int64(entry.StartingBlockOffset)
		}

		if skip > int64(len(data)) {
			return written, fmt.Errorf("%w: %s entry %d: offset %d past block %d of %d bytes", ErrReconstruction, file.Name(), index, skip, blockIndex, len(data))
		}

		usable := min(int64(len(data))-skip, remaining)
		n, err := w.Write(data[skip : skip+usable])
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("write %s entry %d: %w", file.Name(), index, err)
		}

		remaining -= int64(n)
	}

	if written != int64(entry.FileSize) {
		return written, fmt.Errorf("%w: %s entry %d: assembled %d bytes, declared %d", ErrReconstruction, file.Name(), index, written, entry.FileSize)
	}

	return written, nil
}

// decodedBlock returns decoded content of block index from file block table,
// reusing the last decoded block when it matches.
func (er *EntryReader) decodedBlock(file *ArchiveFile, archiveID uint16, index uint32) ([]byte, error) {
	if er.last.owner == file && er.last.index == index && er.last.data != nil {
		return er.last.data, nil
	}

	block, err := file.Block(int(index))
	if err != nil {
		return nil, err
	}

	raw, err := er.r.readStoredBlock(file, archiveID, block)
	if err != nil {
		return nil, err
	}

	data, err := er.r.codec.Decode(raw, archiveID, block)
	if err != nil {
		return nil, err
	}

	er.last = cachedBlock{owner: file, index: index, data: data}
	return data, nil
}

// patchFile resolves file holding stored bytes of block at patch position.
// The owning group is preferred over the id index so colliding ids stay correct.
func (r *Resolver) patchFile(file *ArchiveFile, archiveID uint16, patch uint16) (*ArchiveFile, error) {
	if group, ok := r.byName[file.BaseName()]; ok && slices.Contains(group.files, file) {
		return group.At(int(patch))
	}

	return r.AtPatch(archiveID, int(patch))
}

// readStoredBlock reads raw stored bytes of block from its patch file.
// The file handle is opened and closed per read.
func (r *Resolver) readStoredBlock(file *ArchiveFile, archiveID uint16, block Block) ([]byte, error) {
	src, err := r.patchFile(file, archiveID, block.PatchID)
	if err != nil {
		return nil, err
	}

	f, size, err := openFileWithSize(src.Path())
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	raw, err := newByteCursor(f, size).bytes(int64(block.Offset), int64(block.Size))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name(), err)
	}

	return raw, nil
}

// DetectNonceBase finds which candidate nonce base authenticates the first
// encrypted block of file. Candidates default to the two known bases.
func (r *Resolver) DetectNonceBase(file *ArchiveFile, candidates ...[NonceSize]byte) ([NonceSize]byte, error) {
	if r == nil {
		return [NonceSize]byte{}, ErrNilResolver
	}

	if len(candidates) == 0 {
		candidates = [][NonceSize]byte{NonceBaseBeyondLight, NonceBaseLegacy}
	}

	archiveID, err := file.ArchiveID()
	if err != nil {
		return [NonceSize]byte{}, err
	}

	blocks, err := file.blocks()
	if err != nil {
		return [NonceSize]byte{}, err
	}

	for _, block := range blocks {
		if !block.IsEncrypted() {
			continue
		}

		raw, err := r.readStoredBlock(file, archiveID, block)
		if err != nil {
			return [NonceSize]byte{}, err
		}

		for _, base := range candidates {
			_, err := r.codec.WithNonceBase(base).Decrypt(raw, archiveID, block)
			if err == nil {
				return base, nil
			}

			if !errors.Is(err, ErrAuthentication) {
				return [NonceSize]byte{}, err
			}
		}

		return [NonceSize]byte{}, fmt.Errorf("%w: no candidate nonce base verifies %s", ErrAuthentication, file.Name())
	}

	return [NonceSize]byte{}, fmt.Errorf("%w: no encrypted block in %s", ErrNotFound, file.Name())
}
