// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package tiger

import (
	"encoding/binary"
	"fmt"
	"io"
)

// byteCursor performs absolute little-endian reads over a bounded random-access source.
type byteCursor struct {
	ra   io.ReaderAt
	size int64
}

// newByteCursor wraps ReaderAt with known total size.
func newByteCursor(ra io.ReaderAt, size int64) byteCursor {
	return byteCursor{ra: ra, size: size}
}

// bytes reads n bytes at absolute offset off.
func (c byteCursor) bytes(off int64, n int64) ([]byte, error) {
	if off < 0 || n < 0 || off > c.size || n > c.size-off {
		return nil, fmt.Errorf("%w: read %d bytes at 0x%x past end 0x%x: %w", ErrFormat, n, off, c.size, io.ErrUnexpectedEOF)
	}

	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}

	if _, err := c.ra.ReadAt(buf, off); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: read at 0x%x: %w", ErrFormat, off, io.ErrUnexpectedEOF)
		}

		return nil, fmt.Errorf("read at 0x%x: %w", off, err)
	}

	return buf, nil
}

// u8 reads one byte at off.
func (c byteCursor) u8(off int64) (uint8, error) {
	b, err := c.bytes(off, 1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

// u16 reads little-endian uint16 at off.
func (c byteCursor) u16(off int64) (uint16, error) {
	b, err := c.bytes(off, 2)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint16(b), nil
}

// u32 reads little-endian uint32 at off.
func (c byteCursor) u32(off int64) (uint32, error) {
	b, err := c.bytes(off, 4)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b), nil
}

// u64 reads little-endian uint64 at off.
func (c byteCursor) u64(off int64) (uint64, error) {
	b, err := c.bytes(off, 8)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b), nil
}
