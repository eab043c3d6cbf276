// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package tiger

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/woozymasta/lzss"
)

// Decompressor decodes one compressed block.
// Output may be shorter than maxSize only for the final partial block of a stream.
type Decompressor interface {
	Decompress(src []byte, maxSize int) ([]byte, error)
}

// DecompressorFunc adapts a function (for example a custom codec binding) to Decompressor.
type DecompressorFunc func(src []byte, maxSize int) ([]byte, error)

// Decompress calls f.
func (f DecompressorFunc) Decompress(src []byte, maxSize int) ([]byte, error) {
	return f(src, maxSize)
}

// Bundled decompressor names accepted by DecompressorByName.
const (
	CodecNone  = "none"
	CodecLZ4   = "lz4"
	CodecZstd  = "zstd"
	CodecLZSS  = "lzss"
	CodecOodle = "oodle"
)

// errOutputTooLarge means a decoder produced more than maxSize bytes.
var errOutputTooLarge = errors.New("decoded output exceeds block size")

// DecompressorByName returns one of bundled decompressors; "none" returns nil.
func DecompressorByName(name string) (Decompressor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CodecNone:
		return nil, nil
	case CodecLZ4:
		return LZ4Block{}, nil
	case CodecZstd:
		return Zstd{}, nil
	case CodecLZSS:
		return LZSS{}, nil
	case CodecOodle:
		return Oodle{}, nil
	default:
		return nil, fmt.Errorf("unknown decompressor %q", name)
	}
}

// LZ4Block decodes raw LZ4 block-format payloads.
type LZ4Block struct{}

// Decompress decodes LZ4 block into at most maxSize bytes.
func (LZ4Block) Decompress(src []byte, maxSize int) ([]byte, error) {
	dst := make([]byte, maxSize)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4: %w", err)
	}

	return dst[:n], nil
}

// zstdDecoder is shared lazily; zstd.Decoder DecodeAll is safe for concurrent use.
// Decoded size is capped at BlockSize and at the capacity passed to DecodeAll.
var zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(0),
		zstd.WithDecoderMaxMemory(BlockSize),
		zstd.WithDecodeAllCapLimit(true),
	)
})

// Zstd decodes single zstd frames.
type Zstd struct{}

// Decompress decodes zstd frame into at most maxSize bytes.
func (Zstd) Decompress(src []byte, maxSize int) ([]byte, error) {
	dec, err := zstdDecoder()
	if err != nil {
		return nil, fmt.Errorf("zstd init: %w", err)
	}

	out, err := dec.DecodeAll(src, make([]byte, 0, maxSize))
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}

	if len(out) > maxSize {
		return nil, fmt.Errorf("zstd: %w", errOutputTooLarge)
	}

	return out, nil
}

// lzssLengthPrefix is size of little-endian decoded length before LZSS stream.
const lzssLengthPrefix = 4

// LZSS decodes length-prefixed LZSS payloads: uint32 LE decoded size, then LZSS stream.
type LZSS struct{}

// Decompress decodes length-prefixed LZSS payload.
func (LZSS) Decompress(src []byte, maxSize int) ([]byte, error) {
	if len(src) < lzssLengthPrefix {
		return nil, fmt.Errorf("lzss: payload shorter than length prefix")
	}

	outLen := binary.LittleEndian.Uint32(src[:lzssLengthPrefix])
	if uint64(outLen) > uint64(maxSize) {
		return nil, fmt.Errorf("lzss: declared %d bytes: %w", outLen, errOutputTooLarge)
	}

	var out bytes.Buffer
	out.Grow(int(outLen))
	if _, err := lzss.DecompressToWriter(&out, bytes.NewReader(src[lzssLengthPrefix:]), int(outLen), nil); err != nil {
		return nil, fmt.Errorf("lzss: %w", err)
	}

	if out.Len() != int(outLen) {
		return nil, fmt.Errorf("lzss: got %d bytes, declared %d", out.Len(), outLen)
	}

	return out.Bytes(), nil
}
