// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package tiger

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1" //nolint:gosec // Block table stores SHA1 content hashes.
	"fmt"
)

// NonceSize is AES-GCM nonce length used by package blocks.
const NonceSize = 12

// DefaultNonceXor is xor constant applied to nonce byte 1.
const DefaultNonceXor = 0x26

var (
	// DefaultKey is primary block key.
	DefaultKey = []byte{
		0xD6, 0x2A, 0xB2, 0xC1, 0x0C, 0xC0, 0x1B, 0xC5,
		0x35, 0xDB, 0x7B, 0x86, 0x55, 0xC7, 0xDC, 0x3B,
	}
	// DefaultAlternateKey is block key selected by BlockFlagAlternateKey.
	DefaultAlternateKey = []byte{
		0x3A, 0x4A, 0x5D, 0x36, 0x73, 0xA6, 0x60, 0x58,
		0x7E, 0x63, 0xE6, 0x76, 0xE4, 0x08, 0x92, 0xB5,
	}

	// NonceBaseBeyondLight is nonce base of current package revisions.
	NonceBaseBeyondLight = [NonceSize]byte{0x84, 0xEA, 0x11, 0xC0, 0xAC, 0xAB, 0xFA, 0x20, 0x33, 0x11, 0x26, 0x99}
	// NonceBaseLegacy is nonce base of older package revisions.
	NonceBaseLegacy = [NonceSize]byte{0x84, 0xDF, 0x11, 0xC0, 0xAC, 0xAB, 0xFA, 0x20, 0x33, 0x11, 0x26, 0x99}
)

// CodecOptions configures block decryption and decompression.
type CodecOptions struct {
	// Decompressor decodes compressed blocks; nil fails on compressed blocks.
	Decompressor Decompressor `json:"-" yaml:"-"`
	// Key is primary AES key (16 or 32 bytes); default DefaultKey.
	Key []byte `json:"-" yaml:"-"`
	// AlternateKey is alternate AES key; default DefaultAlternateKey.
	AlternateKey []byte `json:"-" yaml:"-"`
	// NonceBase is nonce before archive id mixing; zero means NonceBaseBeyondLight.
	NonceBase [NonceSize]byte `json:"-" yaml:"-"`
	// NonceXor is xor constant for nonce byte 1; zero means DefaultNonceXor.
	NonceXor byte `json:"nonce_xor,omitempty" yaml:"nonce_xor,omitempty"`
	// VerifyHash checks SHA1 of stored block bytes against block hash before decoding.
	VerifyHash bool `json:"verify_hash,omitempty" yaml:"verify_hash,omitempty"`
}

// applyDefaults fills zero-valued codec options with defaults.
func (opts *CodecOptions) applyDefaults() {
	if len(opts.Key) == 0 {
		opts.Key = DefaultKey
	}

	if len(opts.AlternateKey) == 0 {
		opts.AlternateKey = DefaultAlternateKey
	}

	if opts.NonceBase == ([NonceSize]byte{}) {
		opts.NonceBase = NonceBaseBeyondLight
	}

	if opts.NonceXor == 0 {
		opts.NonceXor = DefaultNonceXor
	}
}

// BlockCodec decrypts and decompresses stored blocks. Safe for concurrent use.
type BlockCodec struct {
	decompressor Decompressor
	aeads        [2]cipher.AEAD
	nonceBase    [NonceSize]byte
	nonceXor     byte
	verifyHash   bool
}

// NewBlockCodec builds block codec from options.
func NewBlockCodec(opts CodecOptions) (*BlockCodec, error) {
	opts.applyDefaults()

	c := &BlockCodec{
		decompressor: opts.Decompressor,
		nonceBase:    opts.NonceBase,
		nonceXor:     opts.NonceXor,
		verifyHash:   opts.VerifyHash,
	}

	for i, key := range [][]byte{opts.Key, opts.AlternateKey} {
		aead, err := newBlockAEAD(key)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}

		c.aeads[i] = aead
	}

	return c, nil
}

// newBlockAEAD creates AES-GCM with 16-byte tags for one key.
func newBlockAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}

// WithNonceBase returns codec copy using another nonce base.
func (c *BlockCodec) WithNonceBase(base [NonceSize]byte) *BlockCodec {
	out := *c
	out.nonceBase = base
	return &out
}

// NonceBase returns configured nonce base.
func (c *BlockCodec) NonceBase() [NonceSize]byte {
	return c.nonceBase
}

// Nonce derives block nonce for archive id.
func (c *BlockCodec) Nonce(archiveID uint16) [NonceSize]byte {
	nonce := c.nonceBase
	nonce[0] ^= byte(archiveID >> 8)
	nonce[1] ^= c.nonceXor
	nonce[11] ^= byte(archiveID)
	return nonce
}

// Decrypt authenticates and decrypts stored block bytes.
// Blocks without the encrypted flag are returned unchanged.
func (c *BlockCodec) Decrypt(ciphertext []byte, archiveID uint16, block Block) ([]byte, error) {
	if !block.IsEncrypted() {
		return ciphertext, nil
	}

	aead := c.aeads[0]
	if block.UsesAlternateKey() {
		aead = c.aeads[1]
	}

	nonce := c.Nonce(archiveID)
	sealed := make([]byte, 0, len(ciphertext)+blockTagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, block.Tag[:]...)

	plaintext, err := aead.Open(sealed[:0], nonce[:], sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: archive 0x%04x block at 0x%x (alternate key %t)", ErrAuthentication, archiveID, block.Offset, block.UsesAlternateKey())
	}

	return plaintext, nil
}

// Decompress decodes one block into at most BlockSize bytes.
// Blocks without the compressed flag are returned unchanged.
func (c *BlockCodec) Decompress(src []byte, block Block) ([]byte, error) {
	if !block.IsCompressed() {
		return src, nil
	}

	if c.decompressor == nil {
		return nil, fmt.Errorf("%w: no decompressor configured", ErrDecompression)
	}

	out, err := c.decompressor.Decompress(src, BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompression, err)
	}

	if len(out) > BlockSize {
		return nil, fmt.Errorf("%w: produced %d bytes, block limit %d", ErrDecompression, len(out), BlockSize)
	}

	return out, nil
}

// Decode runs stored block bytes through hash check, decryption, and decompression.
func (c *BlockCodec) Decode(raw []byte, archiveID uint16, block Block) ([]byte, error) {
	if c.verifyHash {
		if err := VerifyBlockHash(raw, block); err != nil {
			return nil, err
		}
	}

	plain, err := c.Decrypt(raw, archiveID, block)
	if err != nil {
		return nil, err
	}

	return c.Decompress(plain, block)
}

// VerifyBlockHash checks SHA1 of stored block bytes against block hash.
func VerifyBlockHash(raw []byte, block Block) error {
	sum := sha1.Sum(raw) //nolint:gosec // Block table stores SHA1 content hashes.
	if !bytes.Equal(sum[:], block.Hash[:]) {
		return fmt.Errorf("%w: block at 0x%x", ErrHashMismatch, block.Offset)
	}

	return nil
}
