// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

/*
Package tiger provides read-only access to patch-layered, encrypted, and
compressed game package files (".pkg"). It discovers the package set in a
directory, resolves which patch revision physically holds each storage block,
decrypts and decompresses blocks, and reassembles entries byte-exactly.

Package layout (summary):
  - files are named <prefix>_<...>_<patch>.pkg; files sharing a base name form
    one archive group ordered by patch, the last one is the master revision;
  - each file has a fixed header, an entry table (16-byte packed records), and
    a block table (48-byte records);
  - an entry spans one or more 256 KiB blocks starting at an in-block offset;
  - a block may live in another patch revision of its group than the file
    owning the block table;
  - blocks are optionally AES-GCM encrypted, then optionally compressed.

# Resolving

Scan a packages directory once and look up archives by name or id:

	r, err := tiger.NewResolver("packages", tiger.ResolverOptions{})
	if err != nil {
	    return err
	}
	master, err := r.Current(0x09be)
	if err != nil {
	    return err
	}
	older, err := r.AtPatch(0x09be, 1)
	if err != nil {
	    return err
	}
	_, _ = master, older

Iterate master revisions, optionally restricted by substring:

	for file := range r.Stream("_ui_") {
	    entries, err := file.Entries()
	    if err != nil {
	        return err
	    }
	    _ = entries
	}

# Reading entries

Compressed blocks need a Decompressor. Bundled decoders cover Oodle (through
the native oo2core library, Windows only), LZ4 block, zstd, and
length-prefixed LZSS; other codecs plug in through DecompressorFunc:

	codec, err := tiger.NewBlockCodec(tiger.CodecOptions{
	    Decompressor: tiger.Oodle{},
	})
	if err != nil {
	    return err
	}
	r, err := tiger.NewResolver("packages", tiger.ResolverOptions{Codec: codec})
	if err != nil {
	    return err
	}
	x, err := r.ReadEntry(master, 12)
	if err != nil {
	    return err
	}
	_ = x.Data

For bulk scans create one EntryReader per worker; it keeps the last decoded
block so neighbouring entries sharing a block decode it once:

	er := r.NewEntryReader()
	for i := range n {
	    x, err := er.ReadEntry(master, i)
	    if err != nil {
	        continue // log and skip
	    }
	    _ = x
	}

Entries reference each other by 32-bit Reference values:

	ref := tiger.MustEncodeReference(0x09be, 0x12)
	x, err = r.ReadReference(ref)

# Extracting

Write selected entries of all master revisions to a directory:

	res, err := r.Extract(ctx, "out", tiger.ExtractOptions{
	    Filter:     tiger.EntryFilter{Types: []tiger.EntryType{tiger.EntryTypeVideo}},
	    MaxWorkers: 8,
	})
	if err != nil {
	    return err
	}
	_ = res.Entries

# Errors

Failures wrap sentinel errors: ErrNotFound, ErrFormat, ErrAuthentication,
ErrDecompression, ErrReconstruction, and ErrTypeMismatch. Nothing is retried;
bulk callers are expected to log and skip failed entries.
*/
package tiger
