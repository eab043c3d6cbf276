package tiger

import (
	"context"
	"path/filepath"
	"testing"
)

const (
	benchDefaultEntries    = 128
	benchLargeIndexEntries = 52536
)

var (
	// benchListSink prevents compiler elimination in list benchmark loops.
	benchListSink int
)

// createBenchPackage writes one archive with entries 1 KiB apart inside at most
// four lz4 blocks; large indices reuse blocks.
func createBenchPackage(b *testing.B, entries int) string {
	b.Helper()

	const id = 0x0600
	dir := b.TempDir()
	w := newPkgWriter(id, 0)

	perBlock := BlockSize / 1024
	blocks := min((entries+perBlock-1)/perBlock, 4)
	for i := range blocks {
		raw, tag, flags := encodeBlock(b, patternBytes(BlockSize, byte(i)), id, blockSpec{codec: CodecLZ4, encrypt: true})
		w.addBlock(raw, tag, flags)
	}

	for i := range entries {
		block := uint32((i / perBlock) % blocks)
		offset := uint32(i%perBlock) * 1024
		w.addEntry(packEntry(0x80800000, EntryTypeRawData, 0, block, offset, 1024))
	}

	w.write(b, dir, "w64_bench_0600_0.pkg")
	return dir
}

func BenchmarkListEntries(b *testing.B) {
	dir := createBenchPackage(b, benchLargeIndexEntries)
	path := filepath.Join(dir, "w64_bench_0600_0.pkg")

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		entries, err := ListEntries(path)
		if err != nil {
			b.Fatal(err)
		}
		benchListSink = len(entries)
	}
}

func BenchmarkReadEntrySequential(b *testing.B) {
	dir := createBenchPackage(b, benchDefaultEntries)
	r := newTestResolver(b, dir, LZ4Block{})
	file, err := r.Current(0x0600)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		er := r.NewEntryReader()
		for i := range benchDefaultEntries {
			if _, err := er.ReadEntry(file, i); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkExtract(b *testing.B) {
	dir := createBenchPackage(b, benchDefaultEntries)
	r := newTestResolver(b, dir, LZ4Block{})
	out := b.TempDir()

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		if _, err := r.Extract(context.Background(), out, ExtractOptions{MaxWorkers: 2, Digest: true}); err != nil {
			b.Fatal(err)
		}
	}
}
