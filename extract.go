// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package tiger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"
)

// extractStats accumulates counters shared by extraction workers.
type extractStats struct {
	archives atomic.Int64
	entries  atomic.Int64
	skipped  atomic.Int64
	reused   atomic.Int64
	bytes    atomic.Int64
}

// Extract writes selected entries of selected archives to dstDir/<base name>/<entry name><ext>.
// Archives are processed in parallel by MaxWorkers, one EntryReader per archive.
// Entry failures are reported to OnEntryError and skipped unless StopOnError is set.
// Callbacks may be called concurrently.
func (r *Resolver) Extract(ctx context.Context, dstDir string, opts ExtractOptions) (ExtractResult, error) {
	if r == nil {
		return ExtractResult{}, ErrNilResolver
	}

	opts.applyDefaults()
	start := time.Now()

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	archives := opts.Archives
	if archives == nil {
		archives = r.Masters("")
	}

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return ExtractResult{}, fmt.Errorf("resolve output dir: %w", err)
	}

	if err := os.MkdirAll(dstRootAbs, 0o750); err != nil {
		return ExtractResult{}, fmt.Errorf("create output dir: %w", err)
	}

	var stats extractStats
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, file := range archives {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			return r.extractArchive(gctx, dstRootAbs, file, opts, &stats)
		})
	}

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	result := ExtractResult{
		Archives: int(stats.archives.Load()),
		Entries:  int(stats.entries.Load()),
		Skipped:  int(stats.skipped.Load()),
		Reused:   int(stats.reused.Load()),
		Bytes:    stats.bytes.Load(),
		Duration: time.Since(start),
	}

	r.logger.Debug("extract finished",
		"archives", result.Archives, "entries", result.Entries, "skipped", result.Skipped, "reused", result.Reused, "bytes", result.Bytes)
	return result, err
}

// extractArchive writes selected entries of one archive file.
func (r *Resolver) extractArchive(ctx context.Context, dstRootAbs string, file *ArchiveFile, opts ExtractOptions, stats *extractStats) error {
	entries, err := file.entries()
	if err != nil {
		return fmt.Errorf("read entries: %w", err)
	}

	archiveID, err := file.ArchiveID()
	if err != nil {
		return err
	}

	dirName, err := normalizeExtractDirName(file.BaseName())
	if err != nil {
		return fmt.Errorf("%s: %w", file.Name(), err)
	}

	indices := opts.Filter.Select(entries)
	if len(indices) == 0 {
		stats.archives.Add(1)
		return nil
	}

	outDir := filepath.Join(dstRootAbs, dirName)
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("create output directory %s: %w", outDir, err)
	}

	er := r.NewEntryReader()
	for _, index := range indices {
		if err := ctx.Err(); err != nil {
			return err
		}

		outPath := filepath.Join(outDir, EntryName(archiveID, index)+opts.Extension)
		done, err := extractEntryToFile(er, file, index, entries[index], outPath, opts)
		if err != nil {
			if opts.StopOnError {
				return err
			}

			stats.skipped.Add(1)
			r.logger.Debug("skip entry", "archive", file.Name(), "index", index, "error", err)
			if opts.OnEntryError != nil {
				opts.OnEntryError(file, index, err)
			}

			continue
		}

		if done.Reused {
			stats.reused.Add(1)
		} else {
			stats.entries.Add(1)
			stats.bytes.Add(done.Written)
		}
		if opts.OnEntryDone != nil {
			opts.OnEntryDone(done)
		}
	}

	stats.archives.Add(1)
	return nil
}

// extractEntryToFile reconstructs one entry into outPath following opts.FileMode.
func extractEntryToFile(er *EntryReader, file *ArchiveFile, index int, entry Entry, outPath string, opts ExtractOptions) (ExtractProgress, error) {
	done := ExtractProgress{
		File:       file,
		Index:      index,
		Entry:      entry,
		OutputPath: outPath,
	}

	if opts.FileMode == ExtractFileModeOverwriteSmart {
		reused, err := reuseExtracted(outPath, int64(entry.FileSize), opts.Digest, &done)
		if err != nil {
			return ExtractProgress{}, fmt.Errorf("inspect %s: %w", outPath, err)
		}
		if reused {
			return done, nil
		}
	}

	out, err := openExtractFile(outPath, opts.FileMode)
	if err != nil {
		return ExtractProgress{}, fmt.Errorf("open %s: %w", outPath, err)
	}

	var w io.Writer = out
	var hasher *blake3.Hasher
	if opts.Digest {
		hasher = blake3.New()
		w = io.MultiWriter(out, hasher)
	}

	written, err := er.WriteEntry(w, file, index)
	if err != nil {
		out.abort()
		return ExtractProgress{}, err
	}

	if err := out.commit(); err != nil {
		return ExtractProgress{}, fmt.Errorf("finish %s: %w", outPath, err)
	}

	done.Written = written
	if hasher != nil {
		copy(done.Digest[:], hasher.Sum(nil))
	}

	return done, nil
}

// reuseExtracted reports whether path already holds a regular file of entry size.
// With digest set the existing bytes are hashed into done.
func reuseExtracted(path string, size int64, digest bool, done *ExtractProgress) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if !info.Mode().IsRegular() || info.Size() != size {
		return false, nil
	}

	if digest {
		f, err := os.Open(path)
		if err != nil {
			return false, err
		}

		hasher := blake3.New()
		_, err = io.Copy(hasher, f)
		_ = f.Close()
		if err != nil {
			return false, err
		}

		copy(done.Digest[:], hasher.Sum(nil))
	}

	done.Written = size
	done.Reused = true
	return true, nil
}

// extractOutput is output file of one entry.
type extractOutput struct {
	*os.File
	// path is final output path.
	path string
	// staged marks a temporary sibling renamed onto path by commit.
	staged bool
}

// openExtractFile opens output for path according to file mode.
// Auto and overwrite_smart stage into a temporary sibling so a failed entry
// never replaces an existing output.
func openExtractFile(path string, mode ExtractFileMode) (*extractOutput, error) {
	switch mode {
	case ExtractFileModeAuto, ExtractFileModeOverwriteSmart:
		f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
		if err != nil {
			return nil, err
		}

		return &extractOutput{File: f, path: path, staged: true}, nil
	case ExtractFileModeTruncate:
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		if err != nil {
			return nil, err
		}

		return &extractOutput{File: f, path: path}, nil
	case ExtractFileModeCreateOnly:
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return nil, err
		}

		return &extractOutput{File: f, path: path}, nil
	default:
		return nil, fmt.Errorf("unknown extract file mode %q", mode)
	}
}

// commit closes output and moves a staged file into place.
func (o *extractOutput) commit() error {
	if err := o.Close(); err != nil {
		_ = os.Remove(o.Name())
		return err
	}

	if !o.staged {
		return nil
	}

	if err := os.Rename(o.Name(), o.path); err != nil {
		_ = os.Remove(o.Name())
		return err
	}

	return nil
}

// abort closes output and removes written bytes.
func (o *extractOutput) abort() {
	_ = o.Close()
	_ = os.Remove(o.Name())
}

// normalizeExtractDirName rejects group names unusable as one directory level.
func normalizeExtractDirName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "", name == ".", name == "..":
		return "", ErrInvalidExtractPath
	case strings.ContainsAny(name, "/\\\x00"):
		return "", ErrInvalidExtractPath
	}

	return name, nil
}
