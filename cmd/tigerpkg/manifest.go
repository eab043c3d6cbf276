// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package main

import (
	"cmp"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/woozymasta/tiger"
)

// manifest records one scan run.
type manifest struct {
	Packages string            `yaml:"packages"`
	Output   string            `yaml:"output"`
	Duration string            `yaml:"duration"`
	Files    []manifestFile    `yaml:"files"`
	Failures []manifestFailure `yaml:"failures,omitempty"`
	Archives int               `yaml:"archives"`
	Entries  int               `yaml:"entries"`
	Skipped  int               `yaml:"skipped"`
	Reused   int               `yaml:"reused,omitempty"`
	Bytes    int64             `yaml:"bytes"`
}

// manifestFile is one extracted entry.
type manifestFile struct {
	Path    string `yaml:"path"`
	Archive string `yaml:"archive"`
	Type    string `yaml:"type"`
	Blake3  string `yaml:"blake3,omitempty"`
	Index   int    `yaml:"index"`
	Size    int64  `yaml:"size"`
	Reused  bool   `yaml:"reused,omitempty"`
}

// manifestFailure is one skipped entry.
type manifestFailure struct {
	Archive string `yaml:"archive"`
	Error   string `yaml:"error"`
	Index   int    `yaml:"index"`
}

// manifestCollector gathers extraction callbacks from concurrent workers.
type manifestCollector struct {
	m      manifest
	outAbs string
	digest bool
	mu     sync.Mutex
}

// newManifestCollector creates collector for scan of packagesDir into outDir.
func newManifestCollector(packagesDir string, outDir string, digest bool) *manifestCollector {
	outAbs, err := filepath.Abs(outDir)
	if err != nil {
		outAbs = outDir
	}

	return &manifestCollector{
		m:      manifest{Packages: packagesDir, Output: outDir},
		outAbs: outAbs,
		digest: digest,
	}
}

// done records one written entry.
func (c *manifestCollector) done(p tiger.ExtractProgress) {
	rel, err := filepath.Rel(c.outAbs, p.OutputPath)
	if err != nil {
		rel = p.OutputPath
	}

	f := manifestFile{
		Path:    filepath.ToSlash(rel),
		Archive: p.File.Name(),
		Type:    p.Entry.Type.String(),
		Index:   p.Index,
		Size:    p.Written,
		Reused:  p.Reused,
	}
	if c.digest {
		f.Blake3 = hex.EncodeToString(p.Digest[:])
	}

	c.mu.Lock()
	c.m.Files = append(c.m.Files, f)
	c.mu.Unlock()
}

// failed records one skipped entry.
func (c *manifestCollector) failed(file *tiger.ArchiveFile, index int, err error) {
	c.mu.Lock()
	c.m.Failures = append(c.m.Failures, manifestFailure{Archive: file.Name(), Index: index, Error: err.Error()})
	c.mu.Unlock()
}

// snapshot returns sorted manifest with run totals.
func (c *manifestCollector) snapshot(res tiger.ExtractResult) manifest {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.m
	m.Files = slices.Clone(c.m.Files)
	m.Failures = slices.Clone(c.m.Failures)
	slices.SortFunc(m.Files, func(a, b manifestFile) int {
		return cmp.Compare(a.Path, b.Path)
	})
	slices.SortFunc(m.Failures, func(a, b manifestFailure) int {
		return cmp.Or(cmp.Compare(a.Archive, b.Archive), cmp.Compare(a.Index, b.Index))
	})

	m.Archives = res.Archives
	m.Entries = res.Entries
	m.Skipped = res.Skipped
	m.Reused = res.Reused
	m.Bytes = res.Bytes
	m.Duration = res.Duration.String()
	return m
}

// write stores manifest YAML at path.
func (c *manifestCollector) write(path string, res tiger.ExtractResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}

	if err := writeYAML(f, c.snapshot(res)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write manifest: %w", err)
	}

	return f.Close()
}
