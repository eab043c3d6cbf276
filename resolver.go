// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package tiger

import (
	"cmp"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ArchiveGroup is all package files sharing one base name, ordered by ascending patch.
// The last member is the master revision.
type ArchiveGroup struct {
	// name is shared base name.
	name string
	// files are ordered by ascending patch number.
	files []*ArchiveFile
	// id is declared archive id of the oldest member.
	id uint16
}

// Name returns group base name.
func (g *ArchiveGroup) Name() string {
	return g.name
}

// ID returns archive id shared by all group members.
func (g *ArchiveGroup) ID() uint16 {
	return g.id
}

// Len returns number of patch revisions in group.
func (g *ArchiveGroup) Len() int {
	return len(g.files)
}

// Master returns the highest-patch member.
func (g *ArchiveGroup) Master() *ArchiveFile {
	return g.files[len(g.files)-1]
}

// At returns member at patch position. The position is an index into the
// sorted sequence, not a sparse patch number.
func (g *ArchiveGroup) At(patch int) (*ArchiveFile, error) {
	if patch < 0 || patch >= len(g.files) {
		return nil, fmt.Errorf("%w: patch %d of %s (%d revisions)", ErrNotFound, patch, g.name, len(g.files))
	}

	return g.files[patch], nil
}

// Files returns a copy of members in ascending patch order.
func (g *ArchiveGroup) Files() []*ArchiveFile {
	return slices.Clone(g.files)
}

// Resolver serves package directory topology and extraction. Built once by
// NewResolver and read-only afterwards; safe for concurrent use.
type Resolver struct {
	// codec decodes stored blocks.
	codec *BlockCodec
	// logger receives diagnostic events.
	logger *slog.Logger
	// byName indexes groups by base name.
	byName map[string]*ArchiveGroup
	// byID indexes groups by declared archive id.
	byID map[uint16]*ArchiveGroup
	// dir is scanned packages directory.
	dir string
	// groups are sorted by base name.
	groups []*ArchiveGroup
}

// NewResolver scans dir for package files and builds archive groups.
// A missing directory or a directory without package files fails with ErrNoArchives.
func NewResolver(dir string, opts ResolverOptions) (*Resolver, error) {
	opts.applyDefaults()

	matcher, err := newArchiveMatcher(opts.Rules, opts.RuleOptions)
	if err != nil {
		return nil, err
	}

	codec := opts.Codec
	if codec == nil {
		codec, err = NewBlockCodec(CodecOptions{})
		if err != nil {
			return nil, err
		}
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrNoArchives, dir, err)
	}

	r := &Resolver{
		codec:  codec,
		logger: opts.Logger,
		byName: make(map[string]*ArchiveGroup),
		byID:   make(map[uint16]*ArchiveGroup),
		dir:    dir,
	}

	total := 0
	for _, de := range dirEntries {
		if de.IsDir() || !hasExtension(de.Name(), opts.Extension) {
			continue
		}

		file := NewArchiveFile(filepath.Join(dir, de.Name()))
		if file.NamePatch() < 0 {
			r.logger.Warn("skip package without patch suffix", "name", de.Name())
			continue
		}

		if !matcher.Match(file.BaseName()) {
			continue
		}

		group := r.byName[file.BaseName()]
		if group == nil {
			group = &ArchiveGroup{name: file.BaseName()}
			r.byName[group.name] = group
			r.groups = append(r.groups, group)
		}

		group.files = append(group.files, file)
		total++
	}

	if len(r.groups) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoArchives, dir)
	}

	slices.SortFunc(r.groups, func(a, b *ArchiveGroup) int {
		return strings.Compare(a.name, b.name)
	})

	for _, group := range r.groups {
		slices.SortFunc(group.files, func(a, b *ArchiveFile) int {
			return cmp.Compare(a.NamePatch(), b.NamePatch())
		})

		id, err := group.files[0].ArchiveID()
		if err != nil {
			return nil, fmt.Errorf("resolve archive id of %s: %w", group.name, err)
		}

		group.id = id
		if owner, exists := r.byID[id]; exists {
			r.logger.Warn("archive id collision", "id", fmt.Sprintf("0x%04x", id), "owner", owner.name, "group", group.name)
			continue
		}

		r.byID[id] = group
	}

	r.logger.Debug("packages resolved", "dir", dir, "files", total, "groups", len(r.groups))
	return r, nil
}

// Dir returns scanned packages directory.
func (r *Resolver) Dir() string {
	return r.dir
}

// Codec returns block codec used for extraction.
func (r *Resolver) Codec() *BlockCodec {
	return r.codec
}

// WithCodec returns resolver sharing topology but decoding with another codec.
func (r *Resolver) WithCodec(codec *BlockCodec) *Resolver {
	out := *r
	out.codec = codec
	return &out
}

// Groups returns all groups sorted by base name.
func (r *Resolver) Groups() []*ArchiveGroup {
	return slices.Clone(r.groups)
}

// GroupByName returns group by base name, for example "w64_ui_09be",
// or by file name of any member, for example "w64_ui_09be_3.pkg".
func (r *Resolver) GroupByName(name string) (*ArchiveGroup, error) {
	group, ok := r.byName[name]
	if !ok {
		group, ok = r.byName[BaseName(name)]
	}
	if !ok {
		return nil, fmt.Errorf("%w: package %q", ErrNotFound, name)
	}

	return group, nil
}

// GroupByID returns group by declared archive id.
func (r *Resolver) GroupByID(id uint16) (*ArchiveGroup, error) {
	group, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: archive id 0x%04x", ErrNotFound, id)
	}

	return group, nil
}

// Current returns master revision of archive id.
func (r *Resolver) Current(id uint16) (*ArchiveFile, error) {
	group, err := r.GroupByID(id)
	if err != nil {
		return nil, err
	}

	return group.Master(), nil
}

// AtPatch returns archive id member at patch position.
func (r *Resolver) AtPatch(id uint16, patch int) (*ArchiveFile, error) {
	group, err := r.GroupByID(id)
	if err != nil {
		return nil, err
	}

	return group.At(patch)
}

// Stream yields master revision of every group whose base name contains filter.
// Order is by base name.
func (r *Resolver) Stream(filter string) iter.Seq[*ArchiveFile] {
	return func(yield func(*ArchiveFile) bool) {
		for _, group := range r.groups {
			if filter != "" && !strings.Contains(group.name, filter) {
				continue
			}

			if !yield(group.Master()) {
				return
			}
		}
	}
}

// Masters collects Stream into a slice.
func (r *Resolver) Masters(filter string) []*ArchiveFile {
	return slices.Collect(r.Stream(filter))
}
