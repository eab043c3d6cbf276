// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"github.com/woozymasta/tiger"
	"gopkg.in/yaml.v3"
)

// groupInfo is one row of list output.
type groupInfo struct {
	Name     string `yaml:"name"`
	ID       string `yaml:"id"`
	Master   string `yaml:"master"`
	Language string `yaml:"language"`
	Patches  int    `yaml:"patches"`
	Entries  uint32 `yaml:"entries"`
	Blocks   uint32 `yaml:"blocks"`
}

func listCommand() *command {
	return &command{
		name:    "list",
		summary: "List package groups with id, revisions, and master header",
		flags: func(fs *pflag.FlagSet) {
			fs.Bool("yaml", false, "print YAML instead of a table")
			fs.String("filter", "", "only groups whose base name contains this substring")
		},
		run: runList,
	}
}

func runList(_ context.Context, env *environment, args []string) error {
	if err := requireArgs(args, 0, 0, "no arguments"); err != nil {
		return err
	}

	r, err := env.cfg.openResolver(env.logger)
	if err != nil {
		return err
	}

	filter, _ := env.flags.GetString("filter")
	var infos []groupInfo
	for master := range r.Stream(filter) {
		h, err := master.Header()
		if err != nil {
			env.logger.Warn("skip package", "name", master.Name(), "error", err)
			continue
		}

		group, err := r.GroupByName(master.BaseName())
		if err != nil {
			return err
		}

		infos = append(infos, groupInfo{
			Name:     group.Name(),
			ID:       fmt.Sprintf("%04X", h.ArchiveID),
			Master:   master.Name(),
			Language: h.Language.String(),
			Patches:  group.Len(),
			Entries:  h.EntryCount,
			Blocks:   h.BlockCount,
		})
	}

	if asYAML, _ := env.flags.GetBool("yaml"); asYAML {
		return writeYAML(env.stdout, infos)
	}

	tw := tabwriter.NewWriter(env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tID\tPATCHES\tLANG\tENTRIES\tBLOCKS\tMASTER")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\t%s\n",
			info.Name, info.ID, info.Patches, info.Language, info.Entries, info.Blocks, info.Master)
	}

	return tw.Flush()
}

// entryInfo is one row of entries output.
type entryInfo struct {
	Name          string `yaml:"name"`
	Type          string `yaml:"type"`
	Discriminator string `yaml:"discriminator"`
	Reference     string `yaml:"reference"`
	Index         int    `yaml:"index"`
	Block         uint32 `yaml:"block"`
	Offset        uint32 `yaml:"offset"`
	Size          uint32 `yaml:"size"`
	Blocks        uint32 `yaml:"blocks"`
	Subtype       uint8  `yaml:"subtype"`
	Modeled       bool   `yaml:"modeled_reference"`
}

func entriesCommand() *command {
	return &command{
		name:    "entries",
		summary: "Dump entry table of one package",
		usage:   "<package name or hex id>",
		flags: func(fs *pflag.FlagSet) {
			fs.Int("patch", -1, "patch position (-1 = master)")
			fs.Bool("yaml", false, "print YAML instead of a table")
			addEntryFilterFlags(fs)
		},
		run: runEntries,
	}
}

func runEntries(_ context.Context, env *environment, args []string) error {
	if err := requireArgs(args, 1, 1, "one package"); err != nil {
		return err
	}

	r, err := env.cfg.openResolver(env.logger)
	if err != nil {
		return err
	}

	patch, _ := env.flags.GetInt("patch")
	file, err := selectFile(r, args[0], patch)
	if err != nil {
		return err
	}

	filter, err := entryFilterFromFlags(env.flags)
	if err != nil {
		return err
	}

	entries, err := file.Entries()
	if err != nil {
		return err
	}

	archiveID, err := file.ArchiveID()
	if err != nil {
		return err
	}

	infos := make([]entryInfo, 0, len(entries))
	for _, index := range filter.Select(entries) {
		e := entries[index]
		infos = append(infos, entryInfo{
			Name:          tiger.EntryName(archiveID, index),
			Type:          e.Type.String(),
			Discriminator: fmt.Sprintf("%08X", e.Discriminator),
			Reference:     e.Reference.String(),
			Modeled:       e.Reference.Modeled(),
			Index:         index,
			Block:         e.StartingBlock,
			Offset:        e.StartingBlockOffset,
			Size:          e.FileSize,
			Blocks:        e.BlockCount(),
			Subtype:       e.Subtype,
		})
	}

	if asYAML, _ := env.flags.GetBool("yaml"); asYAML {
		return writeYAML(env.stdout, infos)
	}

	tw := tabwriter.NewWriter(env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tSUB\tSIZE\tBLOCK\tOFFSET\tBLOCKS\tDISCRIMINATOR\tREFERENCE")
	for _, info := range infos {
		ref := info.Reference
		if !info.Modeled {
			ref += "?"
		}

		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			info.Name, info.Type, info.Subtype, info.Size, info.Block, info.Offset, info.Blocks, info.Discriminator, ref)
	}

	return tw.Flush()
}

// blockInfo is one row of blocks output.
type blockInfo struct {
	Flags  string `yaml:"flags"`
	Hash   string `yaml:"sha1"`
	Index  int    `yaml:"index"`
	Offset uint32 `yaml:"offset"`
	Size   uint32 `yaml:"size"`
	Patch  uint16 `yaml:"patch"`
}

func blocksCommand() *command {
	return &command{
		name:    "blocks",
		summary: "Dump block table of one package",
		usage:   "<package name or hex id>",
		flags: func(fs *pflag.FlagSet) {
			fs.Int("patch", -1, "patch position (-1 = master)")
			fs.Bool("yaml", false, "print YAML instead of a table")
		},
		run: runBlocks,
	}
}

func runBlocks(_ context.Context, env *environment, args []string) error {
	if err := requireArgs(args, 1, 1, "one package"); err != nil {
		return err
	}

	r, err := env.cfg.openResolver(env.logger)
	if err != nil {
		return err
	}

	patch, _ := env.flags.GetInt("patch")
	file, err := selectFile(r, args[0], patch)
	if err != nil {
		return err
	}

	blocks, err := file.Blocks()
	if err != nil {
		return err
	}

	infos := make([]blockInfo, len(blocks))
	for i, b := range blocks {
		infos[i] = blockInfo{
			Flags:  blockFlagString(b),
			Hash:   hex.EncodeToString(b.Hash[:]),
			Index:  i,
			Offset: b.Offset,
			Size:   b.Size,
			Patch:  b.PatchID,
		}
	}

	if asYAML, _ := env.flags.GetBool("yaml"); asYAML {
		return writeYAML(env.stdout, infos)
	}

	tw := tabwriter.NewWriter(env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tPATCH\tOFFSET\tSIZE\tFLAGS\tSHA1")
	for _, info := range infos {
		fmt.Fprintf(tw, "%d\t%d\t0x%08X\t%d\t%s\t%s\n", info.Index, info.Patch, info.Offset, info.Size, info.Flags, info.Hash)
	}

	return tw.Flush()
}

// blockFlagString renders block flags as "cea" letters, "-" when unset.
func blockFlagString(b tiger.Block) string {
	out := []byte("---")
	if b.IsCompressed() {
		out[0] = 'c'
	}
	if b.IsEncrypted() {
		out[1] = 'e'
	}
	if b.UsesAlternateKey() {
		out[2] = 'a'
	}

	return string(out)
}

func extractCommand() *command {
	return &command{
		name:    "extract",
		summary: "Extract entries by reference (ID-INDEX hex pair or raw 32-bit hex)",
		usage:   "<reference>...",
		flags: func(fs *pflag.FlagSet) {
			fs.StringP("out", "o", ".", "output directory")
			fs.String("ext", ".bin", "output file extension")
			fs.Bool("stdout", false, "write entry bytes to stdout")
		},
		run: runExtract,
	}
}

func runExtract(ctx context.Context, env *environment, args []string) error {
	if err := requireArgs(args, 1, -1, "at least one reference"); err != nil {
		return err
	}

	toStdout, _ := env.flags.GetBool("stdout")
	outDir, _ := env.flags.GetString("out")
	ext, _ := env.flags.GetString("ext")

	r, err := env.cfg.openResolver(env.logger)
	if err != nil {
		return err
	}

	if !toStdout {
		if err := os.MkdirAll(outDir, 0o750); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	er := r.NewEntryReader()
	for _, arg := range args {
		if err := ctx.Err(); err != nil {
			return err
		}

		id, index, err := parseEntryRef(arg)
		if err != nil {
			return err
		}

		file, err := r.Current(id)
		if err != nil {
			return err
		}

		if toStdout {
			if _, err := er.WriteEntry(env.stdout, file, int(index)); err != nil {
				return err
			}

			continue
		}

		x, err := er.ReadEntry(file, int(index))
		if err != nil {
			return err
		}

		path := filepath.Join(outDir, x.Name()+ext)
		if err := os.WriteFile(path, x.Data, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}

		env.logger.Info("extracted", "entry", x.Name(), "archive", file.Name(), "bytes", len(x.Data), "path", path)
	}

	return nil
}

func scanCommand() *command {
	return &command{
		name:    "scan",
		summary: "Extract selected entries of all master revisions, logging and skipping failures",
		flags: func(fs *pflag.FlagSet) {
			fs.StringP("out", "o", "out", "output directory")
			fs.String("ext", ".bin", "output file extension")
			fs.String("filter", "", "only groups whose base name contains this substring")
			fs.String("manifest", "", "write YAML manifest of extracted entries to this file")
			fs.Bool("stop-on-error", false, "abort on first entry failure")
			addEntryFilterFlags(fs)
		},
		run: runScan,
	}
}

func runScan(ctx context.Context, env *environment, args []string) error {
	if err := requireArgs(args, 0, 0, "no arguments"); err != nil {
		return err
	}

	outDir, _ := env.flags.GetString("out")
	ext, _ := env.flags.GetString("ext")
	substr, _ := env.flags.GetString("filter")
	manifestPath, _ := env.flags.GetString("manifest")
	stopOnError, _ := env.flags.GetBool("stop-on-error")

	filter, err := entryFilterFromFlags(env.flags)
	if err != nil {
		return err
	}

	r, err := env.cfg.openResolver(env.logger)
	if err != nil {
		return err
	}

	collector := newManifestCollector(r.Dir(), outDir, env.cfg.Digest)
	res, err := r.Extract(ctx, outDir, tiger.ExtractOptions{
		Archives:    r.Masters(substr),
		Filter:      filter,
		FileMode:    tiger.ExtractFileMode(env.cfg.FileMode),
		Extension:   ext,
		MaxWorkers:  env.cfg.Workers,
		Digest:      env.cfg.Digest,
		StopOnError: stopOnError,
		OnEntryDone: collector.done,
		OnEntryError: func(file *tiger.ArchiveFile, index int, err error) {
			env.logger.Warn("skip entry", "archive", file.Name(), "index", index, "error", err)
			collector.failed(file, index, err)
		},
	})

	env.logger.Info("scan finished",
		"archives", res.Archives, "entries", res.Entries, "skipped", res.Skipped, "reused", res.Reused, "bytes", res.Bytes, "duration", res.Duration)

	if manifestPath != "" {
		if werr := collector.write(manifestPath, res); werr != nil {
			return werr
		}
	}

	return err
}

func detectNonceCommand() *command {
	return &command{
		name:    "detect-nonce",
		summary: "Detect nonce base of master revisions by authenticating an encrypted block",
		usage:   "[package name or hex id]...",
		flags: func(fs *pflag.FlagSet) {
			fs.Int("patch", -1, "patch position (-1 = master)")
		},
		run: runDetectNonce,
	}
}

func runDetectNonce(ctx context.Context, env *environment, args []string) error {
	r, err := env.cfg.openResolver(env.logger)
	if err != nil {
		return err
	}

	patch, _ := env.flags.GetInt("patch")
	var files []*tiger.ArchiveFile
	if len(args) == 0 {
		files = r.Masters("")
	}

	for _, arg := range args {
		file, err := selectFile(r, arg, patch)
		if err != nil {
			return err
		}

		files = append(files, file)
	}

	tw := tabwriter.NewWriter(env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PACKAGE\tNONCE")
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		base, err := r.DetectNonceBase(file)
		if err != nil {
			env.logger.Warn("nonce not detected", "archive", file.Name(), "error", err)
			continue
		}

		fmt.Fprintf(tw, "%s\t%s\n", file.Name(), nonceBaseName(base))
	}

	return tw.Flush()
}

// addEntryFilterFlags registers entry selection flags.
func addEntryFilterFlags(fs *pflag.FlagSet) {
	fs.IntSlice("type", nil, "only entries of these numeric types (repeatable)")
	fs.IntSlice("subtype", nil, "only entries of these numeric subtypes (repeatable)")
	fs.StringSlice("discriminator", nil, "only entries with these hex type discriminators (repeatable)")
	fs.Uint32("min-size", 0, "drop entries smaller than this size")
	fs.Bool("skip-empty", false, "drop zero-size entries")
}

// entryFilterFromFlags builds entry filter from flags registered by addEntryFilterFlags.
func entryFilterFromFlags(fs *pflag.FlagSet) (tiger.EntryFilter, error) {
	var filter tiger.EntryFilter

	types, _ := fs.GetIntSlice("type")
	for _, v := range types {
		if v < 0 || v > 0x7F {
			return filter, fmt.Errorf("entry type %d out of range", v)
		}

		filter.Types = append(filter.Types, tiger.EntryType(v))
	}

	subtypes, _ := fs.GetIntSlice("subtype")
	for _, v := range subtypes {
		if v < 0 || v > 7 {
			return filter, fmt.Errorf("entry subtype %d out of range", v)
		}

		filter.Subtypes = append(filter.Subtypes, uint8(v))
	}

	discriminators, _ := fs.GetStringSlice("discriminator")
	for _, s := range discriminators {
		v, err := strconv.ParseUint(trimHexPrefix(s), 16, 32)
		if err != nil {
			return filter, fmt.Errorf("discriminator %q: %w", s, err)
		}

		filter.Discriminators = append(filter.Discriminators, uint32(v))
	}

	filter.MinSize, _ = fs.GetUint32("min-size")
	filter.SkipEmpty, _ = fs.GetBool("skip-empty")
	return filter, nil
}

// selectFile resolves package argument and patch position; patch < 0 selects master.
func selectFile(r *tiger.Resolver, arg string, patch int) (*tiger.ArchiveFile, error) {
	group, err := resolveGroup(r, arg)
	if err != nil {
		return nil, err
	}

	if patch < 0 {
		return group.Master(), nil
	}

	return group.At(patch)
}

// resolveGroup finds group by base name, file name, or hex archive id.
func resolveGroup(r *tiger.Resolver, arg string) (*tiger.ArchiveGroup, error) {
	group, err := r.GroupByName(arg)
	if err == nil {
		return group, nil
	}

	id, perr := strconv.ParseUint(trimHexPrefix(arg), 16, 16)
	if perr != nil {
		return nil, err
	}

	return r.GroupByID(uint16(id))
}

// parseEntryRef parses "09BE-0012" pair or raw 32-bit reference in hex.
func parseEntryRef(s string) (uint16, uint16, error) {
	s = strings.TrimSpace(s)
	if idPart, indexPart, ok := strings.Cut(s, "-"); ok {
		id, err := strconv.ParseUint(trimHexPrefix(idPart), 16, 16)
		if err != nil {
			return 0, 0, fmt.Errorf("reference %q: archive id: %w", s, err)
		}

		index, err := strconv.ParseUint(trimHexPrefix(indexPart), 16, 16)
		if err != nil {
			return 0, 0, fmt.Errorf("reference %q: entry index: %w", s, err)
		}

		return uint16(id), uint16(index), nil
	}

	raw, err := strconv.ParseUint(trimHexPrefix(s), 16, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("reference %q: %w", s, err)
	}

	id, index := tiger.DecodeReference(uint32(raw))
	return id, index, nil
}

// trimHexPrefix drops optional 0x prefix.
func trimHexPrefix(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}

	return s
}

// writeYAML encodes v as YAML with two-space indent.
func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}

	return enc.Close()
}
