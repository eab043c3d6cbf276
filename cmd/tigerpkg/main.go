// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

// tigerpkg inspects and extracts patch-layered game package sets.
//
// Usage:
//
//	tigerpkg <command> [flags] [args]
//
// Commands list package groups, dump entry and block tables, extract entries by
// reference, bulk-scan all master revisions to a directory, and detect the nonce
// base of older package revisions. Settings may come from a YAML file given with
// --config; explicitly set flags override it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// command is one tigerpkg subcommand.
type command struct {
	// flags registers command specific flags.
	flags func(fs *pflag.FlagSet)
	// run executes command with positional args.
	run func(ctx context.Context, env *environment, args []string) error
	// name is command name typed by user.
	name string
	// summary is one-line description.
	summary string
	// usage is positional argument synopsis.
	usage string
}

// environment carries per-invocation state into commands.
type environment struct {
	logger *slog.Logger
	stdout io.Writer
	flags  *pflag.FlagSet
	cfg    Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// errUsage means command line is incomplete; usage was printed.
var errUsage = errors.New("invalid usage")

// run dispatches args to a subcommand.
func run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errUsage
	}

	if isHelpFlag(args[0]) || args[0] == "help" {
		printUsage(stderr)
		return nil
	}

	cmd := findCommand(args[0])
	if cmd == nil {
		return fmt.Errorf("unknown command %q\n\nRun 'tigerpkg --help' for usage", args[0])
	}

	cfg, fs, err := parseCommandFlags(cmd, args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printCommandHelp(cmd, fs, stderr)
			return nil
		}

		return fmt.Errorf("%s: %w\n\nRun 'tigerpkg %s --help' for usage", cmd.name, err, cmd.name)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	env := &environment{
		logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
		stdout: stdout,
		flags:  fs,
		cfg:    cfg,
	}

	return cmd.run(ctx, env, fs.Args())
}

// commands returns all subcommands in help order.
func commands() []*command {
	return []*command{
		listCommand(),
		entriesCommand(),
		blocksCommand(),
		extractCommand(),
		scanCommand(),
		detectNonceCommand(),
	}
}

// findCommand returns subcommand by name.
func findCommand(name string) *command {
	for _, cmd := range commands() {
		if cmd.name == name {
			return cmd
		}
	}

	return nil
}

// parseCommandFlags parses args twice: first to find --config, then over the
// loaded config so explicit flags win over file values.
func parseCommandFlags(cmd *command, args []string) (Config, *pflag.FlagSet, error) {
	cfg := defaultConfig()
	first := newCommandFlagSet(cmd, &cfg)
	if err := first.Parse(args); err != nil {
		return cfg, first, err
	}

	configPath, _ := first.GetString("config")
	if configPath == "" {
		return cfg, first, nil
	}

	loaded, err := loadConfig(configPath)
	if err != nil {
		return cfg, first, err
	}

	fs := newCommandFlagSet(cmd, &loaded)
	if err := fs.Parse(args); err != nil {
		return loaded, fs, err
	}

	return loaded, fs, nil
}

// newCommandFlagSet registers shared and command flags bound to cfg.
func newCommandFlagSet(cmd *command, cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("tigerpkg "+cmd.name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	fs.String("config", "", "YAML config file")
	fs.StringVarP(&cfg.Packages, "packages", "p", cfg.Packages, "packages directory")
	fs.StringVar(&cfg.Codec, "codec", cfg.Codec, "block decompressor: none, oodle, lz4, zstd, lzss")
	fs.StringVar(&cfg.Key, "key", cfg.Key, "primary AES key (hex)")
	fs.StringVar(&cfg.AlternateKey, "alt-key", cfg.AlternateKey, "alternate AES key (hex)")
	fs.StringVar(&cfg.NonceBase, "nonce", cfg.NonceBase, "nonce base: beyond-light, legacy, or 24 hex digits")
	fs.StringVar(&cfg.Extension, "pkg-ext", cfg.Extension, "package file extension")
	fs.StringSliceVar(&cfg.Include, "include", cfg.Include, "include package base name glob (repeatable)")
	fs.StringSliceVar(&cfg.Exclude, "exclude", cfg.Exclude, "exclude package base name glob (repeatable)")
	fs.IntVarP(&cfg.Workers, "workers", "j", cfg.Workers, "extraction workers (0 = GOMAXPROCS)")
	fs.BoolVar(&cfg.VerifyHash, "verify-hash", cfg.VerifyHash, "check stored block SHA1 before decoding")
	fs.StringVar(&cfg.FileMode, "file-mode", cfg.FileMode, "output file mode: auto, overwrite_smart, truncate, create_only")
	fs.BoolVar(&cfg.Digest, "digest", cfg.Digest, "record BLAKE3 digests of extracted entries")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "debug logging")

	if cmd.flags != nil {
		cmd.flags(fs)
	}

	return fs
}

// isHelpFlag reports whether arg requests help.
func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help"
}

// printUsage writes top-level help.
func printUsage(w io.Writer) {
	fmt.Fprint(w, `tigerpkg inspects and extracts patch-layered game package sets.

Usage:
  tigerpkg <command> [flags] [args]

Commands:
`)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, cmd := range commands() {
		fmt.Fprintf(tw, "  %s\t%s\n", cmd.name, cmd.summary)
	}
	_ = tw.Flush()

	fmt.Fprint(w, `
Run 'tigerpkg <command> --help' for command flags.
`)
}

// printCommandHelp writes help of one command.
func printCommandHelp(cmd *command, fs *pflag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, "%s\n\nUsage:\n  tigerpkg %s [flags] %s\n\nFlags:\n", cmd.summary, cmd.name, cmd.usage)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fs.SetOutput(io.Discard)
}

// requireArgs checks positional argument count.
// maxArgs < 0 means unbounded.
func requireArgs(args []string, minArgs int, maxArgs int, usage string) error {
	if len(args) < minArgs || (maxArgs >= 0 && len(args) > maxArgs) {
		return fmt.Errorf("%w: expected %s, got %q", errUsage, usage, strings.Join(args, " "))
	}

	return nil
}
