// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/woozymasta/pathrules"
	"github.com/woozymasta/tiger"
	"gopkg.in/yaml.v3"
)

// Config is tigerpkg configuration. Values come from defaults, then an
// optional YAML file given by --config, then explicitly set flags.
type Config struct {
	// Packages is the packages directory.
	Packages string `yaml:"packages"`
	// Codec names the bundled decompressor for compressed blocks.
	Codec string `yaml:"codec"`
	// Key is primary AES key in hex; empty uses the built-in key.
	Key string `yaml:"key,omitempty"`
	// AlternateKey is alternate AES key in hex; empty uses the built-in key.
	AlternateKey string `yaml:"alternate_key,omitempty"`
	// NonceBase is "beyond-light", "legacy", or 24 hex digits.
	NonceBase string `yaml:"nonce_base,omitempty"`
	// Extension is package file extension.
	Extension string `yaml:"extension,omitempty"`
	// FileMode is extraction output file policy.
	FileMode string `yaml:"file_mode,omitempty"`
	// Include lists glob rules selecting package base names.
	Include []string `yaml:"include,omitempty"`
	// Exclude lists glob rules dropping package base names.
	Exclude []string `yaml:"exclude,omitempty"`
	// Workers is number of extraction workers (zero means GOMAXPROCS).
	Workers int `yaml:"workers,omitempty"`
	// VerifyHash checks stored block hashes before decoding.
	VerifyHash bool `yaml:"verify_hash,omitempty"`
	// Digest records BLAKE3 digests of extracted entries.
	Digest bool `yaml:"digest,omitempty"`
	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose,omitempty"`
}

// defaultConfig returns configuration used without a config file.
func defaultConfig() Config {
	return Config{
		Packages:  "packages",
		Codec:     tiger.CodecNone,
		Extension: tiger.DefaultExtension,
		FileMode:  string(tiger.ExtractFileModeAuto),
	}
}

// loadConfig reads YAML config over defaults. Unknown keys are rejected.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// codecOptions converts codec related settings.
func (c Config) codecOptions() (tiger.CodecOptions, error) {
	dec, err := tiger.DecompressorByName(c.Codec)
	if err != nil {
		return tiger.CodecOptions{}, err
	}

	opts := tiger.CodecOptions{
		Decompressor: dec,
		VerifyHash:   c.VerifyHash,
	}

	if opts.Key, err = parseKey("key", c.Key); err != nil {
		return tiger.CodecOptions{}, err
	}

	if opts.AlternateKey, err = parseKey("alternate key", c.AlternateKey); err != nil {
		return tiger.CodecOptions{}, err
	}

	if opts.NonceBase, err = parseNonceBase(c.NonceBase); err != nil {
		return tiger.CodecOptions{}, err
	}

	return opts, nil
}

// rules converts include/exclude lists to ordered matcher rules.
// Exclude-only lists start from "include everything".
func (c Config) rules() []pathrules.Rule {
	include := c.Include
	if len(include) == 0 && len(c.Exclude) > 0 {
		include = []string{"*"}
	}

	return append(tiger.IncludeRules(include...), tiger.ExcludeRules(c.Exclude...)...)
}

// openResolver builds codec and resolver from configuration.
func (c Config) openResolver(logger *slog.Logger) (*tiger.Resolver, error) {
	codecOpts, err := c.codecOptions()
	if err != nil {
		return nil, err
	}

	codec, err := tiger.NewBlockCodec(codecOpts)
	if err != nil {
		return nil, err
	}

	return tiger.NewResolver(c.Packages, tiger.ResolverOptions{
		Logger:    logger,
		Codec:     codec,
		Extension: c.Extension,
		Rules:     c.rules(),
	})
}

// parseKey decodes optional hex AES key of 16 or 32 bytes.
func parseKey(name string, s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, nil
	}

	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if len(key) != 16 && len(key) != 32 {
		return nil, fmt.Errorf("%s: got %d bytes, want 16 or 32", name, len(key))
	}

	return key, nil
}

// Known nonce base names.
const (
	nonceBeyondLight = "beyond-light"
	nonceLegacy      = "legacy"
)

// parseNonceBase decodes nonce base name or 24 hex digits; empty means default.
func parseNonceBase(s string) ([tiger.NonceSize]byte, error) {
	var out [tiger.NonceSize]byte

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return out, nil
	case nonceBeyondLight:
		return tiger.NonceBaseBeyondLight, nil
	case nonceLegacy:
		return tiger.NonceBaseLegacy, nil
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return out, fmt.Errorf("nonce base: %w", err)
	}

	if len(raw) != tiger.NonceSize {
		return out, fmt.Errorf("nonce base: got %d bytes, want %d", len(raw), tiger.NonceSize)
	}

	copy(out[:], raw)
	return out, nil
}

// nonceBaseName returns known name of nonce base or its hex form.
func nonceBaseName(base [tiger.NonceSize]byte) string {
	switch base {
	case tiger.NonceBaseBeyondLight:
		return nonceBeyondLight
	case tiger.NonceBaseLegacy:
		return nonceLegacy
	default:
		return hex.EncodeToString(base[:])
	}
}
