// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package tiger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/woozymasta/pathrules"
)

// EntryFilter selects entries of one entry table. Zero value selects all entries.
type EntryFilter struct {
	// Types keeps only entries of listed types.
	Types []EntryType `json:"types,omitempty" yaml:"types,omitempty"`
	// Subtypes keeps only entries of listed subtypes.
	Subtypes []uint8 `json:"subtypes,omitempty" yaml:"subtypes,omitempty"`
	// Discriminators keeps only entries with listed content block discriminators.
	Discriminators []uint32 `json:"discriminators,omitempty" yaml:"discriminators,omitempty"`
	// MinSize drops entries smaller than this file size.
	MinSize uint32 `json:"min_size,omitempty" yaml:"min_size,omitempty"`
	// SkipEmpty drops zero-size entries.
	SkipEmpty bool `json:"skip_empty,omitempty" yaml:"skip_empty,omitempty"`
}

// Match reports whether entry passes filter.
func (f EntryFilter) Match(e Entry) bool {
	if f.SkipEmpty && e.FileSize == 0 {
		return false
	}

	if e.FileSize < f.MinSize {
		return false
	}

	if len(f.Types) > 0 && !slices.Contains(f.Types, e.Type) {
		return false
	}

	if len(f.Subtypes) > 0 && !slices.Contains(f.Subtypes, e.Subtype) {
		return false
	}

	if len(f.Discriminators) > 0 && !slices.Contains(f.Discriminators, e.Discriminator) {
		return false
	}

	return true
}

// Select returns table indices of entries passing filter.
func (f EntryFilter) Select(entries []Entry) []int {
	out := make([]int, 0, len(entries))
	for i := range entries {
		if f.Match(entries[i]) {
			out = append(out, i)
		}
	}

	return out
}

// ExpectType fails with ErrTypeMismatch unless entry carries discriminator want.
func ExpectType(e Entry, want uint32) error {
	if e.Discriminator != want {
		return fmt.Errorf("%w: expected 0x%08X, got 0x%08X", ErrTypeMismatch, want, e.Discriminator)
	}

	return nil
}

// archiveMatcher holds compiled include/exclude rules for group base names.
type archiveMatcher struct {
	matcher *pathrules.Matcher
}

// newArchiveMatcher compiles archive selection rules; empty rules select everything.
func newArchiveMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*archiveMatcher, error) {
	rules = normalizeArchiveRules(rules)
	if len(rules) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("compile archive rules: %w", err)
	}

	return &archiveMatcher{matcher: matcher}, nil
}

// normalizeArchiveRules trims rule patterns and drops empty patterns.
func normalizeArchiveRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := strings.TrimSpace(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// Match reports whether base name is selected; nil matcher selects everything.
func (m *archiveMatcher) Match(baseName string) bool {
	if m == nil || m.matcher == nil {
		return true
	}

	return m.matcher.Included(baseName, false)
}

// IncludeRules builds include rules from glob patterns.
func IncludeRules(patterns ...string) []pathrules.Rule {
	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, pattern := range patterns {
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionInclude, Pattern: pattern})
	}

	return rules
}

// ExcludeRules builds exclude rules from glob patterns.
func ExcludeRules(patterns ...string) []pathrules.Rule {
	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, pattern := range patterns {
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionExclude, Pattern: pattern})
	}

	return rules
}
