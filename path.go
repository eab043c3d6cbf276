// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package tiger

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ArchiveName returns package file name without directory part.
func ArchiveName(path string) string {
	path = strings.ReplaceAll(path, `\`, `/`)
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}

	return path
}

// SplitPatch splits package file name like "w64_ui_09be_3.pkg" into
// base name "w64_ui_09be" and patch number 3.
func SplitPatch(name string) (string, int, error) {
	name = ArchiveName(name)
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	idx := strings.LastIndexByte(stem, '_')
	if idx <= 0 || idx == len(stem)-1 {
		return "", 0, fmt.Errorf("%w: package name %q has no _<patch> suffix", ErrFormat, name)
	}

	patch, err := strconv.Atoi(stem[idx+1:])
	if err != nil || patch < 0 {
		return "", 0, fmt.Errorf("%w: package name %q has non-numeric patch %q", ErrFormat, name, stem[idx+1:])
	}

	return stem[:idx], patch, nil
}

// BaseName returns package name with trailing _<patch> segment and extension stripped.
// Names without a numeric patch suffix are returned without extension only.
func BaseName(name string) string {
	base, _, err := SplitPatch(name)
	if err != nil {
		name = ArchiveName(name)
		return strings.TrimSuffix(name, filepath.Ext(name))
	}

	return base
}

// hasExtension reports whether name ends with ext (case-insensitive).
func hasExtension(name string, ext string) bool {
	return strings.EqualFold(filepath.Ext(name), ext)
}
