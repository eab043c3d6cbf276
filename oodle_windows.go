// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

//go:build windows

package tiger

import (
	"fmt"

	"github.com/new-world-tools/go-oodle"
)

// Oodle decodes Oodle Kraken/Leviathan blocks through the oo2core library.
// The library DLL must be present next to the executable or downloaded with
// oodle.Download.
type Oodle struct{}

// Decompress decodes Oodle block into at most maxSize bytes.
func (Oodle) Decompress(src []byte, maxSize int) ([]byte, error) {
	out, err := oodle.Decompress(src, int64(maxSize))
	if err != nil {
		return nil, fmt.Errorf("oodle: %w", err)
	}

	if len(out) > maxSize {
		return nil, fmt.Errorf("oodle: %w", errOutputTooLarge)
	}

	return out, nil
}
