// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

//go:build !windows

package tiger

import (
	"errors"
	"fmt"
)

// Oodle decodes Oodle blocks. The oo2core binding is available on Windows only;
// elsewhere use DecompressorFunc with a platform binding.
type Oodle struct{}

// Decompress always fails on this platform.
func (Oodle) Decompress(_ []byte, _ int) ([]byte, error) {
	return nil, fmt.Errorf("oodle: %w", errors.ErrUnsupported)
}
