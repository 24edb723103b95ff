// SPDX-License-Identifier: MPL-2.0

// Package platform checks file names that must stay portable across the
// build hosts that produce and consume snapshot artifacts.
package platform

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrReservedName is returned for a file name Windows refuses to create.
var ErrReservedName = errors.New("reserved file name on Windows")

// windowsReservedNames are rejected by Windows regardless of extension.
var windowsReservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// IsWindowsReservedName reports whether name, with or without extensions,
// is a reserved device name.
func IsWindowsReservedName(name string) bool {
	stem, _, _ := strings.Cut(strings.ToUpper(name), ".")
	return windowsReservedNames[strings.TrimRight(stem, " ")]
}

// CheckPortablePath rejects a slash-separated relative path if any element is
// a reserved name.
func CheckPortablePath(p string) error {
	for elem := range strings.SplitSeq(path.Clean(strings.ReplaceAll(p, `\`, "/")), "/") {
		if IsWindowsReservedName(elem) {
			return fmt.Errorf("%w: %q", ErrReservedName, elem)
		}
	}
	return nil
}
