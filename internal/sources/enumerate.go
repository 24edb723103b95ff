// SPDX-License-Identifier: MPL-2.0

package sources

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// ErrSourceDir is returned when the bootstrap directory cannot be listed.
	ErrSourceDir = errors.New("cannot read source directory")
	// ErrEmptyExtension is returned when Enumerate is called without an extension.
	ErrEmptyExtension = errors.New("source extension must not be empty")
)

// Enumerate lists the files in dir whose extension is ext and returns their
// absolute paths in ascending lexicographic order. ext may be given with or
// without the leading dot and is matched case-sensitively. Subdirectories are
// not descended into.
func Enumerate(dir, ext string) ([]string, error) {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return nil, ErrEmptyExtension
	}
	suffix := "." + ext

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceDir, dir, err)
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceDir, absDir, err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) != suffix {
			continue
		}
		paths = append(paths, filepath.Join(absDir, entry.Name()))
	}

	slices.Sort(paths)
	return paths, nil
}
