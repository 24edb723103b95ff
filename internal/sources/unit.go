// SPDX-License-Identifier: MPL-2.0

package sources

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultNamePrefix is prepended to the root-relative path to form a unit name.
const DefaultNamePrefix = "internal:"

// ErrOutsideRoot is returned when a source file does not live under the project root.
var ErrOutsideRoot = errors.New("source file is outside the project root")

// Unit is one bootstrap script. It is immutable once loaded.
type Unit struct {
	// Path is the absolute path of the file on disk.
	Path string
	// Name is the logical identifier used for diagnostics and stack traces.
	Name string
	// Source is the raw script text.
	Source string
}

// LogicalName derives a unit name from path relative to root, with forward
// slashes on every platform.
func LogicalName(root, path, prefix string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve project root %s: %w", root, err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve source path %s: %w", path, err)
	}

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s (root %s)", ErrOutsideRoot, absPath, absRoot)
	}

	return prefix + strings.ReplaceAll(filepath.ToSlash(rel), `\`, "/"), nil
}

// Load reads every path into a Unit, preserving order. Any read failure is fatal.
func Load(root string, paths []string, prefix string) ([]Unit, error) {
	units := make([]Unit, 0, len(paths))
	for _, path := range paths {
		name, err := LogicalName(root, path, prefix)
		if err != nil {
			return nil, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read source %s: %w", path, err)
		}

		units = append(units, Unit{Path: path, Name: name, Source: string(data)})
	}
	return units, nil
}
