// SPDX-License-Identifier: MPL-2.0

package rerun

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Tracker collects rerun declarations in first-seen order, without duplicates.
// It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	files   []string
	envVars []string
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RerunIfChanged declares that the build depends on the file at path.
func (t *Tracker) RerunIfChanged(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !slices.Contains(t.files, path) {
		t.files = append(t.files, path)
		slog.Debug("rerun-if-changed", "path", path)
	}
}

// RerunIfEnvChanged declares that the build depends on the environment variable name.
func (t *Tracker) RerunIfEnvChanged(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !slices.Contains(t.envVars, name) {
		t.envVars = append(t.envVars, name)
		slog.Debug("rerun-if-env-changed", "name", name)
	}
}

// Files returns the declared files.
func (t *Tracker) Files() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.files)
}

// EnvVars returns the declared environment variable names.
func (t *Tracker) EnvVars() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.envVars)
}

// Depfile renders a Make rule naming target and every declared file.
func (t *Tracker) Depfile(target string) string {
	var b strings.Builder
	b.WriteString(escapeMake(target))
	b.WriteByte(':')
	for _, f := range t.Files() {
		b.WriteString(" \\\n  ")
		b.WriteString(escapeMake(f))
	}
	b.WriteByte('\n')
	return b.String()
}

// WriteDepfile writes Depfile(target) to path.
func (t *Tracker) WriteDepfile(path, target string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(t.Depfile(target)), 0o644); err != nil {
		return fmt.Errorf("write depfile: %w", err)
	}
	return nil
}

var makeEscaper = strings.NewReplacer(
	`\`, `\\`,
	" ", `\ `,
	"#", `\#`,
	"$", "$$",
)

func escapeMake(path string) string {
	return makeEscaper.Replace(filepath.ToSlash(path))
}
