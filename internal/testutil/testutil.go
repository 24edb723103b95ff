// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const (
	// Revision is a well-formed commit hash for stamped test builds.
	Revision = "0123456789abcdef0123456789abcdef01234567"
	// Target and Profile are the provenance inputs of test builds.
	Target  = "x86_64-unknown-linux-gnu"
	Profile = "release"
	// SourceDir is the bootstrap directory created by NewProject.
	SourceDir = "bootstrap"
)

// Scripts is a small valid bootstrap set: a variable, an export, a
// localStorage entry and a function.
var Scripts = map[string]string{
	"10_env.sh":   "GREETING=hello\nexport MODE=snapshot\nlocalStorage.setItem theme dark\n",
	"20_funcs.sh": "greet() { console.log \"$GREETING $1\"; }\n",
}

// WriteFiles writes files under root. Keys are slash-separated relative
// paths; parent directories are created.
func WriteFiles(tb testing.TB, root string, files map[string]string) {
	tb.Helper()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			tb.Fatalf("create %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			tb.Fatalf("write %s: %v", path, err)
		}
	}
}

// NewProject creates a temporary project whose SourceDir holds scripts and
// returns its root. The source directory exists even when scripts is empty.
func NewProject(tb testing.TB, scripts map[string]string) string {
	tb.Helper()
	root := tb.TempDir()
	if err := os.MkdirAll(filepath.Join(root, SourceDir), 0o755); err != nil {
		tb.Fatalf("create source dir: %v", err)
	}
	files := make(map[string]string, len(scripts))
	for name, body := range scripts {
		files[SourceDir+"/"+name] = body
	}
	WriteFiles(tb, root, files)
	return root
}

// LookupRevision is a LookupEnv that reports GIT_COMMIT_HASH as Revision.
func LookupRevision(name string) (string, bool) {
	if name == "GIT_COMMIT_HASH" {
		return Revision, true
	}
	return "", false
}

// GitRevision stands in for a git query that prints Revision.
func GitRevision(context.Context, string) (string, error) {
	return Revision + "\n", nil
}
