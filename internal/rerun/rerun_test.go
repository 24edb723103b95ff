// SPDX-License-Identifier: MPL-2.0

package rerun

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"snapbuild/internal/provenance"
)

func TestTracker_Dedup(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.RerunIfChanged("/src/b.sh")
	tr.RerunIfChanged("/src/a.sh")
	tr.RerunIfChanged("/src/b.sh")
	tr.RerunIfEnvChanged("GIT_COMMIT_HASH")
	tr.RerunIfEnvChanged("GIT_COMMIT_HASH")

	if got := tr.Files(); !slices.Equal(got, []string{"/src/b.sh", "/src/a.sh"}) {
		t.Errorf("Files() = %v", got)
	}
	if got := tr.EnvVars(); !slices.Equal(got, []string{"GIT_COMMIT_HASH"}) {
		t.Errorf("EnvVars() = %v", got)
	}
}

func TestTracker_Depfile(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.RerunIfChanged("/src/my script.sh")
	tr.RerunIfChanged("/src/$cost#1.sh")

	want := "out/CLI_SNAPSHOT.bin: \\\n  /src/my\\ script.sh \\\n  /src/$$cost\\#1.sh\n"
	if got := tr.Depfile("out/CLI_SNAPSHOT.bin"); got != want {
		t.Errorf("Depfile() =\n%q\nwant\n%q", got, want)
	}

	path := filepath.Join(t.TempDir(), "deps", "snapshot.d")
	if err := tr.WriteDepfile(path, "out/CLI_SNAPSHOT.bin"); err != nil {
		t.Fatalf("WriteDepfile() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != want {
		t.Errorf("depfile content = %q", data)
	}
}

func TestTracker_EmptyDepfile(t *testing.T) {
	t.Parallel()

	if got := NewTracker().Depfile("a.bin"); got != "a.bin:\n" {
		t.Errorf("Depfile() = %q", got)
	}
}

func TestManifest_RoundTrip(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.RerunIfChanged("/src/a.sh")
	tr.RerunIfEnvChanged(provenance.EnvGitCommitHash)

	m := &Manifest{
		Provenance: provenance.Provenance{
			Target:        "x86_64-unknown-linux-gnu",
			Profile:       "release",
			GitCommitHash: provenance.Unknown,
			TSVersion:     provenance.TSVersion,
		},
		Snapshot: SnapshotInfo{
			Artifact:       "/out/CLI_SNAPSHOT.bin",
			Size:           1000,
			CompressedSize: 120,
			Digest:         Digest([]byte("snapshot")),
		},
		Modules: []string{"webidl", "console"},
		Units:   []string{"internal:a.sh"},
		Watch:   WatchOf(tr),
	}

	path := filepath.Join(t.TempDir(), "snapshot.toml")
	if err := WriteManifest(path, m); err != nil {
		t.Fatalf("WriteManifest() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[provenance]") || !strings.Contains(string(data), "git_commit_hash = 'UNKNOWN'") {
		t.Errorf("manifest TOML:\n%s", data)
	}

	got, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest() error: %v", err)
	}
	if got.Provenance != m.Provenance || got.Snapshot != m.Snapshot {
		t.Errorf("ReadManifest() = %+v, want %+v", got, m)
	}
	if !slices.Equal(got.Watch.Files, m.Watch.Files) || !slices.Equal(got.Modules, m.Modules) {
		t.Errorf("lists differ: %+v", got)
	}
}

func TestDigest(t *testing.T) {
	t.Parallel()

	a := Digest([]byte("one"))
	if a != Digest([]byte("one")) {
		t.Error("Digest() is not stable")
	}
	if a == Digest([]byte("two")) {
		t.Error("Digest() collides on different input")
	}
	if !strings.HasPrefix(a, "xxh3:") || len(a) != len("xxh3:")+16 {
		t.Errorf("Digest() = %q", a)
	}
}
