// SPDX-License-Identifier: MPL-2.0

package rerun

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/zeebo/xxh3"

	"snapbuild/internal/provenance"
)

type (
	// Manifest describes one build: what it stamped, what it produced and
	// what it depends on.
	Manifest struct {
		Provenance provenance.Provenance `toml:"provenance"`
		Snapshot   SnapshotInfo          `toml:"snapshot"`
		Modules    []string              `toml:"modules"`
		Units      []string              `toml:"units"`
		Watch      Watch                 `toml:"watch"`
	}

	// SnapshotInfo describes the snapshot and the artifact it was written to.
	SnapshotInfo struct {
		Artifact       string `toml:"artifact"`
		Size           int    `toml:"size"`
		CompressedSize int    `toml:"compressed_size"`
		Digest         string `toml:"digest"`
	}

	// Watch lists the rerun declarations.
	Watch struct {
		Files []string `toml:"files"`
		Env   []string `toml:"env"`
	}
)

// Digest returns the xxh3 digest of a snapshot as "xxh3:<16 hex digits>".
func Digest(snapshot []byte) string {
	return fmt.Sprintf("xxh3:%016x", xxh3.Hash(snapshot))
}

// WatchOf returns the tracker's declarations.
func WatchOf(t *Tracker) Watch {
	return Watch{Files: t.Files(), Env: t.EnvVars()}
}

// WriteManifest writes m as TOML to path.
func WriteManifest(path string, m *Manifest) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest parses a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}
