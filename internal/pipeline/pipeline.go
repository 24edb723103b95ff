// SPDX-License-Identifier: MPL-2.0

// Package pipeline runs one snapshot build from bootstrap sources to artifact.
//
// The stages are strictly linear: stamp provenance, enumerate and load the
// sources, compose the environment, run the bootstrap scripts, capture the
// snapshot, compress it and write the artifact, then write the side files
// (depfile, manifest and optional Go constants). A failure at any stage ends
// the build. Nothing is written before the artifact, and the artifact itself
// is replaced atomically.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"

	"snapbuild/internal/artifact"
	"snapbuild/internal/bootstrap"
	"snapbuild/internal/capability"
	"snapbuild/internal/engine"
	"snapbuild/internal/permissions"
	"snapbuild/internal/provenance"
	"snapbuild/internal/rerun"
	"snapbuild/internal/sources"
)

const (
	// DefaultExt is used when Options.Ext is empty.
	DefaultExt = "sh"
	// DefaultOutput is the artifact name used when Options.Output is empty.
	DefaultOutput = "CLI_SNAPSHOT.bin"
	// DefaultGoFile is the generated constants file name inside OutDir.
	DefaultGoFile = "provenance.go"
	// LevelFast selects the fast LZ4 compressor instead of LZ4-HC.
	LevelFast = -1

	depfileSuffix  = ".d"
	manifestSuffix = ".toml"
)

var (
	// ErrMissingOutDir is returned when no output directory was configured.
	ErrMissingOutDir = errors.New("output directory is required")
	// ErrInvalidLevel is returned for a level other than LevelFast, 0 or 1..9.
	ErrInvalidLevel = errors.New("invalid compression level")
)

type (
	// Options configures a build. Relative SourceDir is resolved against
	// ProjectRoot; relative Output and GoOut against OutDir.
	Options struct {
		SourceDir   string
		Ext         string
		ProjectRoot string
		OutDir      string
		Output      string
		Target      string
		Profile     string
		// NamePrefix is used verbatim; pass sources.DefaultNamePrefix for the usual names.
		NamePrefix string
		// Level is the LZ4-HC level, 1 to 9. Zero selects artifact.DefaultLevel
		// and LevelFast the fast compressor.
		Level int
		// GoPackage enables the generated constants file when set.
		GoPackage string
		GoOut     string
		// Modules configures the capability modules. OriginStorageDir is
		// ignored: snapshots always start from empty in-memory webstorage.
		Modules capability.Options

		// Stdout and Stderr receive script output. Both default to os.Stderr.
		Stdout io.Writer
		Stderr io.Writer

		// LookupEnv and Revision are passed to provenance.Stamp.
		LookupEnv func(string) (string, bool)
		Revision  func(ctx context.Context, dir string) (string, error)
	}

	// Result describes a completed build.
	Result struct {
		Provenance     *provenance.Provenance
		ArtifactPath   string
		SnapshotSize   int
		CompressedSize int
		Digest         string
		Units          []string
		Modules        []string
		DepfilePath    string
		ManifestPath   string
		// GoFilePath is empty when no Go package was requested.
		GoFilePath string
	}

	// layout holds the resolved paths of a build.
	layout struct {
		root      string
		sourceDir string
		artifact  string
		goFile    string
		level     lz4.CompressionLevel
	}
)

// Run executes the build described by opts.
func Run(ctx context.Context, opts Options) (*Result, error) {
	l, err := resolve(opts)
	if err != nil {
		return nil, err
	}

	prov, err := provenance.Stamp(ctx, provenance.Inputs{
		Target:      opts.Target,
		Profile:     opts.Profile,
		ProjectRoot: l.root,
		LookupEnv:   opts.LookupEnv,
		Revision:    opts.Revision,
	})
	if err != nil {
		return nil, Fail("stamp provenance", "", err)
	}

	tracker := rerun.NewTracker()
	tracker.RerunIfEnvChanged(provenance.EnvGitCommitHash)
	tracker.RerunIfEnvChanged(provenance.EnvTSVersion)
	tracker.RerunIfChanged(l.sourceDir)

	ext := opts.Ext
	if ext == "" {
		ext = DefaultExt
	}
	paths, err := sources.Enumerate(l.sourceDir, ext)
	if err != nil {
		return nil, Fail("enumerate bootstrap sources", l.sourceDir, err)
	}
	units, err := sources.Load(l.root, paths, opts.NamePrefix)
	if err != nil {
		return nil, Fail("load bootstrap sources", l.sourceDir, err)
	}
	slog.Debug("bootstrap sources", "dir", l.sourceDir, "ext", ext, "count", len(units))

	data, env, err := capture(ctx, opts, l, units, tracker)
	if err != nil {
		return nil, err
	}
	slog.Info("snapshot size", "bytes", len(data))

	encoded, err := artifact.Encode(data, l.level)
	if err != nil {
		return nil, Fail("encode artifact", l.artifact, err)
	}
	slog.Info("snapshot compressed size", "bytes", len(encoded))

	if err := artifact.WriteFile(l.artifact, encoded); err != nil {
		return nil, failOutput("write artifact", l.artifact, err)
	}
	slog.Info("snapshot written to", "path", l.artifact)

	res := &Result{
		Provenance:     prov,
		ArtifactPath:   l.artifact,
		SnapshotSize:   len(data),
		CompressedSize: len(encoded),
		Digest:         rerun.Digest(data),
		Units:          env.Units(),
		Modules:        capability.Names(env.Modules()),
		DepfilePath:    l.artifact + depfileSuffix,
		ManifestPath:   l.artifact + manifestSuffix,
	}

	if err := tracker.WriteDepfile(res.DepfilePath, l.artifact); err != nil {
		return nil, failOutput("write depfile", res.DepfilePath, err)
	}
	manifest := &rerun.Manifest{
		Provenance: *prov,
		Snapshot: rerun.SnapshotInfo{
			Artifact:       filepath.Base(l.artifact),
			Size:           res.SnapshotSize,
			CompressedSize: res.CompressedSize,
			Digest:         res.Digest,
		},
		Modules: res.Modules,
		Units:   res.Units,
		Watch:   rerun.WatchOf(tracker),
	}
	if err := rerun.WriteManifest(res.ManifestPath, manifest); err != nil {
		return nil, failOutput("write build manifest", res.ManifestPath, err)
	}

	if opts.GoPackage != "" {
		if err := prov.WriteGoFile(l.goFile, opts.GoPackage); err != nil {
			return nil, failOutput("write provenance constants", l.goFile, err)
		}
		res.GoFilePath = l.goFile
	}

	slog.Debug("build complete",
		"artifact", res.ArtifactPath,
		"digest", res.Digest,
		"units", len(res.Units))
	return res, nil
}

// capture composes the environment, runs the bootstrap units and returns the
// serialized snapshot. The modules are closed before it returns.
func capture(ctx context.Context, opts Options, l layout, units []sources.Unit, tracker *rerun.Tracker) (data []byte, env *engine.Environment, err error) {
	mods := opts.Modules
	if mods.OriginStorageDir != "" {
		slog.Warn("webstorage origin dir ignored while snapshotting", "dir", mods.OriginStorageDir)
		mods.OriginStorageDir = ""
	}
	modules, err := capability.DefaultModules(mods)
	if err != nil {
		return nil, nil, Fail("create capability modules", "", err)
	}
	defer func() {
		if cerr := capability.Close(modules); cerr != nil && err == nil {
			err = Fail("close capability modules", "", cerr)
		}
	}()

	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stderr
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	env, err = engine.Compose(ctx, modules, permissions.NewSnapshotting(),
		engine.WithDir(l.root),
		engine.WithStdIO(nil, stdout, stderr))
	if err != nil {
		return nil, nil, Fail("compose environment", "", err)
	}

	if err := bootstrap.Run(ctx, env, units, tracker); err != nil {
		return nil, nil, Fail("run bootstrap scripts", "", err)
	}

	snap, err := env.Capture(ctx)
	if err != nil {
		return nil, nil, Fail("capture snapshot", "", err)
	}
	data, err = snap.Bytes()
	if err != nil {
		return nil, nil, Fail("serialize snapshot", "", err)
	}
	return data, env, nil
}

func resolve(opts Options) (layout, error) {
	level := artifact.DefaultLevel
	switch {
	case opts.Level == LevelFast:
		level = lz4.Fast
	case opts.Level > 9 || opts.Level < LevelFast:
		return layout{}, Fail("resolve compression level", "", fmt.Errorf("%w: %d", ErrInvalidLevel, opts.Level))
	case opts.Level > 0:
		level = artifact.LevelOf(opts.Level)
	}

	root := opts.ProjectRoot
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return layout{}, fmt.Errorf("resolve project root: %w", err)
	}

	if opts.OutDir == "" {
		return layout{}, Fail("resolve output directory", "", ErrMissingOutDir)
	}
	outDir, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return layout{}, fmt.Errorf("resolve output directory: %w", err)
	}

	output := opts.Output
	if output == "" {
		output = DefaultOutput
	}
	goOut := opts.GoOut
	if goOut == "" {
		goOut = DefaultGoFile
	}

	return layout{
		root:      root,
		sourceDir: under(root, opts.SourceDir),
		artifact:  under(outDir, output),
		goFile:    under(outDir, goOut),
		level:     level,
	}, nil
}

func under(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}
