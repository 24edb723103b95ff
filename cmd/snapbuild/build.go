// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"snapbuild/internal/capability"
	"snapbuild/internal/config"
	"snapbuild/internal/pipeline"
	"snapbuild/internal/watch"
)

// buildFlags mirror the config keys they override.
type buildFlags struct {
	sourceDir   string
	ext         string
	projectRoot string
	outDir      string
	output      string
	target      string
	profile     string
	namePrefix  string
	level       int
	goPackage   string
	goOut       string
	unstable    bool
	watch       bool
}

func newBuildCommand(app *App) *cobra.Command {
	var f buildFlags
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the bootstrap scripts and write the snapshot artifact",
		Long: `Run the bootstrap scripts and write the snapshot artifact.

Scripts in the source directory are executed in sorted order inside a fresh
environment. Network, filesystem and timing access are denied. After the last
script the environment is captured and written to OUT_DIR as a length-prefixed
LZ4 block, together with a Make depfile and a TOML build manifest.

TARGET, PROFILE and OUT_DIR are read from the environment when the flags are
not given. GIT_COMMIT_HASH overrides the revision reported by git.

With --watch the build is repeated whenever a bootstrap script or the config
file changes, until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, app, &f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.sourceDir, "source-dir", config.DefaultSourceDir, "directory holding the bootstrap scripts")
	fl.StringVar(&f.ext, "ext", config.DefaultExt, "extension of bootstrap scripts")
	fl.StringVar(&f.projectRoot, "project-root", "", "script working directory and base of unit names (default: current directory)")
	fl.StringVar(&f.outDir, "out-dir", "", "output directory (default: $OUT_DIR)")
	fl.StringVar(&f.output, "output", config.DefaultOutput, "artifact file name, relative to the output directory")
	fl.StringVar(&f.target, "target", "", "target triple (default: $TARGET)")
	fl.StringVar(&f.profile, "profile", "", "build profile (default: $PROFILE)")
	fl.StringVar(&f.namePrefix, "name-prefix", "", "prefix of logical unit names (default \"internal:\")")
	fl.IntVar(&f.level, "level", config.DefaultLevel, "compression level, 0 (fast) to 9")
	fl.StringVar(&f.goPackage, "go-package", "", "write provenance constants in this Go package")
	fl.StringVar(&f.goOut, "go-out", "", "path of the generated Go file (default: provenance.go in the output directory)")
	fl.BoolVar(&f.unstable, "unstable", false, "enable unstable capability features")
	fl.BoolVarP(&f.watch, "watch", "w", false, "rebuild when bootstrap scripts or the config change")

	return cmd
}

func runBuild(cmd *cobra.Command, app *App, f *buildFlags) error {
	cfg, err := prepareBuild(cmd, app, f)
	if err != nil {
		return err
	}
	err = buildOnce(cmd, app, cfg)
	if !f.watch {
		return err
	}
	if err != nil {
		slog.Error("build failed", "error", err)
	}

	w, err := watch.New(watch.Config{
		Dir:      cfg.ProjectRoot,
		Patterns: watchPatterns(cfg),
		OnChange: func(_ context.Context, changed []string) error {
			slog.Info("rebuilding", "changed", changed)
			cfg, err := prepareBuild(cmd, app, f)
			if err != nil {
				return err
			}
			return buildOnce(cmd, app, cfg)
		},
	})
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: err}
	}
	fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("watching for changes, press Ctrl+C to stop"))
	if err := w.Run(cmd.Context()); err != nil {
		return &ExitError{Code: ExitFailure, Err: err}
	}
	return nil
}

// prepareBuild loads the configuration and applies the command line to it.
func prepareBuild(cmd *cobra.Command, app *App, f *buildFlags) (*config.Config, error) {
	cfg, err := app.loadConfig(cmd.Context(), f.projectRoot)
	if err != nil {
		return nil, &ExitError{Code: ExitFailure, Err: err}
	}
	applyBuildFlags(cfg, cmd.Flags(), f)
	if err := cfg.Validate(); err != nil {
		return nil, &ExitError{Code: ExitFailure, Err: err}
	}
	return cfg, nil
}

func buildOnce(cmd *cobra.Command, app *App, cfg *config.Config) error {
	res, err := app.Build(cmd.Context(), buildOptions(cfg, app))
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: err}
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, SuccessStyle.Render("✓ snapshot built"))
	fmt.Fprintln(w, field("artifact", res.ArtifactPath))
	fmt.Fprintln(w, field("snapshot size", fmt.Sprintf("%d bytes", res.SnapshotSize)))
	fmt.Fprintln(w, field("compressed size", fmt.Sprintf("%d bytes", res.CompressedSize)))
	fmt.Fprintln(w, field("digest", res.Digest))
	fmt.Fprintln(w, field("units", len(res.Units)))
	fmt.Fprintln(w, field("revision", res.Provenance.GitCommitHash))
	if !res.Provenance.Known() {
		fmt.Fprintln(w, WarningStyle.Render("revision is unknown; set GIT_COMMIT_HASH to stamp one"))
	}
	if res.GoFilePath != "" {
		fmt.Fprintln(w, field("go constants", res.GoFilePath))
	}
	return nil
}

// watchPatterns selects the bootstrap scripts and the config file, relative
// to the project root.
func watchPatterns(cfg *config.Config) []string {
	root := cfg.ProjectRoot
	if root == "" {
		root = "."
	}
	src := cfg.SourceDir
	if filepath.IsAbs(src) {
		if abs, err := filepath.Abs(root); err == nil {
			if rel, err := filepath.Rel(abs, src); err == nil {
				src = rel
			}
		}
	}
	ext := strings.TrimPrefix(cfg.Ext, ".")
	return []string{
		config.ConfigFileName,
		path.Join(filepath.ToSlash(filepath.Clean(src)), "**", "*."+ext),
	}
}

// applyBuildFlags overrides cfg with the flags given on the command line.
func applyBuildFlags(cfg *config.Config, fs *pflag.FlagSet, f *buildFlags) {
	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("source-dir", &cfg.SourceDir, f.sourceDir)
	set("ext", &cfg.Ext, f.ext)
	set("project-root", &cfg.ProjectRoot, f.projectRoot)
	set("out-dir", &cfg.OutDir, f.outDir)
	set("output", &cfg.Output, f.output)
	set("target", &cfg.Target, f.target)
	set("profile", &cfg.Profile, f.profile)
	set("name-prefix", &cfg.NamePrefix, f.namePrefix)
	set("go-package", &cfg.Go.Package, f.goPackage)
	set("go-out", &cfg.Go.Out, f.goOut)
	if fs.Changed("level") {
		cfg.Level = f.level
	}
	if fs.Changed("unstable") {
		cfg.Modules.Unstable = f.unstable
	}
}

func buildOptions(cfg *config.Config, app *App) pipeline.Options {
	return pipeline.Options{
		SourceDir:   cfg.SourceDir,
		Ext:         cfg.Ext,
		ProjectRoot: cfg.ProjectRoot,
		OutDir:      cfg.OutDir,
		Output:      cfg.Output,
		Target:      cfg.Target,
		Profile:     cfg.Profile,
		NamePrefix:  cfg.NamePrefix,
		Level:       pipelineLevel(cfg.Level),
		GoPackage:   cfg.Go.Package,
		GoOut:       cfg.Go.Out,
		Modules:     moduleOptions(cfg),
		Stdout:      app.stderr,
		Stderr:      app.stderr,
	}
}

// pipelineLevel maps a config level, where 0 is the fast compressor.
func pipelineLevel(n int) int {
	if n == 0 {
		return pipeline.LevelFast
	}
	return n
}

func moduleOptions(cfg *config.Config) capability.Options {
	return capability.Options{
		UserAgent: cfg.Modules.UserAgent,
		Unstable:  cfg.Modules.Unstable,
	}
}
