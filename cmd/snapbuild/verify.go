// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"snapbuild/internal/capability"
	"snapbuild/internal/engine"
	"snapbuild/internal/permissions"
	"snapbuild/internal/pipeline"
	"snapbuild/internal/rerun"
)

var (
	// errRecaptureMismatch is returned when a restored environment captures differently.
	errRecaptureMismatch = errors.New("restored environment does not reproduce the snapshot")
	// errDigestMismatch is returned when the artifact disagrees with its build manifest.
	errDigestMismatch = errors.New("snapshot digest does not match the build manifest")
)

func newVerifyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify ARTIFACT",
		Short: "Check that an artifact restores and matches its manifest",
		Long: `Check that an artifact restores and matches its manifest.

The snapshot is restored into a fresh environment with the current capability
modules and captured again; the two must be identical. When ARTIFACT.toml
exists its digest must match as well. A mismatch exits with status 2.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, app, args[0])
		},
	}
}

func runVerify(cmd *cobra.Command, app *App, path string) error {
	ctx := cmd.Context()

	cfg, err := app.loadConfig(ctx, "")
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: err}
	}
	_, raw, snap, err := readSnapshot(path)
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: err}
	}

	again, err := recapture(cmd, snap, moduleOptions(cfg), filepath.Dir(path))
	if err != nil {
		if errors.Is(err, engine.ErrManifestMismatch) {
			return &ExitError{Code: ExitMismatch, Err: err}
		}
		return &ExitError{Code: ExitFailure, Err: err}
	}
	if !bytes.Equal(raw, again) {
		return &ExitError{Code: ExitMismatch, Err: pipeline.Fail("verify snapshot", path, errRecaptureMismatch)}
	}

	w := cmd.OutOrStdout()
	digest := rerun.Digest(raw)
	manifestPath := path + ".toml"
	m, err := rerun.ReadManifest(manifestPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintln(w, WarningStyle.Render("no build manifest at "+manifestPath))
	case err != nil:
		return &ExitError{Code: ExitFailure, Err: pipeline.Fail("read build manifest", manifestPath, err)}
	case m.Snapshot.Digest != digest:
		return &ExitError{
			Code: ExitMismatch,
			Err: pipeline.Fail("verify snapshot", manifestPath,
				fmt.Errorf("%w: manifest %s, artifact %s", errDigestMismatch, m.Snapshot.Digest, digest)),
		}
	default:
		fmt.Fprintln(w, field("manifest", manifestPath))
		fmt.Fprintln(w, field("revision", m.Provenance.GitCommitHash))
	}

	fmt.Fprintln(w, field("digest", digest))
	fmt.Fprintln(w, field("units", len(snap.Units)))
	fmt.Fprintln(w, SuccessStyle.Render("✓ snapshot verified"))
	return nil
}

// recapture restores snap into a fresh environment and captures it again.
func recapture(cmd *cobra.Command, snap *engine.Snapshot, opts capability.Options, dir string) (data []byte, err error) {
	modules, err := capability.DefaultModules(opts)
	if err != nil {
		return nil, pipeline.Fail("create capability modules", "", err)
	}
	defer func() {
		if cerr := capability.Close(modules); cerr != nil && err == nil {
			err = pipeline.Fail("close capability modules", "", cerr)
		}
	}()

	env, err := engine.Restore(cmd.Context(), snap, modules, permissions.NewSnapshotting(),
		engine.WithDir(dir),
		engine.WithStdIO(nil, io.Discard, cmd.ErrOrStderr()))
	if err != nil {
		return nil, pipeline.Fail("restore snapshot", "", err)
	}
	again, err := env.Capture(cmd.Context())
	if err != nil {
		return nil, pipeline.Fail("capture restored snapshot", "", err)
	}
	return again.Bytes()
}
