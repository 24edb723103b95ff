// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"snapbuild/internal/pipeline"
	"snapbuild/internal/provenance"
)

const (
	formatEnv     = "env"
	formatLDFlags = "ldflags"
	formatGo      = "go"
)

func newProvenanceCommand(app *App) *cobra.Command {
	var (
		f          buildFlags
		format     string
		importPath string
	)
	cmd := &cobra.Command{
		Use:   "provenance",
		Short: "Print the build provenance without building a snapshot",
		Long: `Print the build provenance without building a snapshot.

Formats:
  env      TARGET=..., PROFILE=..., GIT_COMMIT_HASH=..., TS_VERSION=... lines
  ldflags  -X arguments for 'go build -ldflags' (needs --import-path)
  go       a Go source file declaring the values as constants`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := app.loadConfig(ctx, f.projectRoot)
			if err != nil {
				return &ExitError{Code: ExitFailure, Err: err}
			}
			applyBuildFlags(cfg, cmd.Flags(), &f)
			if !cmd.Flags().Changed("import-path") {
				importPath = cfg.Go.ImportPath
			}

			prov, err := provenance.Stamp(ctx, provenance.Inputs{
				Target:      cfg.Target,
				Profile:     cfg.Profile,
				ProjectRoot: cfg.ProjectRoot,
			})
			if err != nil {
				return &ExitError{Code: ExitFailure, Err: pipeline.Fail("stamp provenance", "", err)}
			}

			w := cmd.OutOrStdout()
			switch format {
			case formatEnv:
				for _, b := range prov.Bindings() {
					fmt.Fprintf(w, "%s=%s\n", b.Name, b.Value)
				}
			case formatLDFlags:
				if importPath == "" {
					return &ExitError{Code: ExitFailure, Err: fmt.Errorf("--format %s needs --import-path or go.import_path in the config", formatLDFlags)}
				}
				fmt.Fprintln(w, ldflagsString(prov.LDFlags(importPath)))
			case formatGo:
				pkg := cfg.Go.Package
				if pkg == "" {
					pkg = "main"
				}
				src, err := prov.GoSource(pkg)
				if err != nil {
					return &ExitError{Code: ExitFailure, Err: err}
				}
				_, err = w.Write(src)
				return err
			default:
				return &ExitError{Code: ExitFailure, Err: fmt.Errorf("unknown format %q (want %s, %s or %s)", format, formatEnv, formatLDFlags, formatGo)}
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.target, "target", "", "target triple (default: $TARGET)")
	fl.StringVar(&f.profile, "profile", "", "build profile (default: $PROFILE)")
	fl.StringVar(&f.projectRoot, "project-root", "", "directory the revision is read from (default: current directory)")
	fl.StringVar(&f.goPackage, "go-package", "", "package name for --format go (default \"main\")")
	fl.StringVarP(&format, "format", "f", formatEnv, "output format: env, ldflags or go")
	fl.StringVar(&importPath, "import-path", "", "package holding the variables set by -X")
	return cmd
}

// ldflagsString joins -X pairs into one shell-ready argument list.
func ldflagsString(flags []string) string {
	parts := make([]string, 0, len(flags)/2)
	for i := 0; i+1 < len(flags); i += 2 {
		parts = append(parts, flags[i]+" '"+strings.ReplaceAll(flags[i+1], "'", `'\''`)+"'")
	}
	return strings.Join(parts, " ")
}
