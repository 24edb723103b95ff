// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"snapbuild/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "snapbuild",
		Short: "Build a startup snapshot from bootstrap scripts",
		Long: TitleStyle.Render("snapbuild") + SubtitleStyle.Render(" - build-time environment snapshots") + `

snapbuild runs the bootstrap scripts of a project in a sandboxed shell
environment, captures the resulting state once and writes it as a compressed
artifact that the host binary embeds. Builds are stamped with the target,
profile and revision they were made from.

` + SubtitleStyle.Render("Examples:") + `
  snapbuild build --target x86_64-unknown-linux-gnu --profile release --out-dir out
  snapbuild inspect out/CLI_SNAPSHOT.bin
  snapbuild verify out/CLI_SNAPSHOT.bin
  snapbuild provenance --ldflags example.com/cli/internal/version`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(app.stderr, app.verbose)
		},
	}
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable debug logging and detailed errors")
	root.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is ./snapbuild.cue in the project root)")

	root.AddCommand(
		newBuildCommand(app),
		newInspectCommand(app),
		newVerifyCommand(app),
		newProvenanceCommand(app),
		newConfigCommand(app),
	)
	return root
}

// setupLogging installs a charm logger as the slog default handler.
func setupLogging(w io.Writer, verbose bool) {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "snapbuild",
		Level:           level,
		ReportTimestamp: verbose,
	})
	slog.SetDefault(slog.New(logger))
}

func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the code carried by the returned error.
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			renderError(w, styles, err, app.verbose)
		}),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(ExitFailure)
	}
}

// renderError prints err under fang's error header. Actionable errors show
// their suggestions; in verbose mode the cause chain and the linked catalog
// entry follow.
func renderError(w io.Writer, styles fang.Styles, err error, verbose bool) {
	_, _ = fmt.Fprintln(w, styles.ErrorHeader.String())
	_, _ = fmt.Fprintln(w, formatErrorForDisplay(err, verbose))

	var ae *issue.ActionableError
	if !verbose || !errors.As(err, &ae) || ae.Issue == 0 {
		return
	}
	is := issue.Get(ae.Issue)
	if is == nil {
		return
	}
	if md, rerr := is.Render(""); rerr == nil {
		_, _ = fmt.Fprint(w, md)
	}
}

// formatErrorForDisplay uses ActionableError.Format when err carries one.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
