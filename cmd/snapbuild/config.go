// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"snapbuild/internal/config"
	"snapbuild/internal/issue"
)

func newConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the snapbuild configuration",
	}
	cmd.AddCommand(newConfigShowCommand(app), newConfigInitCommand())
	return cmd
}

func newConfigShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as CUE",
		Long: `Print the effective configuration as CUE.

The output merges the defaults, the config file and SNAPBUILD_* environment
overrides, and can be saved as snapbuild.cue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context(), "")
			if err != nil {
				return &ExitError{Code: ExitFailure, Err: err}
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(cfg))
			return err
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [DIR]",
		Short: "Write a default snapbuild.cue",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path, created, err := config.WriteDefault(dir)
			if err != nil {
				return &ExitError{Code: ExitFailure, Err: issue.Wrap(err, "write default configuration", dir)}
			}
			w := cmd.OutOrStdout()
			if !created {
				fmt.Fprintln(w, WarningStyle.Render("configuration already exists: ")+ValueStyle.Render(path))
				return nil
			}
			fmt.Fprintln(w, SuccessStyle.Render("✓ wrote ")+ValueStyle.Render(path))
			return nil
		},
	}
}
