// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"snapbuild/internal/artifact"
	"snapbuild/internal/engine"
	"snapbuild/internal/pipeline"
	"snapbuild/internal/rerun"
)

// readSnapshot loads an artifact and decodes the snapshot it carries.
func readSnapshot(path string) (encoded, raw []byte, snap *engine.Snapshot, err error) {
	encoded, err = os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, pipeline.Fail("read artifact", path, err)
	}
	raw, err = artifact.Decode(encoded)
	if err != nil {
		return nil, nil, nil, pipeline.Fail("decode artifact", path, err)
	}
	snap, err = engine.DecodeSnapshot(raw)
	if err != nil {
		return nil, nil, nil, pipeline.Fail("decode snapshot", path, err)
	}
	return encoded, raw, snap, nil
}

func newInspectCommand(app *App) *cobra.Command {
	var script bool
	cmd := &cobra.Command{
		Use:   "inspect ARTIFACT",
		Short: "Describe the contents of a snapshot artifact",
		Long: `Describe the contents of a snapshot artifact.

Prints the sizes, the module manifest and the captured units, variables and
functions. With --script the shell declarations that recreate the captured
state are printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			encoded, raw, snap, err := readSnapshot(args[0])
			if err != nil {
				return &ExitError{Code: ExitFailure, Err: err}
			}
			w := cmd.OutOrStdout()
			if script {
				src, err := snap.Script()
				if err != nil {
					return &ExitError{Code: ExitFailure, Err: pipeline.Fail("render restore script", args[0], err)}
				}
				_, err = io.WriteString(w, src)
				return err
			}
			printSnapshot(w, args[0], encoded, raw, snap)
			return nil
		},
	}
	cmd.Flags().BoolVar(&script, "script", false, "print the restore script")
	return cmd
}

func printSnapshot(w io.Writer, path string, encoded, raw []byte, snap *engine.Snapshot) {
	fmt.Fprintln(w, TitleStyle.Render("Snapshot"))
	fmt.Fprintln(w, field("artifact", path))
	fmt.Fprintln(w, field("format", fmt.Sprintf("%s v%d", engine.Magic[:], engine.Version)))
	fmt.Fprintln(w, field("snapshot size", fmt.Sprintf("%d bytes", len(raw))))
	fmt.Fprintln(w, field("compressed size", fmt.Sprintf("%d bytes", len(encoded))))
	fmt.Fprintln(w, field("digest", rerun.Digest(raw)))
	fmt.Fprintln(w, field("variables", len(snap.Vars)))
	fmt.Fprintln(w, field("functions", len(snap.Funcs)))

	fmt.Fprintln(w)
	fmt.Fprintln(w, SubtitleStyle.Render("Modules"))
	for _, m := range snap.Modules {
		state := "-"
		if len(m.State) > 0 {
			state = fmt.Sprintf("%d bytes of state", len(m.State))
		}
		fmt.Fprintln(w, field("  "+m.Name, state))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, SubtitleStyle.Render("Units"))
	if len(snap.Units) == 0 {
		fmt.Fprintln(w, WarningStyle.Render("  (none)"))
	}
	for _, u := range snap.Units {
		fmt.Fprintln(w, "  "+ValueStyle.Render(u))
	}
}
