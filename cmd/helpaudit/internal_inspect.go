// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helpaudit/helpaudit/internal/loader"
)

// newInternalInspectCommand runs one inspection for a process loader and
// writes the result as JSON to stdout. The process exits non-zero when the
// assembly could not be inspected; the result document still carries the
// error.
func newInternalInspectCommand(app *App) *cobra.Command {
	var (
		inspector string
		dir       string
		script    string
	)

	inspectCmd := &cobra.Command{
		Use:    "inspect --dir <dir> -- <file>",
		Short:  "Inspect one assembly (worker process)",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			insp, err := loader.NewInspector(loader.InspectorKind(inspector), script)
			if err != nil {
				fmt.Fprintln(app.stderr, err)
				return &ExitError{Code: 1, Err: err}
			}
			if err := loader.RunWorker(cmd.Context(), app.stdout, insp, dir, args[0]); err != nil {
				fmt.Fprintln(app.stderr, err)
				return &ExitError{Code: 1, Err: err}
			}
			return nil
		},
	}

	inspectCmd.Flags().StringVar(&inspector, "inspector", string(loader.InspectorMetadata), "inspector kind: metadata or script")
	inspectCmd.Flags().StringVar(&dir, "dir", ".", "directory the assembly is resolved against")
	inspectCmd.Flags().StringVar(&script, "script", "", "shell command line for the script inspector")

	return inspectCmd
}
