// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helpaudit/helpaudit/internal/issue"
)

func newExplainCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "explain [issue]",
		Short: "Explain an error condition and how to fix it",
		Long: `Explain an error condition and how to fix it.

Without arguments, every known condition is listed. Error messages point at
the entry to read, e.g. 'helpaudit explain assembly-load-failed'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				listIssues(app)
				return nil
			}

			id, ok := issue.ParseId(args[0])
			if !ok {
				return fail(cmd, app.stderr, app.verbose, exitFailure,
					fmt.Errorf("unknown issue %q; run 'helpaudit explain' to list them", args[0]))
			}
			rendered, err := issue.Get(id).Render("auto")
			if err != nil {
				return fail(cmd, app.stderr, app.verbose, exitFailure, err)
			}
			fmt.Fprint(app.stdout, rendered)
			return nil
		},
	}
}

func listIssues(app *App) {
	fmt.Fprintln(app.stdout, TitleStyle.Render("Known issues"))
	fmt.Fprintln(app.stdout)
	for _, i := range issue.Values() {
		fmt.Fprintf(app.stdout, "  %-22s %s\n", CmdStyle.Render(i.Name()), SubtitleStyle.Render(i.Title()))
	}
}
