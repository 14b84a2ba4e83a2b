// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"
)

// newInternalCommand is the parent of hidden subcommands that helpaudit runs
// as worker processes.
func newInternalCommand(app *App) *cobra.Command {
	internalCmd := &cobra.Command{
		Use:    "internal",
		Short:  "Internal commands (not for direct use)",
		Hidden: true,
	}
	internalCmd.AddCommand(newInternalInspectCommand(app))
	return internalCmd
}
