// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for helpaudit.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/helpaudit/helpaudit/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the helpaudit command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "helpaudit",
		Short: "Find cmdlets that are missing from their module's help",
		Long: TitleStyle.Render("helpaudit") + SubtitleStyle.Render(" - Find cmdlets that are missing from their module's help") + `

helpaudit walks module roots, pairs every <Name>.dll-Help.xml with the
<Name>.dll next to it, and reports each cmdlet the binary declares that the
MAML help does not document.

` + SubtitleStyle.Render("Examples:") + `
  helpaudit analyze ./Modules          Write HelpIssues.csv for ./Modules
  helpaudit analyze -f json -o -       Print issues as JSON
  helpaudit baseline write ./Modules   Accept the current issues
  helpaudit explain                    List known error conditions
  helpaudit config show                Show current configuration`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $HOME/.config/helpaudit/config.cue)")

	rootCmd.AddCommand(newAnalyzeCommand(app))
	rootCmd.AddCommand(newBaselineCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))
	rootCmd.AddCommand(newExplainCommand(app))
	rootCmd.AddCommand(newInternalCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the root command and exits with the code carried by an
// ExitError. Any other failure, such as an unknown flag, exits with
// exitFailure. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(handleError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(exitFailure)
	}
}

// handleError prints errors that commands did not report themselves.
// An ExitError has already been reported, or is a bare exit status.
func handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}

// fail prints err to w and returns an ExitError carrying code. Cobra's own
// error and usage output is silenced so the message is printed once.
func fail(cmd *cobra.Command, w io.Writer, verbose bool, code int, err error) error {
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: code, Err: err}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
