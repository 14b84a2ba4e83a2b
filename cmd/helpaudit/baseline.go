// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helpaudit/helpaudit/internal/issue"
	"github.com/helpaudit/helpaudit/internal/report"
	"github.com/helpaudit/helpaudit/internal/scan"
)

// defaultBaselinePath is where 'baseline write' puts the file by default.
const defaultBaselinePath = "helpaudit-baseline.toml"

func newBaselineCommand(app *App) *cobra.Command {
	baselineCmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage the known-issue baseline",
		Long: `Manage the known-issue baseline.

A baseline is a TOML file listing issues that 'helpaudit analyze --baseline'
counts but does not report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var output string
	writeCmd := &cobra.Command{
		Use:   "write [roots...]",
		Short: "Write a baseline that suppresses every current issue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeBaseline(cmd, app, args, output)
		},
	}
	writeCmd.Flags().StringVarP(&output, "output", "o", defaultBaselinePath, "baseline file to write")
	baselineCmd.AddCommand(writeCmd)

	return baselineCmd
}

func writeBaseline(cmd *cobra.Command, app *App, args []string, output string) error {
	ctx := cmd.Context()

	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return fail(cmd, app.stderr, app.verbose, exitFailure, err)
	}

	roots := args
	if len(roots) == 0 {
		roots = cfg.Scan.Roots
	}
	if len(roots) == 0 {
		return fail(cmd, app.stderr, app.verbose, exitFailure, issue.NewErrorContext().
			WithOperation("write baseline").
			WithSuggestion("Pass module roots as arguments: helpaudit baseline write ./Modules").
			Wrap(errNoRoots).
			BuildError())
	}

	logger := app.logger()
	l, err := newLoader(cfg, logger)
	if err != nil {
		return fail(cmd, app.stderr, app.verbose, exitFailure, err)
	}

	var collector report.Collector
	summary, err := scan.New(l, &collector, scan.Options{
		HelpSuffix: cfg.Scan.HelpSuffix,
		BinaryExt:  cfg.Scan.BinaryExt,
		Jobs:       cfg.Scan.Jobs,
		Logger:     logger,
	}).Analyze(ctx, roots)
	if err != nil {
		return fail(cmd, app.stderr, app.verbose, exitFailure, err)
	}

	baseline := report.NewBaseline(collector.Records)
	if err := baseline.WriteFile(output); err != nil {
		return fail(cmd, app.stderr, app.verbose, exitFailure, issue.NewErrorContext().
			WithOperation("write baseline").
			WithResource(output).
			WithIssue(issue.ReportWriteFailedId).
			Wrap(err).
			BuildError())
	}

	fmt.Fprintf(app.stderr, "%s %d %s to %s\n",
		SuccessStyle.Render("Baselined"), baseline.Len(), plural(baseline.Len(), "issue", "issues"), CmdStyle.Render(output))
	if summary.Failed > 0 {
		fmt.Fprintln(app.stderr, WarningStyle.Render(fmt.Sprintf("%d %s could not be analyzed and %s not covered",
			summary.Failed, plural(summary.Failed, "module", "modules"), plural(summary.Failed, "is", "are"))))
	}
	return nil
}
