// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/helpaudit/helpaudit/internal/config"
	"github.com/helpaudit/helpaudit/internal/issue"
	"github.com/helpaudit/helpaudit/internal/loader"
	"github.com/helpaudit/helpaudit/internal/report"
	"github.com/helpaudit/helpaudit/internal/scan"
)

// stdoutPath selects standard output for --output.
const stdoutPath = "-"

var errNoRoots = errors.New("no module roots given")

type analyzeOptions struct {
	format       string
	output       string
	baseline     string
	jobs         int
	inline       bool
	render       bool
	failOnIssues bool
	watch        bool
}

func newAnalyzeCommand(app *App) *cobra.Command {
	opts := &analyzeOptions{}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [roots...]",
		Short: "Report cmdlets missing from module help",
		Long: `Scan module roots and report every cmdlet that its module's help does not document.

Each root is listed one level deep. In every module folder, <Name>.dll-Help.xml
is paired with <Name>.dll; the first folder to provide a given help file name
wins. Roots that do not exist are skipped. Binaries that cannot be inspected
and help files that cannot be parsed are logged and skipped.

With no arguments, the roots from scan.roots in the configuration are used.
With --watch, the report is rewritten each time a binary or help file in a
module folder changes, until interrupted.`,
		Example: `  helpaudit analyze ./Modules
  helpaudit analyze -j 4 --baseline helpaudit-baseline.toml ./Modules ./Legacy
  helpaudit analyze -f markdown -o - ./Modules`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, app, opts, args)
		},
	}

	analyzeCmd.Flags().StringVarP(&opts.format, "format", "f", "", "report format: csv, json or markdown (default from config)")
	analyzeCmd.Flags().StringVarP(&opts.output, "output", "o", "", "report path, or - for stdout (default from config)")
	analyzeCmd.Flags().StringVar(&opts.baseline, "baseline", "", "TOML file of known issues to suppress")
	analyzeCmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 0, "number of binaries inspected at once (default from config)")
	analyzeCmd.Flags().BoolVar(&opts.inline, "inline", false, "inspect binaries in-process instead of in worker processes")
	analyzeCmd.Flags().BoolVar(&opts.render, "render", false, "also print the reported issues as a table")
	analyzeCmd.Flags().BoolVar(&opts.failOnIssues, "fail-on-issues", false, "exit with status 1 when issues were reported")
	analyzeCmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "rescan whenever a binary or help file under the roots changes")
	analyzeCmd.MarkFlagsMutuallyExclusive("watch", "fail-on-issues")

	return analyzeCmd
}

// applyFlags overrides configuration with the flags set on the command line.
func (o *analyzeOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Report.Format = config.ReportFormat(o.format)
	}
	if flags.Changed("output") {
		cfg.Report.Path = o.output
	}
	if flags.Changed("baseline") {
		cfg.Report.Baseline = o.baseline
	}
	if flags.Changed("jobs") {
		cfg.Scan.Jobs = o.jobs
	}
	if o.inline {
		cfg.Loader.Isolation = config.IsolationInline
	}
}

func runAnalyze(cmd *cobra.Command, app *App, opts *analyzeOptions, args []string) error {
	ctx := cmd.Context()

	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return fail(cmd, app.stderr, app.verbose, exitFailure, err)
	}
	opts.applyFlags(cmd, cfg)
	if valid, errs := cfg.IsValid(); !valid {
		return fail(cmd, app.stderr, app.verbose, exitFailure, errs[0])
	}

	roots := args
	if len(roots) == 0 {
		roots = cfg.Scan.Roots
	}
	if len(roots) == 0 {
		return fail(cmd, app.stderr, app.verbose, exitFailure, issue.NewErrorContext().
			WithOperation("start scan").
			WithSuggestion("Pass module roots as arguments: helpaudit analyze ./Modules").
			WithSuggestion("Or list them under scan.roots in the configuration").
			Wrap(errNoRoots).
			BuildError())
	}

	logger := app.logger()
	l, err := newLoader(cfg, logger)
	if err != nil {
		return fail(cmd, app.stderr, app.verbose, exitFailure, err)
	}

	summary, err := analyzeOnce(ctx, app, cfg, l, logger, opts.render, roots)
	if err != nil {
		return fail(cmd, app.stderr, app.verbose, exitFailure, err)
	}

	if opts.watch {
		return watchRoots(cmd, app, cfg, roots, logger, func(ctx context.Context) error {
			_, err := analyzeOnce(ctx, app, cfg, l, logger, opts.render, roots)
			return err
		})
	}

	if opts.failOnIssues && summary.Issues-summary.Suppressed > 0 {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
		return &ExitError{Code: exitIssues}
	}
	return nil
}

// analyzeOnce runs one scan into a freshly opened report and prints its
// summary.
func analyzeOnce(ctx context.Context, app *App, cfg *config.Config, l loader.Loader, logger *log.Logger, render bool, roots []string) (scan.Summary, error) {
	sink, collector, err := openSink(cfg, render, app.stdout)
	if err != nil {
		return scan.Summary{}, err
	}

	opts := scanOptions(cfg)
	opts.Logger = logger
	scanner := scan.New(l, sink, opts)
	logger.Debug("Scanning", "roots", len(roots), "jobs", scanner.Jobs(), "help", opts.HelpPattern())
	summary, runErr := scanner.Analyze(ctx, roots)
	closeErr := sink.Close()

	if err := errors.Join(runErr, closeErr); err != nil {
		if errors.Is(err, context.Canceled) {
			return summary, err
		}
		return summary, issue.NewErrorContext().
			WithOperation("write report").
			WithResource(reportName(cfg.Report.Path)).
			WithIssue(issue.ReportWriteFailedId).
			Wrap(err).
			BuildError()
	}

	printSummary(app.stderr, summary, reportName(cfg.Report.Path))

	if collector != nil {
		rendered, err := report.Render(report.Markdown(collector.Records), 0)
		if err != nil {
			return summary, err
		}
		fmt.Fprint(app.stdout, rendered)
	}
	return summary, nil
}

// newLoader builds the loader selected by loader.isolation.
func newLoader(cfg *config.Config, logger *log.Logger) (loader.Loader, error) {
	kind := loader.InspectorKind(cfg.Loader.Inspector)

	if cfg.Loader.Isolation == config.IsolationInline {
		inspector, err := loader.NewInspector(kind, cfg.Loader.Script)
		if err != nil {
			return nil, err
		}
		return loader.NewInlineLoader(inspector, logger), nil
	}

	timeout, err := cfg.Loader.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	l, err := loader.NewProcessLoader(loader.ProcessConfig{
		Inspector: kind,
		Script:    cfg.Loader.Script,
		Timeout:   timeout,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("Inspecting in worker processes", "inspector", kind, "timeout", l.Timeout())
	return l, nil
}

// scanOptions returns the scan settings carried by the configuration.
func scanOptions(cfg *config.Config) scan.Options {
	return scan.Options{
		HelpSuffix: cfg.Scan.HelpSuffix,
		BinaryExt:  cfg.Scan.BinaryExt,
		Jobs:       cfg.Scan.Jobs,
	}
}

// openSink opens the report and layers the baseline filter and the render
// collector on top of it. The baseline is loaded first so a bad baseline
// leaves no report behind.
func openSink(cfg *config.Config, render bool, stdout io.Writer) (report.Sink, *report.Collector, error) {
	var baseline *report.Baseline
	if cfg.Report.Baseline != "" {
		b, err := report.LoadBaseline(cfg.Report.Baseline)
		if err != nil {
			return nil, nil, issue.NewErrorContext().
				WithOperation("load baseline").
				WithResource(cfg.Report.Baseline).
				WithIssue(issue.BaselineInvalidId).
				Wrap(err).
				BuildError()
		}
		baseline = b
	}

	format := report.Format(cfg.Report.Format)
	var (
		sink report.Sink
		err  error
	)
	if cfg.Report.Path == stdoutPath {
		sink, err = report.New(format, stdout)
	} else {
		sink, err = report.Create(format, cfg.Report.Path)
	}
	if err != nil {
		return nil, nil, issue.NewErrorContext().
			WithOperation("create report").
			WithResource(reportName(cfg.Report.Path)).
			WithIssue(issue.ReportWriteFailedId).
			Wrap(err).
			BuildError()
	}

	var collector *report.Collector
	if render {
		collector = &report.Collector{}
		sink = report.Tee{sink, collector}
	}
	if baseline != nil {
		sink = report.NewFilteredSink(sink, baseline)
	}
	return sink, collector, nil
}

func reportName(path string) string {
	if path == stdoutPath {
		return "stdout"
	}
	return path
}

// printSummary writes the run totals and one explain hint per kind of
// skipped input.
func printSummary(w io.Writer, s scan.Summary, reportPath string) {
	fmt.Fprintf(w, "%s %d %s: %d analyzed, %d skipped, %d failed\n",
		TitleStyle.Render("Scanned"), s.Roots, plural(s.Roots, "root", "roots"), s.Pairs, s.Skipped(), s.Failed)
	if s.MissingRoots > 0 {
		fmt.Fprintf(w, "%s\n", SubtitleStyle.Render(fmt.Sprintf("%d missing %s ignored", s.MissingRoots, plural(s.MissingRoots, "root", "roots"))))
	}

	reported := s.Issues - s.Suppressed
	switch {
	case reported == 0 && s.Suppressed == 0:
		fmt.Fprintf(w, "%s written to %s\n", SuccessStyle.Render("No issues"), CmdStyle.Render(reportPath))
	case s.Suppressed > 0:
		fmt.Fprintf(w, "%s written to %s (%d suppressed by baseline)\n",
			WarningStyle.Render(fmt.Sprintf("%d %s", reported, plural(reported, "issue", "issues"))), CmdStyle.Render(reportPath), s.Suppressed)
	default:
		fmt.Fprintf(w, "%s written to %s\n",
			WarningStyle.Render(fmt.Sprintf("%d %s", reported, plural(reported, "issue", "issues"))), CmdStyle.Render(reportPath))
	}

	seen := make(map[issue.Id]bool)
	for _, d := range s.Diagnostics {
		id := diagnosticIssue(d)
		if seen[id] {
			continue
		}
		seen[id] = true
		fmt.Fprintf(w, "%s\n", VerboseStyle.Render(fmt.Sprintf("Run 'helpaudit explain %s' for details on skipped %s", id, d.Kind)))
	}
}

// diagnosticIssue maps a diagnostic to its catalog entry.
func diagnosticIssue(d scan.Diagnostic) issue.Id {
	switch d.Kind {
	case scan.DiagnosticLoad:
		var le *loader.LoadError
		if errors.As(d.Err, &le) && le.Timeout {
			return issue.WorkerTimeoutId
		}
		return issue.AssemblyLoadFailedId
	case scan.DiagnosticParse:
		return issue.HelpParseFailedId
	default:
		return issue.ScopeUnreadableId
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
