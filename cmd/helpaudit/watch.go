// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/helpaudit/helpaudit/internal/config"
	"github.com/helpaudit/helpaudit/internal/watch"
)

// watchRoots calls rerun after every burst of changes to module binaries or
// help files under roots, until the command context is cancelled.
func watchRoots(cmd *cobra.Command, app *App, cfg *config.Config, roots []string, logger *log.Logger, rerun func(context.Context) error) error {
	w, err := watch.New(watch.Config{
		Roots:    roots,
		Patterns: modulePatterns(cfg),
		Logger:   logger,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintln(app.stderr)
			fmt.Fprintln(app.stderr, VerboseStyle.Render(fmt.Sprintf("%d %s changed, rescanning", len(changed), plural(len(changed), "file", "files"))))
			for _, path := range changed {
				logger.Debug("Changed", "path", path)
			}
			return rerun(ctx)
		},
	})
	if err != nil {
		return fail(cmd, app.stderr, app.verbose, exitFailure, err)
	}

	fmt.Fprintln(app.stderr, SubtitleStyle.Render("Watching for changes, press Ctrl+C to stop"))
	if err := w.Run(cmd.Context()); err != nil {
		return fail(cmd, app.stderr, app.verbose, exitFailure, err)
	}
	return nil
}

// modulePatterns matches binaries and help files inside module folders,
// relative to a root.
func modulePatterns(cfg *config.Config) []string {
	opts := scanOptions(cfg)
	return []string{
		"*/*" + opts.BinaryExt,
		"*/" + opts.HelpPattern(),
	}
}
