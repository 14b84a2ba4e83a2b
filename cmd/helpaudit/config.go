// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helpaudit/helpaudit/internal/config"
)

// newConfigCommand creates the `helpaudit config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage helpaudit configuration",
		Long: `Manage helpaudit configuration.

Configuration is stored in:
  - Linux: ~/.config/helpaudit/config.cue
  - macOS: ~/Library/Application Support/helpaudit/config.cue
  - Windows: %APPDATA%\helpaudit\config.cue

A config.cue in the working directory is used when the directory above has
none. Every key can be overridden from the environment, e.g.
HELPAUDIT_SCAN_JOBS=4 or HELPAUDIT_REPORT_FORMAT=json.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd, app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd, app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(cmd, app)
		},
	})

	return cfgCmd
}

func showConfig(cmd *cobra.Command, app *App) error {
	cfg, err := app.loadConfig(cmd.Context())
	if err != nil {
		return fail(cmd, app.stderr, app.verbose, exitFailure, err)
	}

	path, found, err := config.ResolvePath(config.LoadOptions{ConfigFilePath: app.configPath})
	switch {
	case err == nil && found:
		fmt.Fprintf(app.stdout, "// %s: %s\n", "Config file", path)
	default:
		fmt.Fprintf(app.stdout, "// %s: %s\n", "Config file", "(using defaults)")
	}
	fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
	return nil
}

func initConfig(cmd *cobra.Command, app *App) error {
	path, created, err := config.CreateDefaultConfig("")
	if err != nil {
		return fail(cmd, app.stderr, app.verbose, exitFailure, err)
	}

	if !created {
		fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), CmdStyle.Render(path))
		return nil
	}
	fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(path))
	return nil
}

func showConfigPath(cmd *cobra.Command, app *App) error {
	path, found, err := config.ResolvePath(config.LoadOptions{ConfigFilePath: app.configPath})
	if err != nil {
		return fail(cmd, app.stderr, app.verbose, exitFailure, err)
	}

	fmt.Fprintln(app.stdout, path)
	if !found {
		fmt.Fprintln(app.stderr, SubtitleStyle.Render("(file does not exist; defaults are used)"))
	}
	return nil
}
