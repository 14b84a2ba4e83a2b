// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/helpaudit/helpaudit/internal/cueutil"
	"github.com/helpaudit/helpaudit/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "helpaudit"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. HELPAUDIT_SCAN_JOBS.
	EnvPrefix = "HELPAUDIT"

	// maxConfigFileSize bounds config.cue before it is compiled.
	maxConfigFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the helpaudit configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// ResolvePath returns the config file that Load would read and whether it
// exists. With no explicit file, the config directory is preferred over the
// working directory; when neither has a file the config directory path is
// returned with found set to false.
func ResolvePath(opts LoadOptions) (path string, found bool, err error) {
	if opts.ConfigFilePath != "" {
		return opts.ConfigFilePath, fileExists(opts.ConfigFilePath), nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", false, err
	}
	cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(cuePath) {
		return cuePath, true, nil
	}
	localCuePath := ConfigFileName + "." + ConfigFileExt
	if fileExists(localCuePath) {
		return localCuePath, true, nil
	}
	return cuePath, false, nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("scan.roots", defaults.Scan.Roots)
	v.SetDefault("scan.help_suffix", defaults.Scan.HelpSuffix)
	v.SetDefault("scan.binary_ext", defaults.Scan.BinaryExt)
	v.SetDefault("scan.jobs", defaults.Scan.Jobs)
	v.SetDefault("loader.isolation", defaults.Loader.Isolation)
	v.SetDefault("loader.inspector", defaults.Loader.Inspector)
	v.SetDefault("loader.script", defaults.Loader.Script)
	v.SetDefault("loader.timeout", defaults.Loader.Timeout)
	v.SetDefault("report.format", defaults.Report.Format)
	v.SetDefault("report.path", defaults.Report.Path)
	v.SetDefault("report.baseline", defaults.Report.Baseline)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, found, err := ResolvePath(opts)
	if err != nil {
		return nil, "", err
	}

	switch {
	case found:
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			// The cause already starts with the file name.
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	case opts.ConfigFilePath != "":
		// An explicit file must exist; only the implicit locations fall back to defaults.
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(opts.ConfigFilePath).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Check that the file exists and is readable").
			WithSuggestion("Use 'helpaudit config show' to see the default configuration").
			Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
			BuildError()
	default:
		resolvedPath = ""
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if valid, errs := cfg.IsValid(); !valid {
		ctxBuilder := issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Check HELPAUDIT_* environment overrides as well as the config file").
			WithIssue(issue.ConfigLoadFailedId)
		if resolvedPath != "" {
			ctxBuilder = ctxBuilder.WithResource(resolvedPath)
		}
		return nil, "", ctxBuilder.Wrap(errs[0]).BuildError()
	}

	return &cfg, resolvedPath, nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper. Every config field is optional, so
// missing fields keep their viper defaults.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	result, err := cueutil.ParseAndDecodeString[map[string]any](configSchema, data, "#Config",
		cueutil.WithConcrete(false),
		cueutil.WithFilename(path),
		cueutil.WithMaxFileSize(maxConfigFileSize),
	)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(*result.Value); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default config file into dir (the config
// directory when empty). It returns the path and whether a file was written;
// an existing file is left untouched.
func CreateDefaultConfig(dir string) (string, bool, error) {
	cfgDir, err := configDirWithOverride(dir)
	if err != nil {
		return "", false, err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, false, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// helpaudit configuration file\n")
	sb.WriteString("// Run 'helpaudit config show' to see the effective values.\n\n")

	sb.WriteString("scan: {\n")
	if len(cfg.Scan.Roots) > 0 {
		sb.WriteString("\troots: [\n")
		for _, root := range cfg.Scan.Roots {
			fmt.Fprintf(&sb, "\t\t%q,\n", root)
		}
		sb.WriteString("\t]\n")
	}
	fmt.Fprintf(&sb, "\thelp_suffix: %q\n", cfg.Scan.HelpSuffix)
	fmt.Fprintf(&sb, "\tbinary_ext: %q\n", cfg.Scan.BinaryExt)
	fmt.Fprintf(&sb, "\tjobs: %d\n", cfg.Scan.Jobs)
	sb.WriteString("}\n")

	sb.WriteString("\nloader: {\n")
	fmt.Fprintf(&sb, "\tisolation: %q\n", cfg.Loader.Isolation)
	fmt.Fprintf(&sb, "\tinspector: %q\n", cfg.Loader.Inspector)
	if cfg.Loader.Script != "" {
		fmt.Fprintf(&sb, "\tscript: %q\n", cfg.Loader.Script)
	}
	fmt.Fprintf(&sb, "\ttimeout: %q\n", cfg.Loader.Timeout)
	sb.WriteString("}\n")

	sb.WriteString("\nreport: {\n")
	fmt.Fprintf(&sb, "\tformat: %q\n", cfg.Report.Format)
	fmt.Fprintf(&sb, "\tpath: %q\n", cfg.Report.Path)
	if cfg.Report.Baseline != "" {
		fmt.Fprintf(&sb, "\tbaseline: %q\n", cfg.Report.Baseline)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}
