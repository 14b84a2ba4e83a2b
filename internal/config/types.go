// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// IsolationProcess inspects each binary in a short-lived worker process.
	IsolationProcess IsolationMode = "process"
	// IsolationInline inspects binaries in the scanning process.
	IsolationInline IsolationMode = "inline"

	// InspectorMetadata reads cmdlet attributes from CLI metadata.
	// Defined locally to avoid coupling config to internal/loader.
	InspectorMetadata InspectorKind = "metadata"
	// InspectorScript runs a user-supplied shell command line.
	InspectorScript InspectorKind = "script"

	// ReportCSV writes comma-separated records.
	// Defined locally to avoid coupling config to internal/report.
	ReportCSV ReportFormat = "csv"
	// ReportJSON writes a JSON array.
	ReportJSON ReportFormat = "json"
	// ReportMarkdown writes a markdown table.
	ReportMarkdown ReportFormat = "markdown"

	// DefaultTimeout bounds a single worker run.
	DefaultTimeout = "60s"
	// maxJobs mirrors the upper bound in config_schema.cue.
	maxJobs = 64
)

var (
	// ErrInvalidIsolationMode is returned when an IsolationMode value is not recognized.
	ErrInvalidIsolationMode = errors.New("invalid isolation mode")
	// ErrInvalidInspectorKind is returned when an InspectorKind value is not recognized.
	ErrInvalidInspectorKind = errors.New("invalid inspector kind")
	// ErrInvalidReportFormat is returned when a ReportFormat value is not recognized.
	ErrInvalidReportFormat = errors.New("invalid report format")
	// ErrInvalidTimeout is returned when a timeout is not a positive duration.
	ErrInvalidTimeout = errors.New("invalid timeout")
	// ErrInvalidJobs is returned when jobs is out of range.
	ErrInvalidJobs = errors.New("invalid jobs")
	// ErrMissingScript is returned when the script inspector has no script.
	ErrMissingScript = errors.New("script inspector requires loader.script")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// IsolationMode selects how binaries are inspected.
	IsolationMode string

	// InvalidIsolationModeError is returned when an IsolationMode value is not recognized.
	// It wraps ErrInvalidIsolationMode for errors.Is() compatibility.
	InvalidIsolationModeError struct {
		Value IsolationMode
	}

	// InspectorKind selects the cmdlet discovery strategy.
	InspectorKind string

	// InvalidInspectorKindError is returned when an InspectorKind value is not recognized.
	InvalidInspectorKindError struct {
		Value InspectorKind
	}

	// ReportFormat selects the report sink.
	ReportFormat string

	// InvalidReportFormatError is returned when a ReportFormat value is not recognized.
	InvalidReportFormatError struct {
		Value ReportFormat
	}

	// InvalidTimeoutError is returned when loader.timeout cannot be used.
	InvalidTimeoutError struct {
		Value string
		Err   error
	}

	// InvalidJobsError is returned when scan.jobs is out of range.
	InvalidJobsError struct {
		Value int
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig and every field-level error for errors.Is().
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Scan configures root discovery and pairing
		Scan ScanConfig `json:"scan" mapstructure:"scan"`
		// Loader configures cmdlet discovery
		Loader LoaderConfig `json:"loader" mapstructure:"loader"`
		// Report configures the output sink
		Report ReportConfig `json:"report" mapstructure:"report"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// ScanConfig configures which folders are scanned.
	ScanConfig struct {
		// Roots are scanned when no roots are given on the command line.
		Roots []string `json:"roots" mapstructure:"roots"`
		// HelpSuffix follows the binary name in help file names.
		HelpSuffix string `json:"help_suffix" mapstructure:"help_suffix"`
		// BinaryExt is the module binary extension.
		BinaryExt string `json:"binary_ext" mapstructure:"binary_ext"`
		// Jobs bounds concurrent worker processes.
		Jobs int `json:"jobs" mapstructure:"jobs"`
	}

	// LoaderConfig configures cmdlet discovery.
	LoaderConfig struct {
		Isolation IsolationMode `json:"isolation" mapstructure:"isolation"`
		Inspector InspectorKind `json:"inspector" mapstructure:"inspector"`
		// Script is the shell command line run by the script inspector.
		Script string `json:"script" mapstructure:"script"`
		// Timeout is a Go duration string bounding one worker run.
		Timeout string `json:"timeout" mapstructure:"timeout"`
	}

	// ReportConfig configures the report sink.
	ReportConfig struct {
		Format ReportFormat `json:"format" mapstructure:"format"`
		Path   string       `json:"path" mapstructure:"path"`
		// Baseline is an optional TOML suppression file.
		Baseline string `json:"baseline" mapstructure:"baseline"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// String returns the string representation of the IsolationMode.
func (m IsolationMode) String() string { return string(m) }

// IsValid returns whether the IsolationMode is one of the defined modes,
// and a list of validation errors if it is not.
func (m IsolationMode) IsValid() (bool, []error) {
	switch m {
	case IsolationProcess, IsolationInline:
		return true, nil
	default:
		return false, []error{&InvalidIsolationModeError{Value: m}}
	}
}

// Error implements the error interface for InvalidIsolationModeError.
func (e *InvalidIsolationModeError) Error() string {
	return fmt.Sprintf("invalid isolation mode %q (valid: process, inline)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidIsolationModeError) Unwrap() error { return ErrInvalidIsolationMode }

// String returns the string representation of the InspectorKind.
func (k InspectorKind) String() string { return string(k) }

// IsValid returns whether the InspectorKind is one of the defined kinds.
func (k InspectorKind) IsValid() (bool, []error) {
	switch k {
	case InspectorMetadata, InspectorScript:
		return true, nil
	default:
		return false, []error{&InvalidInspectorKindError{Value: k}}
	}
}

// Error implements the error interface for InvalidInspectorKindError.
func (e *InvalidInspectorKindError) Error() string {
	return fmt.Sprintf("invalid inspector %q (valid: metadata, script)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidInspectorKindError) Unwrap() error { return ErrInvalidInspectorKind }

// String returns the string representation of the ReportFormat.
func (f ReportFormat) String() string { return string(f) }

// IsValid returns whether the ReportFormat is one of the defined formats.
func (f ReportFormat) IsValid() (bool, []error) {
	switch f {
	case ReportCSV, ReportJSON, ReportMarkdown:
		return true, nil
	default:
		return false, []error{&InvalidReportFormatError{Value: f}}
	}
}

// Error implements the error interface for InvalidReportFormatError.
func (e *InvalidReportFormatError) Error() string {
	return fmt.Sprintf("invalid report format %q (valid: csv, json, markdown)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidReportFormatError) Unwrap() error { return ErrInvalidReportFormat }

// Error implements the error interface for InvalidTimeoutError.
func (e *InvalidTimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid timeout %q: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("invalid timeout %q: must be positive", e.Value)
}

// Unwrap returns ErrInvalidTimeout for errors.Is() compatibility.
func (e *InvalidTimeoutError) Unwrap() error { return ErrInvalidTimeout }

// Error implements the error interface for InvalidJobsError.
func (e *InvalidJobsError) Error() string {
	return fmt.Sprintf("invalid jobs %d (valid: 1-%d)", e.Value, maxJobs)
}

// Unwrap returns ErrInvalidJobs for errors.Is() compatibility.
func (e *InvalidJobsError) Unwrap() error { return ErrInvalidJobs }

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig followed by the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// TimeoutDuration parses Timeout.
func (c LoaderConfig) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, &InvalidTimeoutError{Value: c.Timeout, Err: err}
	}
	if d <= 0 {
		return 0, &InvalidTimeoutError{Value: c.Timeout}
	}
	return d, nil
}

// IsValid returns whether the LoaderConfig has valid fields.
func (c LoaderConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Isolation.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Inspector.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.Inspector == InspectorScript && strings.TrimSpace(c.Script) == "" {
		errs = append(errs, ErrMissingScript)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	return len(errs) == 0, errs
}

// IsValid returns whether the Config has valid fields. It checks what the
// CUE schema cannot: cross-field rules and values that reach the config
// through viper overrides rather than a file.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if c.Scan.Jobs < 1 || c.Scan.Jobs > maxJobs {
		errs = append(errs, &InvalidJobsError{Value: c.Scan.Jobs})
	}
	if valid, fieldErrs := c.Loader.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Report.Format.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			Roots:      []string{},
			HelpSuffix: "-Help.xml",
			BinaryExt:  ".dll",
			Jobs:       1,
		},
		Loader: LoaderConfig{
			Isolation: IsolationProcess,
			Inspector: InspectorMetadata,
			Timeout:   DefaultTimeout,
		},
		Report: ReportConfig{
			Format: ReportCSV,
			Path:   "HelpIssues.csv",
		},
	}
}
