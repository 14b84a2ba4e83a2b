// SPDX-License-Identifier: MPL-2.0

// Package report persists issue records. A Sink receives records one at a
// time in discovery order; the file-backed sinks write CSV (the default
// HelpIssues.csv), JSON, or a markdown table.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/helpaudit/helpaudit/internal/reconcile"
)

const (
	// FormatCSV writes comma-separated values with a header row.
	FormatCSV Format = "csv"
	// FormatJSON writes a JSON array of records.
	FormatJSON Format = "json"
	// FormatMarkdown writes a markdown document with one table row per record.
	FormatMarkdown Format = "markdown"

	// DefaultPath is the report file written when none is configured.
	DefaultPath = "HelpIssues.csv"
)

// ErrInvalidFormat is returned when a report format is not recognized.
var ErrInvalidFormat = errors.New("invalid report format")

type (
	// Format selects the report encoding.
	Format string

	// InvalidFormatError is returned when a Format is not recognized.
	InvalidFormatError struct {
		Value Format
	}

	// Sink receives issue records. LogRecord is never called concurrently.
	Sink interface {
		LogRecord(rec reconcile.IssueRecord) error
		Close() error
	}

	// fileSink closes the underlying file after the encoder has flushed.
	fileSink struct {
		Sink
		f *os.File
	}
)

// Error implements the error interface for InvalidFormatError.
func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid report format %q (valid: csv, json, markdown)", e.Value)
}

// Unwrap returns ErrInvalidFormat for errors.Is() compatibility.
func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }

// String returns the string representation of the Format.
func (f Format) String() string { return string(f) }

// IsValid returns whether the Format is one of the defined formats,
// and a list of validation errors if it is not.
func (f Format) IsValid() (bool, []error) {
	switch f {
	case FormatCSV, FormatJSON, FormatMarkdown:
		return true, nil
	default:
		return false, []error{&InvalidFormatError{Value: f}}
	}
}

// New returns a sink writing format to w.
func New(format Format, w io.Writer) (Sink, error) {
	switch format {
	case FormatCSV:
		return NewCSVSink(w)
	case FormatJSON:
		return NewJSONSink(w), nil
	case FormatMarkdown:
		return NewMarkdownSink(w), nil
	default:
		return nil, &InvalidFormatError{Value: format}
	}
}

// Create truncates or creates path and returns a sink writing format to it.
// Parent directories are created as needed.
func Create(format Format, path string) (Sink, error) {
	if valid, errs := format.IsValid(); !valid {
		return nil, errs[0]
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	sink, err := New(format, f)
	if err != nil {
		_ = f.Close() // Best-effort close on error path
		return nil, err
	}
	return &fileSink{Sink: sink, f: f}, nil
}

// Close flushes the encoder and closes the file.
func (s *fileSink) Close() error {
	return errors.Join(s.Sink.Close(), s.f.Close())
}
